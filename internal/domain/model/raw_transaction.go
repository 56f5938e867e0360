package model

import (
	"encoding/json"
	"time"
)

// RawTransaction is a ledger transaction exactly as returned by the RPC node.
// Immutable once stored; Signature is the natural key.
type RawTransaction struct {
	Signature string
	Slot      int64
	BlockTime int64
	TxData    json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}
