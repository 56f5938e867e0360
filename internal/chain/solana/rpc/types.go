package rpc

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC request/response types

type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// getSignaturesForAddress response entry. Results are newest-first.
type SignatureInfo struct {
	Signature          string      `json:"signature"`
	Slot               int64       `json:"slot"`
	BlockTime          *int64      `json:"blockTime"`
	Err                interface{} `json:"err"`
	Memo               *string     `json:"memo"`
	ConfirmationStatus *string     `json:"confirmationStatus"`
}

type GetSignaturesOpts struct {
	Limit  int
	Before string // walk backward from this signature (exclusive)
	Until  string // walk forward until this signature (exclusive)
}

// TransactionEnvelope carries the fields of a getTransaction result the
// ingestion layer needs before handing the payload to storage.
type TransactionEnvelope struct {
	Slot      int64  `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
}
