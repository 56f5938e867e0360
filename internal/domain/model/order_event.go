package model

import "time"

// OrderEvent is one decoded create or fulfill order event priced in USD.
// (Signature, Type, OrderID) is unique: re-processing a transaction must not
// duplicate events.
type OrderEvent struct {
	OrderID   string // 32-byte order id, hex encoded
	Type      EventType
	Signature string
	Slot      int64
	BlockTime int64
	TokenMint string
	AmountUSD string
	Day       time.Time
}

// DayFromBlockTime buckets a unix block time into its UTC calendar day.
func DayFromBlockTime(blockTime int64) time.Time {
	t := time.Unix(blockTime, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
