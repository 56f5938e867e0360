package model

import "time"

// AggregationJob tracks the processing state of one raw transaction.
// One job per signature, created in the same transaction that stores the raw
// transaction. Exclusivity is enforced by the row-lock claim, not by worker
// identity.
type AggregationJob struct {
	Signature   string
	Status      JobStatus
	LockedBy    *string
	LockedUntil *time.Time
	Attempts    int
	NextRetryAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
