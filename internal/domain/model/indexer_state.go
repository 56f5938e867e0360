package model

import "time"

// IndexerState is the persisted cursor for one (program, mode) pair.
// Backfill rows flip IsStopped when history is exhausted; forward rows never
// stop. A nil cursor means the source starts from the newest ledger position.
type IndexerState struct {
	ID        int64
	ProgramID string
	Mode      IndexerMode
	Cursor    *string
	IsStopped bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
