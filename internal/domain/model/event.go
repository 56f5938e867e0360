package model

// EventType identifies the side of an order lifecycle an event belongs to.
type EventType string

const (
	EventCreate  EventType = "create"
	EventFulfill EventType = "fulfill"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCreate, EventFulfill:
		return true
	}
	return false
}

// IndexerMode is the direction a cursor source walks the ledger in.
type IndexerMode string

const (
	ModeBackfill IndexerMode = "backfill"
	ModeForward  IndexerMode = "forward"
)

func (m IndexerMode) Valid() bool {
	switch m {
	case ModeBackfill, ModeForward:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of an aggregation job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobSkipped    JobStatus = "skipped"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobDone, JobSkipped, JobFailed:
		return true
	}
	return false
}

// Terminal reports whether the status needs no further processing.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobSkipped
}
