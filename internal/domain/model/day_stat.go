package model

import "time"

// DayStat accumulates per-day order counts and USD volumes. Rows are mutated
// only by commutative deltas, never overwritten wholesale.
type DayStat struct {
	Day                time.Time `json:"day"`
	CreatedCount       int64     `json:"created_count"`
	FulfilledCount     int64     `json:"fulfilled_count"`
	CreatedVolumeUSD   string    `json:"created_volume_usd"`
	FulfilledVolumeUSD string    `json:"fulfilled_volume_usd"`
}

// DayStatDelta is one commutative increment for a (day, type) pair.
type DayStatDelta struct {
	Day       time.Time
	Type      EventType
	Count     int64
	VolumeUSD string
}
