package storage

import (
	"time"

	"github.com/google/uuid"
)

// CycleRecord is the journal entry of one finished poll cycle.
type CycleRecord struct {
	ID               uuid.UUID
	Seq              uint64
	RangeHours       int
	StartedAt        time.Time
	FinishedAt       time.Time
	Outcome          string
	Unavailable      []string
	HistoryCount     int
	ConsumptionCount int
	MonthlyCount     int
	Error            *string
}

// Duration is the wall time the cycle took.
func (r CycleRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
