// Package recorder keeps an append-only history of scoring passes,
// position events and valuation reports for later analysis.
package recorder

import (
	"context"
	"time"

	"SignalSentinel/internal/model"
)

// SignalRecord is one scoring pass for one instrument.
type SignalRecord struct {
	Instrument string
	At         time.Time
	Snapshot   model.IndicatorSnapshot
	Decision   model.Decision
}

// ValuationRecord is one valuation report.
type ValuationRecord struct {
	Instrument string
	At         time.Time
	Snapshot   model.ValuationSnapshot
	Zone       string
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordSignal(ctx context.Context, rec SignalRecord) error
	// RecordEvent is idempotent on Event.ID.
	RecordEvent(ctx context.Context, evt model.Event) error
	RecordValuation(ctx context.Context, rec ValuationRecord) error
	RecordDCA(ctx context.Context, r model.DCAReminder) error
	Close() error
}
