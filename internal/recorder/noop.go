package recorder

import (
	"context"

	"SignalSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSignal(context.Context, SignalRecord) error       { return nil }
func (n *NoopRecorder) RecordEvent(context.Context, model.Event) error         { return nil }
func (n *NoopRecorder) RecordValuation(context.Context, ValuationRecord) error { return nil }
func (n *NoopRecorder) RecordDCA(context.Context, model.DCAReminder) error     { return nil }
func (n *NoopRecorder) Close() error                                           { return nil }
