// Package position tracks per-instrument positions and turns scored actions
// into cooldown-gated, persisted transitions.
package position

import (
	"context"
	"encoding/json"
	"fmt"

	"SignalSentinel/internal/model"
)

// Store persists one PositionState per instrument key. Implementations must
// be read-your-writes consistent for a single key.
type Store interface {
	// Load returns the state of instrument. found is false when no record exists.
	// A record that cannot be decoded yields an error wrapping model.ErrInvalidState.
	Load(ctx context.Context, instrument string) (state model.PositionState, found bool, err error)
	// Save replaces the state of instrument atomically.
	Save(ctx context.Context, instrument string, state model.PositionState) error
	// Clear deletes the record of instrument.
	Clear(ctx context.Context, instrument string) error
	// List returns every decodable record.
	List(ctx context.Context) (map[string]model.PositionState, error)
	Close() error
}

func encodeState(state model.PositionState) ([]byte, error) {
	return json.Marshal(state)
}

func decodeState(instrument string, data []byte) (model.PositionState, error) {
	var state model.PositionState
	if len(data) == 0 {
		return state, fmt.Errorf("%s: empty record: %w", instrument, model.ErrInvalidState)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return model.PositionState{}, fmt.Errorf("%s: %w: %v", instrument, model.ErrInvalidState, err)
	}
	if state.EntryPrice.Valid && !state.EntryPrice.Decimal.IsPositive() {
		return model.PositionState{}, fmt.Errorf("%s: entry price %s: %w", instrument, state.EntryPrice.Decimal, model.ErrInvalidState)
	}
	return state, nil
}

func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrTransient, err)
}
