// Package notifier delivers alerts and reports to chat and event sinks.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"SignalSentinel/internal/model"
)

// Message is one outbound notification. Text is HTML for chat sinks.
// Image, when set, is a PNG attached to the text; it is filled by an
// external chart renderer, the sentinel itself never sets it. Event is set for
// position transitions so structured sinks can publish it.
type Message struct {
	Text  string
	Image []byte
	Event *model.Event
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi fans a message out to every notifier. One failure does not stop
// the others; all errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for i, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d (%T): %w", i, n, err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes messages to the logger. Used when no chat sink is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, msg Message) error {
	fields := []zap.Field{zap.String("text", msg.Text), zap.Int("image_bytes", len(msg.Image))}
	if msg.Event != nil {
		fields = append(fields, zap.String("event_id", msg.Event.ID), zap.String("kind", string(msg.Event.Kind)))
	}
	l.Logger.Info("notification", fields...)
	return nil
}
