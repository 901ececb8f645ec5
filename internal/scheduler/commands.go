package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"SignalSentinel/internal/notifier"
)

// HandleCommand processes a chat command and returns a reply. An empty
// reply means the command answered through the notifier.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// Group chats append the bot name: /positions@sentinel_bot.
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	arg := ""
	if len(fields) > 1 {
		arg = strings.ToUpper(fields[1])
	}

	switch name {
	case "/positions":
		states, err := s.deps.Machine.Positions(ctx)
		if err != nil {
			s.log.Error("list positions", zap.Error(err))
			return "❌ Could not load positions"
		}
		return notifier.FormatPositions(states)

	case "/valuation":
		if !s.opts.Valuation.Enabled {
			return "Valuation report is disabled"
		}
		if _, _, err := s.RunValuation(ctx); err != nil {
			return fmt.Sprintf("❌ Valuation failed: %s", html.EscapeString(err.Error()))
		}
		return ""

	case "/status":
		if arg == "" {
			return "Usage: /status SYMBOL"
		}
		res, ok := s.Last(arg)
		if !ok {
			return fmt.Sprintf("No evaluation of %s yet", html.EscapeString(arg))
		}
		return html.EscapeString(notifier.FormatDecision(arg, res.Snapshot, res.Decision))

	case "/clear":
		if arg == "" {
			return "Usage: /clear SYMBOL"
		}
		unlock, err := s.locks.Lock(ctx, arg)
		if err != nil {
			return "❌ Busy, try again"
		}
		defer unlock()
		if err := s.deps.Machine.Reset(ctx, arg); err != nil {
			s.log.Error("clear position", zap.String("instrument", arg), zap.Error(err))
			return fmt.Sprintf("❌ Could not clear %s", html.EscapeString(arg))
		}
		s.log.Info("position cleared by command", zap.String("instrument", arg))
		return fmt.Sprintf("🧹 %s cleared", html.EscapeString(arg))

	default:
		return notifier.FormatHelp()
	}
}
