package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"SignalSentinel/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signal_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			instrument  TEXT NOT NULL,
			close       REAL,
			rsi         REAL,
			macd        REAL,
			macd_signal REAL,
			bb_lower    REAL,
			bb_upper    REAL,
			buy_score   INTEGER,
			sell_score  INTEGER,
			action      TEXT,
			signals     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_inst_ts ON signal_history(instrument, timestamp)`,

		`CREATE TABLE IF NOT EXISTS position_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id    TEXT NOT NULL UNIQUE,
			timestamp   INTEGER NOT NULL,
			instrument  TEXT NOT NULL,
			kind        TEXT,
			action      TEXT,
			price       REAL,
			entry_price REAL,
			change      REAL,
			reason      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_inst_ts ON position_events(instrument, timestamp)`,

		`CREATE TABLE IF NOT EXISTS valuation_snapshots (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			instrument     TEXT NOT NULL,
			current_price  REAL,
			average_cost   REAL,
			fair_value     REAL,
			ratio          REAL,
			zone           TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_valuation_ts ON valuation_snapshots(timestamp)`,

		`CREATE TABLE IF NOT EXISTS dca_reminders (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			instrument  TEXT NOT NULL,
			action      TEXT,
			price       REAL,
			amount      REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dca_ts ON dca_reminders(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSignal(ctx context.Context, rec SignalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, d := rec.Snapshot, rec.Decision
	_, err := r.db.ExecContext(ctx, `INSERT INTO signal_history
		(timestamp, instrument, close, rsi, macd, macd_signal, bb_lower, bb_upper,
		 buy_score, sell_score, action, signals)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.At.Unix(), rec.Instrument, s.Close, s.RSI, s.MACD, s.MACDSignal, s.BBLower, s.BBUpper,
		d.BuyScore, d.SellScore, string(d.Action), strings.Join(d.Signals, ","),
	)
	return err
}

func (r *SQLiteRecorder) RecordEvent(ctx context.Context, evt model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO position_events
		(event_id, timestamp, instrument, kind, action, price, entry_price, change, reason)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		evt.ID, evt.At.Unix(), evt.Instrument, string(evt.Kind), string(evt.Action),
		evt.Price, evt.EntryPrice, evt.Change, evt.Reason,
	)
	return err
}

func (r *SQLiteRecorder) RecordValuation(ctx context.Context, rec ValuationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := rec.Snapshot
	_, err := r.db.ExecContext(ctx, `INSERT INTO valuation_snapshots
		(timestamp, instrument, current_price, average_cost, fair_value, ratio, zone)
		VALUES (?,?,?,?,?,?,?)`,
		rec.At.Unix(), rec.Instrument, v.CurrentPrice, v.TrailingAverageCost,
		v.FairValueEstimate, v.ValuationRatio, rec.Zone,
	)
	return err
}

func (r *SQLiteRecorder) RecordDCA(ctx context.Context, d model.DCAReminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO dca_reminders
		(timestamp, instrument, action, price, amount)
		VALUES (?,?,?,?,?)`,
		d.At.Unix(), d.Instrument, string(d.Action), d.Price, d.Amount,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
