package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"MarketTrigger/internal/model"
)

// SQLiteRecorder persists trigger history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trigger_events (
			id             TEXT PRIMARY KEY,
			controller     TEXT NOT NULL,
			timestamp      INTEGER NOT NULL,
			kind           TEXT NOT NULL,
			reason         TEXT,
			remaining_hits INTEGER,
			next_eligible  TEXT,
			window_open    INTEGER,
			window_close   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trigger_ts ON trigger_events(controller, timestamp)`,

		`CREATE TABLE IF NOT EXISTS allocations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			confidence REAL,
			bull_pct   REAL,
			bear_pct   REAL,
			weights    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alloc_ts ON allocations(timestamp)`,

		`CREATE TABLE IF NOT EXISTS account_snapshots (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			portfolio_value  REAL,
			requirement      REAL,
			remaining_margin REAL,
			initial_margin   REAL,
			leverage         REAL,
			last_commission  REAL,
			total_commission REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_ts ON account_snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordTrigger(rec *model.TriggerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO trigger_events
		(id, controller, timestamp, kind, reason, remaining_hits, next_eligible, window_open, window_close)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Controller, rec.At.Unix(), string(rec.Kind), rec.Reason, rec.RemainingHits,
		rec.NextEligible.Format("2006-01-02"), rec.WindowOpen.Unix(), rec.WindowClose.Unix(),
	)
	return err
}

func (r *SQLiteRecorder) RecordAllocation(a *model.Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	weights, err := json.Marshal(a.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	_, err = r.db.Exec(`INSERT INTO allocations
		(timestamp, confidence, bull_pct, bear_pct, weights)
		VALUES (?,?,?,?,?)`,
		a.DecidedAt.Unix(), a.Confidence, a.BullPct, a.BearPct, string(weights),
	)
	return err
}

func (r *SQLiteRecorder) RecordAccount(snap *model.AccountSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO account_snapshots
		(timestamp, portfolio_value, requirement, remaining_margin, initial_margin, leverage, last_commission, total_commission)
		VALUES (?,?,?,?,?,?,?,?)`,
		snap.TakenAt.Unix(), snap.PortfolioValue, snap.Requirement, snap.RemainingMargin,
		snap.InitialMargin, snap.Leverage, snap.LastCommission, snap.TotalCommission,
	)
	return err
}

// RecentTriggers returns the newest events of one controller, newest first.
func (r *SQLiteRecorder) RecentTriggers(controller string, limit int) ([]model.TriggerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, controller, timestamp, kind, reason, remaining_hits,
		next_eligible, window_open, window_close
		FROM trigger_events WHERE controller = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		controller, limit)
	if err != nil {
		return nil, fmt.Errorf("query trigger events: %w", err)
	}
	defer rows.Close()

	var out []model.TriggerRecord
	for rows.Next() {
		var (
			rec               model.TriggerRecord
			kind, next        string
			ts, wOpen, wClose int64
		)
		if err := rows.Scan(&rec.ID, &rec.Controller, &ts, &kind, &rec.Reason, &rec.RemainingHits,
			&next, &wOpen, &wClose); err != nil {
			return nil, fmt.Errorf("scan trigger event: %w", err)
		}
		rec.Kind = model.TriggerKind(kind)
		rec.At = time.Unix(ts, 0)
		rec.WindowOpen = time.Unix(wOpen, 0)
		rec.WindowClose = time.Unix(wClose, 0)
		if d, err := time.Parse("2006-01-02", next); err == nil {
			rec.NextEligible = d
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
