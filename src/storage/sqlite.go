package storage

import (
	"database/sql"
	"fmt"
	"time"

	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"

	_ "modernc.org/sqlite"
)

// DefaultMaxStateBytes caps a state snapshot when the config leaves it unset.
const DefaultMaxStateBytes = 2 * 1024 * 1024

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MStorageConfig
	DB     *sql.DB
	Logger *logger.Logger
}

var _ interfaces.IStateStore = (*SQLiteDB)(nil)

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MStorageConfig, log *logger.Logger) (*SQLiteDB, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("sqlite store requires storage.db_path")
	}
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	// agent_state holds exactly one row: the latest snapshot. Unlike market
	// data this must survive restarts, so tables are created, never dropped.
	query := `
		CREATE TABLE IF NOT EXISTS agent_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			snapshot BLOB NOT NULL,
			saved_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create agent_state: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS orders (
			idempotency_key TEXT PRIMARY KEY,
			action TEXT,
			symbol TEXT,
			submission_state TEXT,
			broker_order_id TEXT,
			submitted_at INTEGER
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create orders: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) maxStateBytes() int {
	if d.Config.MaxStateBytes > 0 {
		return d.Config.MaxStateBytes
	}
	return DefaultMaxStateBytes
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveState(snapshot []byte) error {
	if len(snapshot) > d.maxStateBytes() {
		return fmt.Errorf("%w: %d > %d bytes", interfaces.ErrStateTooLarge, len(snapshot), d.maxStateBytes())
	}

	query := `
		INSERT INTO agent_state (id, snapshot, saved_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			snapshot = excluded.snapshot,
			saved_at = excluded.saved_at
	`
	_, err := d.DB.Exec(query, snapshot, time.Now().UTC().Unix())
	return err
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadState() ([]byte, error) {
	var snapshot []byte
	err := d.DB.QueryRow("SELECT snapshot FROM agent_state WHERE id = 1").Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) RecordOrder(key string, rec interfaces.MOrderRecord) (bool, error) {
	query := `
		INSERT INTO orders (idempotency_key, action, symbol, submission_state, broker_order_id, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	res, err := d.DB.Exec(query, key, rec.Action, rec.Symbol, rec.SubmissionState, rec.BrokerOrderID, rec.SubmittedAt.UTC().Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LookupOrder(key string) (*interfaces.MOrderRecord, error) {
	var rec interfaces.MOrderRecord
	var submittedAt int64
	err := d.DB.QueryRow(`
		SELECT idempotency_key, action, symbol, submission_state, broker_order_id, submitted_at
		FROM orders WHERE idempotency_key = ?
	`, key).Scan(&rec.IdempotencyKey, &rec.Action, &rec.Symbol, &rec.SubmissionState, &rec.BrokerOrderID, &submittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.SubmittedAt = time.Unix(submittedAt, 0).UTC()
	return &rec, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
