package storage

import (
	"database/sql"
	"fmt"
	"time"

	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MStorageConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

var _ interfaces.IStateStore = (*PostgresDB)(nil)

// -----------------------------------------------------------------------------

// NewPostgresDB builds a postgres-backed store. agentName namespaces the
// schema so several agents can share one database.
func NewPostgresDB(cfg *models.MStorageConfig, agentName string, log *logger.Logger) (*PostgresDB, error) {
	if cfg.DBConnectionString == "" {
		return nil, fmt.Errorf("postgres store requires storage.db_connection_string")
	}
	if agentName == "" {
		agentName = "trade_agent"
	}
	return &PostgresDB{
		Config: cfg,
		Schema: agentName,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."agent_state" (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			snapshot BYTEA NOT NULL,
			saved_at BIGINT NOT NULL
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create agent_state: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."orders" (
			idempotency_key TEXT PRIMARY KEY,
			action TEXT,
			symbol TEXT,
			submission_state TEXT,
			broker_order_id TEXT,
			submitted_at BIGINT
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create orders: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) maxStateBytes() int {
	if d.Config.MaxStateBytes > 0 {
		return d.Config.MaxStateBytes
	}
	return DefaultMaxStateBytes
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveState(snapshot []byte) error {
	if len(snapshot) > d.maxStateBytes() {
		return fmt.Errorf("%w: %d > %d bytes", interfaces.ErrStateTooLarge, len(snapshot), d.maxStateBytes())
	}

	query := fmt.Sprintf(`
		INSERT INTO "%s"."agent_state" (id, snapshot, saved_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			saved_at = EXCLUDED.saved_at
	`, d.Schema)
	_, err := d.DB.Exec(query, snapshot, time.Now().UTC().Unix())
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadState() ([]byte, error) {
	var snapshot []byte
	query := fmt.Sprintf(`SELECT snapshot FROM "%s"."agent_state" WHERE id = 1`, d.Schema)
	err := d.DB.QueryRow(query).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) RecordOrder(key string, rec interfaces.MOrderRecord) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."orders" (idempotency_key, action, symbol, submission_state, broker_order_id, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, d.Schema)
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

func (d *PostgresDB) LookupOrder(key string) (*interfaces.MOrderRecord, error) {
	var rec interfaces.MOrderRecord
	var submittedAt int64
	query := fmt.Sprintf(`
		SELECT idempotency_key, action, symbol, submission_state, broker_order_id, submitted_at
		FROM "%s"."orders" WHERE idempotency_key = $1
	`, d.Schema)
	err := d.DB.QueryRow(query, key).Scan(&rec.IdempotencyKey, &rec.Action, &rec.Symbol, &rec.SubmissionState, &rec.BrokerOrderID, &submittedAt)
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

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
