// Package store persists monitors, observed transactions, security
// analyses, notification dedup records, and last-check timestamps to
// Postgres via pgx/v5. Raw SQL with ON CONFLICT upserts, ported from
// the teacher's internal/db/postgres.go (connection/transaction shape)
// and original_source/backend/src/worker/monitor.rs (the five
// statements and their conflict-handling semantics).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// uniqueViolation is Postgres's SQLSTATE for a unique-constraint
// violation. The original implementation string-matched SQLite's
// "UNIQUE constraint failed" message; this repo targets Postgres, so
// the typed pgconn error code is used instead (see DESIGN.md Open
// Question 3).
const uniqueViolation = "23505"

// Store wraps a pgxpool.Pool with the five table operations the
// Monitor Worker needs.
type Store struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// Connect opens a pooled Postgres connection and verifies it with a
// ping, exactly as the teacher's db.Connect does.
func Connect(ctx context.Context, connStr string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}
	return &Store{pool: pool, log: log.WithField("component", "store")}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql, matching the teacher's
// PostgresStore.InitSchema file-based migration approach.
func (s *Store) InitSchema(ctx context.Context, schemaPath string) error {
	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("store: failed to read schema file: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("store: failed to execute schema migrations: %w", err)
	}
	return nil
}

// Monitor is one active monitor row, with settings left as raw JSON —
// the worker decodes only the fields it needs (active flag,
// notification opt-ins, channel list), matching the original's
// untyped serde_json::Value settings column.
type Monitor struct {
	ID          string
	UserID      string
	SafeAddress string
	Network     string
	Settings    json.RawMessage
}

// MonitorSettings is the subset of Monitor.Settings the worker reads.
type MonitorSettings struct {
	Active               *bool           `json:"active"`
	NotifyManagement     *bool           `json:"notifyManagement"`
	NotifyAll            *bool           `json:"notifyAll"`
	NotificationChannels json.RawMessage `json:"notificationChannels"`
}

// ActiveMonitors returns every monitor whose settings.active is not
// explicitly false, mirroring the original's json_extract predicate.
func (s *Store) ActiveMonitors(ctx context.Context) ([]Monitor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, safe_address, network, settings
		FROM monitors
		WHERE (settings->>'active') IS DISTINCT FROM 'false'
	`)
	if err != nil {
		return nil, fmt.Errorf("store: query active monitors: %w", err)
	}
	defer rows.Close()

	var monitors []Monitor
	for rows.Next() {
		var m Monitor
		if err := rows.Scan(&m.ID, &m.UserID, &m.SafeAddress, &m.Network, &m.Settings); err != nil {
			return nil, fmt.Errorf("store: scan monitor row: %w", err)
		}
		monitors = append(monitors, m)
	}
	return monitors, rows.Err()
}

// UpsertLastCheck records that monitorID was just checked.
func (s *Store) UpsertLastCheck(ctx context.Context, monitorID, safeAddress, network string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO last_checks (id, monitor_id, safe_address, network, checked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, $5)
		ON CONFLICT (monitor_id) DO UPDATE SET
			checked_at = EXCLUDED.checked_at,
			updated_at = EXCLUDED.updated_at
	`, uuid.NewString(), monitorID, safeAddress, network, now)
	if err != nil {
		return fmt.Errorf("store: upsert last_checks: %w", err)
	}
	return nil
}

// TransactionRecord is one observed transaction as stored, carrying
// the raw indexer payload alongside the normalized columns the
// monitor's alert logic reads back.
type TransactionRecord struct {
	SafeTxHash     string
	ToAddress      string
	Value          *string
	Data           *string
	Operation      *uint8
	Nonce          uint64
	IsExecuted     bool
	SubmissionDate *string
	ExecutionDate  *string
	RawPayload     json.RawMessage
}

// StoreTransaction upserts a transaction for one monitor. Re-observing
// an already-stored transaction (e.g. it has since executed) updates
// the mutable fields only, matching monitor.rs's ON CONFLICT clause.
func (s *Store) StoreTransaction(ctx context.Context, tx TransactionRecord, monitorID, network, safeAddress string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (
			id, monitor_id, safe_tx_hash, network, safe_address,
			to_address, value, data, operation, nonce,
			is_executed, submission_date, execution_date,
			transaction_data, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (safe_tx_hash, monitor_id) DO UPDATE SET
			is_executed = EXCLUDED.is_executed,
			execution_date = EXCLUDED.execution_date,
			transaction_data = EXCLUDED.transaction_data,
			updated_at = EXCLUDED.updated_at
	`,
		uuid.NewString(), monitorID, tx.SafeTxHash, network, safeAddress,
		tx.ToAddress, tx.Value, tx.Data, tx.Operation, int64(tx.Nonce),
		tx.IsExecuted, tx.SubmissionDate, tx.ExecutionDate,
		tx.RawPayload, now,
	)
	if err != nil {
		return fmt.Errorf("store: upsert transaction %s: %w", tx.SafeTxHash, err)
	}
	return nil
}

// SecurityAnalysisRecord is the outcome of running the rule/assessment
// engines against one transaction, as persisted.
type SecurityAnalysisRecord struct {
	TransactionHash  string
	IsSuspicious     bool
	RiskLevel        string
	Warnings         []string
	Details          json.RawMessage
	CallType         json.RawMessage
	HashVerification json.RawMessage
	NonceCheck       json.RawMessage
	Calldata         json.RawMessage
}

// StoreSecurityAnalysis inserts one analysis row. A unique-violation
// (the same transaction re-analyzed in a later poll cycle, before it
// executes) is swallowed rather than treated as an error — exactly-
// once insert semantics, ported from monitor.rs's string-matched
// "UNIQUE constraint failed" handling.
func (s *Store) StoreSecurityAnalysis(ctx context.Context, safeAddress, network string, rec SecurityAnalysisRecord, userID string) error {
	now := time.Now().UTC()
	warningsJSON, err := json.Marshal(rec.Warnings)
	if err != nil {
		return fmt.Errorf("store: marshal warnings: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO security_analyses (
			id, safe_address, network, transaction_hash,
			is_suspicious, risk_level, warnings, details, call_type,
			hash_verification, nonce_check, calldata, user_id, analyzed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`,
		uuid.NewString(), safeAddress, network, rec.TransactionHash,
		rec.IsSuspicious, rec.RiskLevel, warningsJSON, rec.Details, rec.CallType,
		rec.HashVerification, rec.NonceCheck, rec.Calldata, userID, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			s.log.WithField("transactionHash", rec.TransactionHash).Debug("security analysis already recorded, skipping")
			return nil
		}
		return fmt.Errorf("store: insert security_analyses: %w", err)
	}
	return nil
}

// WasNotified reports whether any monitor has already been notified
// about this transaction.
func (s *Store) WasNotified(ctx context.Context, transactionHash, safeAddress, network string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notification_status
		WHERE transaction_hash = $1 AND safe_address = $2 AND network = $3
	`, transactionHash, safeAddress, network).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: query notification_status: %w", err)
	}
	return count > 0, nil
}

// RecordNotification marks transactionHash as notified for monitorID,
// the dedup key the worker checks via WasNotified on the next cycle.
func (s *Store) RecordNotification(ctx context.Context, transactionHash, safeAddress, network, monitorID, alertType string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_status (id, transaction_hash, safe_address, network, monitor_id, transaction_type, notified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_hash, safe_address, network, monitor_id) DO NOTHING
	`, uuid.NewString(), transactionHash, safeAddress, network, monitorID, alertType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: insert notification_status: %w", err)
	}
	return nil
}
