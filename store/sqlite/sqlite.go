/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements schedule.Store, approval.RequestStore, and payout.RecordStore
  over a single SQLite database. Schedules are stored as whole JSON
  documents - the engine reads and writes full documents, never partial
  rows - with a version column driving optimistic concurrency.

INTERFACES IMPLEMENTED:
  schedule.Store:        schedule documents with compare-and-swap versioning
  approval.RequestStore: approval requests (immutable once reviewed)
  payout.RecordStore:    deposit payout records (create-only)

OPTIMISTIC CONCURRENCY:
  Put/PutBatch update WHERE version = ?; zero rows affected means another
  writer won the race and the caller gets schedule.ErrVersionConflict.
  PutBatch runs in one SQL transaction: all-or-nothing per batch.

KEY TABLES:
  schedules:         one JSON document per lease, version column
  approval_requests: pending/approved/declined payment edits; a partial
                     unique index enforces at most one pending request
                     per (schedule_id, month_key)
  payout_records:    one immutable settlement per lease

WAL MODE:
  Opened with WAL for better read concurrency and crash recovery.

USAGE:
  store, err := sqlite.New("./data/lease.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/lease-engine/approval"
	"github.com/warp/lease-engine/payout"
	"github.com/warp/lease-engine/schedule"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schemaSQL := `
	-- Lease payment schedules, one JSON document per lease
	CREATE TABLE IF NOT EXISTS schedules (
		lease_id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Payment edit approval requests
	CREATE TABLE IF NOT EXISTS approval_requests (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL,
		month_key TEXT NOT NULL,
		status TEXT NOT NULL,
		doc TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_approvals_schedule
		ON approval_requests(schedule_id, month_key);
	CREATE INDEX IF NOT EXISTS idx_approvals_status
		ON approval_requests(status);

	-- CRITICAL: at most one outstanding approval per obligation
	CREATE UNIQUE INDEX IF NOT EXISTS idx_approvals_unique_pending
		ON approval_requests(schedule_id, month_key)
		WHERE status = 'pending';

	-- Deposit payout records, immutable, one per lease
	CREATE TABLE IF NOT EXISTS payout_records (
		id TEXT PRIMARY KEY,
		lease_id TEXT NOT NULL UNIQUE,
		doc TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schemaSQL)
	return err
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

func (s *Store) GetByLease(ctx context.Context, leaseID string) (*schedule.LeasePaymentSchedule, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT doc, version FROM schedules WHERE lease_id = ?`, leaseID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrScheduleNotFound
	}
	if err != nil {
		return nil, storeErr("get schedule", err)
	}
	return decodeSchedule(doc, version)
}

func (s *Store) GetBatch(ctx context.Context, leaseIDs []string) ([]*schedule.LeasePaymentSchedule, error) {
	if len(leaseIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(leaseIDs)), ",")
	args := make([]any, len(leaseIDs))
	for i, id := range leaseIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc, version FROM schedules WHERE lease_id IN (`+placeholders+`) ORDER BY lease_id`, args...)
	if err != nil {
		return nil, storeErr("get schedule batch", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (s *Store) GetAll(ctx context.Context) ([]*schedule.LeasePaymentSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc, version FROM schedules ORDER BY lease_id`)
	if err != nil {
		return nil, storeErr("get all schedules", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (s *Store) Put(ctx context.Context, doc *schedule.LeasePaymentSchedule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin put", err)
	}
	defer tx.Rollback()

	if err := putTx(ctx, tx, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit put", err)
	}
	doc.Version++
	return nil
}

// PutBatch writes all documents in one transaction; any version conflict
// rolls back the whole batch.
func (s *Store) PutBatch(ctx context.Context, docs []*schedule.LeasePaymentSchedule) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin batch", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if err := putTx(ctx, tx, doc); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit batch", err)
	}
	for _, doc := range docs {
		doc.Version++
	}
	return nil
}

// putTx performs the compare-and-swap write of one document.
func putTx(ctx context.Context, tx *sql.Tx, doc *schedule.LeasePaymentSchedule) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode schedule %s: %w", doc.LeaseID, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	if doc.Version == 0 {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schedules (lease_id, doc, version, updated_at) VALUES (?, ?, 1, ?)`,
			doc.LeaseID, string(raw), now)
		if isUniqueViolation(err) {
			return schedule.ErrVersionConflict
		}
		if err != nil {
			return storeErr("insert schedule", err)
		}
		return nil
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE schedules SET doc = ?, version = version + 1, updated_at = ? WHERE lease_id = ? AND version = ?`,
		string(raw), now, doc.LeaseID, doc.Version)
	if err != nil {
		return storeErr("update schedule", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("update schedule", err)
	}
	if affected == 0 {
		return schedule.ErrVersionConflict
	}
	return nil
}

func scanSchedules(rows *sql.Rows) ([]*schedule.LeasePaymentSchedule, error) {
	var out []*schedule.LeasePaymentSchedule
	for rows.Next() {
		var doc string
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, storeErr("scan schedule", err)
		}
		decoded, err := decodeSchedule(doc, version)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, rows.Err()
}

func decodeSchedule(doc string, version int64) (*schedule.LeasePaymentSchedule, error) {
	var out schedule.LeasePaymentSchedule
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("failed to decode schedule document: %w", err)
	}
	// The version column is authoritative, not the serialized copy.
	out.Version = version
	return &out, nil
}

// =============================================================================
// APPROVAL REQUEST STORE
// =============================================================================

func (s *Store) Create(ctx context.Context, r *approval.PaymentApprovalRequest) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode approval request: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approval_requests (id, schedule_id, month_key, status, doc, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ScheduleID, string(r.MonthKey), string(r.Status), string(raw),
		r.CreatedAt.UTC().Format(time.RFC3339))
	if isUniqueViolation(err) {
		return schedule.ErrDuplicatePendingApproval
	}
	if err != nil {
		return storeErr("create approval request", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*approval.PaymentApprovalRequest, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM approval_requests WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrApprovalNotFound
	}
	if err != nil {
		return nil, storeErr("get approval request", err)
	}
	return decodeRequest(doc)
}

func (s *Store) Update(ctx context.Context, r *approval.PaymentApprovalRequest) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode approval request: %w", err)
	}
	// Reviewed requests are immutable: only pending rows may change.
	res, err := s.db.ExecContext(ctx,
		`UPDATE approval_requests SET status = ?, doc = ? WHERE id = ? AND status = 'pending'`,
		string(r.Status), string(raw), r.ID)
	if err != nil {
		return storeErr("update approval request", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("update approval request", err)
	}
	if affected == 0 {
		return schedule.ErrApprovalNotFound
	}
	return nil
}

func (s *Store) PendingFor(ctx context.Context, scheduleID string, key schedule.MonthKey) (*approval.PaymentApprovalRequest, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM approval_requests WHERE schedule_id = ? AND month_key = ? AND status = 'pending'`,
		scheduleID, string(key)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("query pending approval", err)
	}
	return decodeRequest(doc)
}

func (s *Store) ListPending(ctx context.Context) ([]*approval.PaymentApprovalRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM approval_requests WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, storeErr("list pending approvals", err)
	}
	defer rows.Close()

	var out []*approval.PaymentApprovalRequest
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, storeErr("scan approval request", err)
		}
		decoded, err := decodeRequest(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, rows.Err()
}

func decodeRequest(doc string) (*approval.PaymentApprovalRequest, error) {
	var out approval.PaymentApprovalRequest
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("failed to decode approval request: %w", err)
	}
	return &out, nil
}

// =============================================================================
// PAYOUT RECORD STORE
// =============================================================================

func (s *Store) CreatePayout(ctx context.Context, r *payout.DepositPayoutRecord) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode payout record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO payout_records (id, lease_id, doc, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.LeaseID, string(raw), r.PayoutDate.UTC().Format(time.RFC3339))
	if isUniqueViolation(err) {
		return &schedule.ValidationError{Field: "leaseId", Message: "payout record already exists for lease"}
	}
	if err != nil {
		return storeErr("create payout record", err)
	}
	return nil
}

func (s *Store) GetPayoutByLease(ctx context.Context, leaseID string) (*payout.DepositPayoutRecord, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM payout_records WHERE lease_id = ?`, leaseID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get payout record", err)
	}
	var out payout.DepositPayoutRecord
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("failed to decode payout record: %w", err)
	}
	return &out, nil
}

// PayoutRecords adapts the store to payout.RecordStore.
func (s *Store) PayoutRecords() payout.RecordStore {
	return payoutAdapter{s}
}

type payoutAdapter struct{ s *Store }

func (a payoutAdapter) Create(ctx context.Context, r *payout.DepositPayoutRecord) error {
	return a.s.CreatePayout(ctx, r)
}

func (a payoutAdapter) GetByLease(ctx context.Context, leaseID string) (*payout.DepositPayoutRecord, error) {
	return a.s.GetPayoutByLease(ctx, leaseID)
}

// =============================================================================
// HELPERS
// =============================================================================

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", schedule.ErrStoreUnavailable, op, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
