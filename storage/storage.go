// Package storage persists accounts, tasks and the append-only task event
// log in Postgres, and layers the per-account view cache on top.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskledger-api/domain"
	"taskledger-api/vault"
)

// Store is the system of record. Tasks are immutable after creation; every
// state change is a new task_event row, appended transactionally.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a pgx pool to the given database and verifies it is
// reachable.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// CreateAccount inserts a new account row. The caller normalizes the email;
// the unique constraint turns a clash into domain.ErrDuplicateEmail.
func (s *Store) CreateAccount(ctx context.Context, accountID uuid.UUID, email, passwordHash string) error {
	const insertAccount = `
INSERT INTO account (id, email, password_hash, created_at)
VALUES ($1, $2, $3, now())
`
	if _, err := s.pool.Exec(ctx, insertAccount, accountID, email, passwordHash); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// AccountByEmail fetches the credential record for a normalized email.
func (s *Store) AccountByEmail(ctx context.Context, email string) (vault.Account, error) {
	const selectAccount = `
SELECT id, email, password_hash
FROM account
WHERE email = $1
`
	var account vault.Account
	err := s.pool.QueryRow(ctx, selectAccount, email).Scan(&account.ID, &account.Email, &account.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return vault.Account{}, vault.ErrAccountNotFound
		}
		return vault.Account{}, fmt.Errorf("select account by email: %w", err)
	}
	return account, nil
}

// CreateTask inserts the task row and its initial Unchecked event as one
// transaction; if either write fails neither becomes visible.
func (s *Store) CreateTask(ctx context.Context, accountID uuid.UUID, content string) (uuid.UUID, error) {
	taskID := uuid.New()
	now := nextOccurredAt()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin create task: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertTask = `
INSERT INTO task (id, account_id, content, created_at)
VALUES ($1, $2, $3, $4)
RETURNING seq
`
	var taskSeq int64
	if err := tx.QueryRow(ctx, insertTask, taskID, accountID, content, now).Scan(&taskSeq); err != nil {
		return uuid.Nil, fmt.Errorf("insert task: %w", err)
	}

	const insertEvent = `
INSERT INTO task_event (task_seq, kind, occurred_at)
VALUES ($1, $2, $3)
`
	if _, err := tx.Exec(ctx, insertEvent, taskSeq, string(domain.KindUnchecked), now); err != nil {
		return uuid.Nil, fmt.Errorf("insert initial event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit create task: %w", err)
	}
	return taskID, nil
}

// AppendEvent records a state transition for a task the acting account owns.
// A missing task yields domain.ErrNotFound and a task owned by another
// account yields domain.ErrForbidden; the HTTP boundary collapses the two so
// tenants cannot probe each other's ids. This is the sole mutation path for
// task state; the task row itself is never updated.
func (s *Store) AppendEvent(ctx context.Context, accountID, taskID uuid.UUID, kind domain.EventKind) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append event: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const selectOwner = `
SELECT seq, account_id
FROM task
WHERE id = $1
`
	var taskSeq int64
	var owner uuid.UUID
	if err := tx.QueryRow(ctx, selectOwner, taskID).Scan(&taskSeq, &owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("select task owner: %w", err)
	}
	if owner != accountID {
		return domain.ErrForbidden
	}

	const insertEvent = `
INSERT INTO task_event (task_seq, kind, occurred_at)
VALUES ($1, $2, $3)
`
	if _, err := tx.Exec(ctx, insertEvent, taskSeq, string(kind), nextOccurredAt()); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append event: %w", err)
	}
	return nil
}

// ListCurrent returns the current state of the account's tasks created on
// the given day: one row per task carrying its latest event, Deleted tasks
// excluded. The query fetches the committed event log ordered by insertion;
// the latest-event reduction is domain.Reduce, not a row-ordering trick in
// SQL. Read-only and safe to run concurrently with writers.
func (s *Store) ListCurrent(ctx context.Context, accountID uuid.UUID, day time.Time) ([]domain.TaskRow, error) {
	const selectLog = `
SELECT t.id, t.seq, t.content, t.created_at, e.seq, e.kind, e.occurred_at
FROM task t
JOIN task_event e ON e.task_seq = t.seq
WHERE t.account_id = $1
  AND t.created_at::date = $2::date
ORDER BY t.created_at, t.seq, e.seq
`
	rows, err := s.pool.Query(ctx, selectLog, accountID, day.Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("select task events: %w", err)
	}
	defer rows.Close()

	log := []domain.TaskRow{}
	for rows.Next() {
		var row domain.TaskRow
		var kind string
		if err := rows.Scan(&row.TaskID, &row.TaskSeq, &row.Content, &row.CreatedAt, &row.EventSeq, &kind, &row.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan task event: %w", err)
		}
		row.Kind = domain.EventKind(kind)
		log = append(log, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task events: %w", err)
	}
	return domain.Reduce(log), nil
}
