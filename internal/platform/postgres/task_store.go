package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. If logger is nil, a
// default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a new PostgresTaskStore that uses the provided transaction.
// This allows multiple operations to be executed within a single transaction
// created and managed by the caller.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, type, status, model, prompt, callback_url, result, error, progress, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Type,
		task.Status,
		task.Model,
		task.Prompt,
		nullString(task.CallbackURL),
		nullBytes(task.Result),
		nullString(task.Error),
		nullString(task.Progress),
		task.CreatedAt,
		task.CompletedAt,
	)
	if err != nil {
		s.logger.Error("failed to create task",
			"task_id", task.ID,
			"task_type", task.Type,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, type, status, model, prompt, callback_url, result, error, progress, created_at, completed_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, MapError(err)
	}
	return task, nil
}

// Update implements store.TaskStore.Update. It reads the current record,
// merges the partial update through the shared state-machine check, and
// writes the merged record back. Tasks are single-writer by construction, so
// no row lock is taken between the read and the write.
func (s *PostgresTaskStore) Update(
	ctx context.Context,
	id uuid.UUID,
	update store.TaskUpdate,
) (*domain.Task, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := *current
	if err := store.ApplyTaskUpdate(&merged, current.Status, update); err != nil {
		return nil, err
	}

	// The status guard makes the write a compare-and-set against the status
	// read above, so a racing cancel and a worker claim cannot both win.
	query := `
		UPDATE tasks
		SET status = $1, result = $2, error = $3, progress = $4, completed_at = $5
		WHERE id = $6 AND status = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		merged.Status,
		nullBytes(merged.Result),
		nullString(merged.Error),
		nullString(merged.Progress),
		merged.CompletedAt,
		id,
		current.Status,
	)
	if err != nil {
		s.logger.Error("failed to update task",
			"task_id", id,
			"status", merged.Status,
			"error", err)
		return nil, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the task vanished or its status moved under us; re-read
		// to tell the two apart.
		if _, err := s.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: concurrent status change on task %s",
			domain.ErrInvalidTransition, id)
	}

	return &merged, nil
}

// List implements store.TaskStore.List.
func (s *PostgresTaskStore) List(
	ctx context.Context,
	filter store.TaskFilter,
) ([]*domain.Task, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	if limit > store.MaxListLimit {
		limit = store.MaxListLimit
	}

	query := `
		SELECT id, type, status, model, prompt, callback_url, result, error, progress, created_at, completed_at
		FROM tasks
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, string(filter.Status), string(filter.Type), limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn("failed to close rows", "error", cerr)
		}
	}()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return tasks, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		callbackURL sql.NullString
		result      []byte
		errMsg      sql.NullString
		progress    sql.NullString
		completedAt sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.Status,
		&task.Model,
		&task.Prompt,
		&callbackURL,
		&result,
		&errMsg,
		&progress,
		&task.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	task.CallbackURL = callbackURL.String
	task.Result = result
	task.Error = errMsg.String
	task.Progress = progress.String
	if completedAt.Valid {
		at := completedAt.Time
		task.CompletedAt = &at
	}

	return &task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Ping verifies the database connection is reachable within the timeout.
// Startup uses this to decide whether to degrade to the in-memory store.
func Ping(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}
