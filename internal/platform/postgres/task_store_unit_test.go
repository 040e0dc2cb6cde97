package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/render-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresTaskStore(t *testing.T) {
	db := &sql.DB{}

	s := NewPostgresTaskStore(db, slog.Default())
	assert.NotNil(t, s)

	// Nil logger falls back to the default logger.
	s = NewPostgresTaskStore(db, nil)
	assert.NotNil(t, s)

	// Nil db is a programming error.
	assert.Panics(t, func() {
		NewPostgresTaskStore(nil, slog.Default())
	})
}

func TestWithTx(t *testing.T) {
	db := &sql.DB{}
	s := NewPostgresTaskStore(db, slog.Default())

	tx := &sql.Tx{}
	txStore := s.WithTx(tx)

	require.NotNil(t, txStore)
	assert.Equal(t, store.DBTX(tx), txStore.db, "WithTx store should use the provided transaction")
	assert.Equal(t, s.logger, txStore.logger, "WithTx store should preserve the logger")
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "nil error",
			err:     nil,
			wantErr: nil,
		},
		{
			name:    "no rows maps to task not found",
			err:     sql.ErrNoRows,
			wantErr: store.ErrTaskNotFound,
		},
		{
			name:    "wrapped no rows maps to task not found",
			err:     fmt.Errorf("query failed: %w", sql.ErrNoRows),
			wantErr: store.ErrTaskNotFound,
		},
		{
			name:    "unique violation maps to duplicate",
			err:     &pgconn.PgError{Code: uniqueViolationCode},
			wantErr: store.ErrDuplicate,
		},
		{
			name:    "check violation maps to invalid entity",
			err:     &pgconn.PgError{Code: checkViolationCode, ConstraintName: "result_error_exclusive"},
			wantErr: store.ErrInvalidEntity,
		},
		{
			name:    "not null violation maps to invalid entity",
			err:     &pgconn.PgError{Code: notNullViolationCode, ColumnName: "model"},
			wantErr: store.ErrInvalidEntity,
		},
		{
			name: "unknown error passes through",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			if tt.err == nil {
				assert.NoError(t, mapped)
				return
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, mapped, tt.wantErr)
			} else {
				assert.Equal(t, tt.err, mapped)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: checkViolationCode}))
	assert.False(t, IsUniqueViolation(errors.New("something else")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestMigrationsDeclareTaskStateMachine(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/00001_create_tasks.sql")
	require.NoError(t, err)

	schema := string(data)
	for _, status := range []string{"pending", "queued", "processing", "completed", "failed", "cancelled"} {
		assert.Contains(t, schema, status)
	}
	assert.Contains(t, schema, "result_error_exclusive")
}
