package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/jacentio/taskfields/field"
)

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"fields.db", "fields.db?_foreign_keys=on"},
		{"file:fields.db?_busy_timeout=5000", "file:fields.db?_busy_timeout=5000&_foreign_keys=on"},
		{"file:fields.db?_foreign_keys=off", "file:fields.db?_foreign_keys=off"},
		{"file:fields.db?_fk=1", "file:fields.db?_fk=1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqliteDSN(tt.in), tt.in)
	}
}

func TestNewDialector(t *testing.T) {
	for _, dialect := range []string{SQLite, Postgres, MySQL} {
		d, err := newDialector(dialect, "user:pass@tcp(localhost:3306)/fields")
		require.NoError(t, err, dialect)
		assert.Equal(t, dialect, d.Name())
	}

	_, err := newDialector(MySQL, "not a dsn")
	assert.Error(t, err)

	_, err = newDialector("oracle", "")
	assert.Error(t, err)
}

func TestConstraintError(t *testing.T) {
	boom := errors.New("boom")

	err := constraintError("insert", gorm.ErrForeignKeyViolated)
	assert.True(t, field.IsValidation(err))

	err = constraintError("insert", fmt.Errorf("wrapped: %w", gorm.ErrDuplicatedKey))
	assert.True(t, field.IsConflict(err))
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	err = constraintError("insert", boom)
	assert.ErrorIs(t, err, boom)
	assert.False(t, field.IsConflict(err))
	assert.False(t, field.IsValidation(err))
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), GormConfig())
	require.NoError(t, err)

	n := 0
	s := New(gdb, Config{Dialect: Postgres, NewID: func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}})
	return s, mock
}

func TestRunInTx_LockUsesRowLockAndRollsBackWhenMissing(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "task_fields" WHERE product_id = \$1 AND id = \$2 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "name", "type", "created_at", "updated_at"}))
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx field.Tx) error {
		_, err := tx.LockField(ctx, "p1", "f1")
		return err
	})
	require.Error(t, err)
	assert.True(t, field.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollsBackWhenStatementFails(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "task_fields_values" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "task_fields_values_properties" WHERE id IN`).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx field.Tx) error {
		if err := tx.UpdateValue(ctx, &field.Value{ID: "v1", Title: "Medium", Position: 1}); err != nil {
			return err
		}
		return tx.DestroyProperties(ctx, []field.Property{{ID: "p1"}})
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_CommitError(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	err := s.RunInTx(context.Background(), func(context.Context, field.Tx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDestroy_EmptyInputRunsNoStatements(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx field.Tx) error {
		if err := tx.DestroyValues(ctx, nil); err != nil {
			return err
		}
		if err := tx.DestroyProperties(ctx, nil); err != nil {
			return err
		}
		if err := tx.DestroyTaskValues(ctx, nil); err != nil {
			return err
		}
		return tx.CreateTaskValues(ctx, "p1", nil)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTaskValues_DuplicateIsConflict(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "task_fields"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO "custom_task_fields"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx field.Tx) error {
		return tx.CreateTaskValues(ctx, "p1", []field.TaskValue{
			{TaskID: "t1", FieldID: "f1", Value: "a"},
			{TaskID: "t1", FieldID: "f1", Value: "b"},
		})
	})
	require.Error(t, err)
	assert.True(t, field.IsConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTaskValues_MissingFieldSkipsInsert(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "task_fields"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx field.Tx) error {
		return tx.CreateTaskValues(ctx, "p1", []field.TaskValue{
			{TaskID: "t1", FieldID: "f1", Value: "a"},
			{TaskID: "t1", FieldID: "f2", Value: "b"},
		})
	})
	require.Error(t, err)
	assert.True(t, field.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateField_InsertsTreeInBatches(t *testing.T) {
	s, mock := newMock(t)
	s.config.BatchSize = 1

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "task_fields" \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "task_fields_values" \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "task_fields_values" \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "task_fields_values_properties" \(`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	f := &field.Field{
		ProductID: "p1",
		Name:      "Priority",
		Type:      "list",
		Values: []field.Value{
			{Title: "Low", Position: 0, Properties: []field.Property{{Name: "color", Value: "green"}}},
			{Title: "High", Position: 1},
		},
	}
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx field.Tx) error {
		return tx.CreateField(ctx, f)
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", f.ID)
	assert.Equal(t, "id-2", f.Values[0].ID)
	assert.Equal(t, "id-3", f.Values[0].Properties[0].ID)
	assert.Equal(t, "id-2", f.Values[0].Properties[0].ValueID)
	assert.Equal(t, "id-4", f.Values[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
