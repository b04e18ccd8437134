package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
)

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '2000ms'")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), db, 2*time.Second, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE products SET stock = 1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = WithTx(context.Background(), db, 0, func(tx *sql.Tx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_LockTimeoutIsRetryable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM orders")).
		WillReturnError(&pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	err = WithTx(context.Background(), db, 0, func(tx *sql.Tx) error {
		var id string
		return tx.QueryRowContext(context.Background(), "SELECT id FROM orders FOR UPDATE").Scan(&id)
	})

	assert.ErrorIs(t, err, domain.ErrConflictRetry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSnapshot(t *testing.T) {
	t.Run("commits after reading", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
		mock.ExpectCommit()

		var n int
		err = WithSnapshot(context.Background(), db, func(tx *sql.Tx) error {
			return tx.QueryRowContext(context.Background(), "SELECT 1").Scan(&n)
		})

		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = WithSnapshot(context.Background(), db, func(tx *sql.Tx) error { return boom })

		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil))

	plain := errors.New("plain")
	assert.Equal(t, plain, MapError(plain))

	assert.ErrorIs(t, MapError(&pq.Error{Code: "40P01"}), domain.ErrConflictRetry)
	assert.ErrorIs(t, MapError(&pq.Error{Code: "40001"}), domain.ErrConflictRetry)
	assert.ErrorIs(t, MapError(&pq.Error{Code: "23514", Constraint: "products_stock_check"}), domain.ErrNegativeStock)

	unique := &pq.Error{Code: "23505"}
	assert.Equal(t, error(unique), MapError(unique))
}
