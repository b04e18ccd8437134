//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/testutil"
)

func TestWithSnapshotIgnoresConcurrentCommits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := testutil.SetupPostgres(ctx, t)
	_, err := db.ExecContext(ctx, `INSERT INTO products (id, seller_id, name, stock, price) VALUES ('P1', 'S1', 'Mug', 5, 10)`)
	require.NoError(t, err)

	stockOf := func(q Queryer) int {
		var stock int
		require.NoError(t, q.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = 'P1'`).Scan(&stock))
		return stock
	}

	var before, after int
	err = WithSnapshot(ctx, db, func(tx *sql.Tx) error {
		before = stockOf(tx)
		if _, err := db.ExecContext(ctx, `UPDATE products SET stock = 1 WHERE id = 'P1'`); err != nil {
			return err
		}
		after = stockOf(tx)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 5, before)
	assert.Equal(t, 5, after)
	assert.Equal(t, 1, stockOf(db))
}

func TestWithSnapshotIsReadOnly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := testutil.SetupPostgres(ctx, t)

	err := WithSnapshot(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO products (id, seller_id, name, stock, price) VALUES ('P1', 'S1', 'Mug', 5, 10)`)
		return err
	})

	assert.Error(t, err)
}
