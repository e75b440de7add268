package core_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	testutil "github.com/gabrielfriasw/srf-escolas-sub000/tests"
)

func countClasses(t *testing.T, db core.DBExecutor) int {
	t.Helper()
	var n int
	require.NoError(t, db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM classes"))
	return n
}

func TestRunInTx(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()

	insert := func(tx core.DBExecutor, id, name string) error {
		_, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO classes (id, name) VALUES (?, ?)"), id, name)
		return err
	}

	t.Run("commits", func(t *testing.T) {
		err := core.RunInTx(ctx, db, func(tx core.DBExecutor) error {
			if err := insert(tx, "c1", "9A"); err != nil {
				return err
			}
			return insert(tx, "c2", "9B")
		})
		require.NoError(t, err)
		assert.Equal(t, 2, countClasses(t, db))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := core.RunInTx(ctx, db, func(tx core.DBExecutor) error {
			if err := insert(tx, "c3", "9C"); err != nil {
				return err
			}
			return boom
		})
		assert.Equal(t, boom, err)
		assert.Equal(t, 2, countClasses(t, db))
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = core.RunInTx(ctx, db, func(tx core.DBExecutor) error {
				_ = insert(tx, "c4", "9D")
				panic("boom")
			})
		})
		assert.Equal(t, 2, countClasses(t, db))
	})
}
