package tx

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "farmshield/pkg/domain-errors"
)

func TestShardedRunner_SerializesSameKey(t *testing.T) {
	r := NewShardedRunner(time.Second)
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RunInTx(context.Background(), "policy-1", func(context.Context) error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestShardedRunner_CancelledContext(t *testing.T) {
	r := NewShardedRunner(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := r.RunInTx(ctx, "k", func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestShardedRunner_NestedSameKeyJoins(t *testing.T) {
	r := NewShardedRunner(time.Second)
	done := make(chan error, 1)
	go func() {
		done <- r.RunInTx(context.Background(), "policy-1", func(ctx context.Context) error {
			return r.RunInTx(ctx, "policy-1", func(context.Context) error { return nil })
		})
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("nested transaction on the same key deadlocked")
	}
}

func TestPostgresRunner(t *testing.T) {
	t.Run("commits and exposes the transaction through context", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE policies SET status = 'paid'")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = NewPostgresRunner(db, 0).RunInTx(context.Background(), "", func(ctx context.Context) error {
			_, ok := From(ctx)
			assert.True(t, ok)
			_, err := Execer(ctx, db).ExecContext(ctx, "UPDATE policies SET status = 'paid'")
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = NewPostgresRunner(db, 0).RunInTx(context.Background(), "", func(context.Context) error {
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
