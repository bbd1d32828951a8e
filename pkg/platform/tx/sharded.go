package tx

import (
	"context"
	"sync"
	"time"

	dErrors "farmshield/pkg/domain-errors"
)

const numShards = 128

// ShardedRunner serializes in-memory transactions that share a key.
// Operations on different keys proceed in parallel. There is no rollback, so
// callers order their writes so the only step that can fail after the first
// mutation is guarded by the same key.
//
// A nested RunInTx whose key maps to a shard the caller already holds joins
// the outer call instead of deadlocking, mirroring PostgresRunner.
type ShardedRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewShardedRunner creates an in-memory runner for tests and single-node dev.
func NewShardedRunner(timeout time.Duration) *ShardedRunner {
	return &ShardedRunner{timeout: timeout}
}

func (r *ShardedRunner) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ctx, cancel := withDefaultTimeout(ctx, r.timeout)
	defer cancel()

	idx := hashKey(key) % numShards
	if held, ok := ctx.Value(heldShardsKey{}).(heldShards); ok && held.owner == r && held.has(idx) {
		return fn(ctx)
	}

	shard := &r.shards[idx]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(r.withHeld(ctx, idx))
}

type heldShardsKey struct{}

type heldShards struct {
	owner *ShardedRunner
	idx   []uint32
}

func (h heldShards) has(idx uint32) bool {
	for _, i := range h.idx {
		if i == idx {
			return true
		}
	}
	return false
}

func (r *ShardedRunner) withHeld(ctx context.Context, idx uint32) context.Context {
	held, _ := ctx.Value(heldShardsKey{}).(heldShards)
	if held.owner != r {
		held = heldShards{owner: r}
	}
	next := heldShards{owner: r, idx: append(append([]uint32(nil), held.idx...), idx)}
	return context.WithValue(ctx, heldShardsKey{}, next)
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
