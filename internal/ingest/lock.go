package ingest

import (
	"context"
	"time"

	"crm-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// SyncLocker serializes email sync runs per account. Overlapping runs for the
// same account would double-process messages between the existence check and
// the insert, so only one run may hold the lock at a time.
type SyncLocker interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisSyncLock implements SyncLocker as a concurrency cap with limit 1.
// The TTL releases the lock if a sync run dies without cleaning up.
type RedisSyncLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSyncLock(rdb *redis.Client, ttl time.Duration) *RedisSyncLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisSyncLock{rdb: rdb, ttl: ttl}
}

func (l *RedisSyncLock) Acquire(ctx context.Context, key string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, key, 1, l.ttl)
}

func (l *RedisSyncLock) Release(ctx context.Context, key string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, key)
}
