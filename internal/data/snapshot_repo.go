package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
)

// RedisSnapshotRepo stores job snapshots as JSON values in Redis.
type RedisSnapshotRepo struct {
	client redis.UniversalClient
	prefix string
}

var (
	_ core.SnapshotRepository = (*RedisSnapshotRepo)(nil)
	_ core.SnapshotRepository = (*MemorySnapshotRepo)(nil)
)

// NewRedisSnapshotRepo creates a RedisSnapshotRepo. prefix namespaces every key.
func NewRedisSnapshotRepo(client redis.UniversalClient, prefix string) *RedisSnapshotRepo {
	return &RedisSnapshotRepo{client: client, prefix: prefix}
}

func (r *RedisSnapshotRepo) key(ref model.JobRef) string {
	return r.prefix + "watch:" + ref.String()
}

// Put stores snap under its job ref. A non-positive ttl keeps the key until deleted.
func (r *RedisSnapshotRepo) Put(ctx context.Context, snap *model.JobSnapshot, ttl time.Duration) error {
	if snap == nil {
		return errors.New("snapshot is required")
	}
	ref := snap.Job.Ref()
	if err := ref.Validate(); err != nil {
		return apperrors.Validation(err.Error())
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(ref), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the snapshot for ref, or a NotFound error.
func (r *RedisSnapshotRepo) Get(ctx context.Context, ref model.JobRef) (*model.JobSnapshot, error) {
	raw, err := r.client.Get(ctx, r.key(ref)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFoundf("no snapshot for %s", ref)
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var snap model.JobSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", ref, err)
	}
	return &snap, nil
}

// Delete removes the snapshot for ref. Deleting a missing key is not an error.
func (r *RedisSnapshotRepo) Delete(ctx context.Context, ref model.JobRef) error {
	if err := r.client.Del(ctx, r.key(ref)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Health pings Redis.
func (r *RedisSnapshotRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type memorySnapshot struct {
	snap      model.JobSnapshot
	expiresAt time.Time
}

// MemorySnapshotRepo keeps snapshots in process memory. Used when Redis is disabled.
type MemorySnapshotRepo struct {
	mu    sync.Mutex
	items map[model.JobRef]memorySnapshot
	now   func() time.Time
}

// NewMemorySnapshotRepo creates an empty MemorySnapshotRepo.
func NewMemorySnapshotRepo(tp TimeProvider) *MemorySnapshotRepo {
	if tp == nil {
		tp = RealTimeProvider{}
	}
	return &MemorySnapshotRepo{items: make(map[model.JobRef]memorySnapshot), now: tp.Now}
}

// Put stores a copy of snap.
func (m *MemorySnapshotRepo) Put(_ context.Context, snap *model.JobSnapshot, ttl time.Duration) error {
	if snap == nil {
		return errors.New("snapshot is required")
	}
	ref := snap.Job.Ref()
	if err := ref.Validate(); err != nil {
		return apperrors.Validation(err.Error())
	}
	item := memorySnapshot{snap: *snap}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[ref] = item
	return nil
}

// Get returns a copy of the snapshot for ref, or a NotFound error once it expired.
func (m *MemorySnapshotRepo) Get(_ context.Context, ref model.JobRef) (*model.JobSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[ref]
	if ok && !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		delete(m.items, ref)
		ok = false
	}
	if !ok {
		return nil, apperrors.NotFoundf("no snapshot for %s", ref)
	}
	snap := item.snap
	return &snap, nil
}

// Delete removes the snapshot for ref.
func (m *MemorySnapshotRepo) Delete(_ context.Context, ref model.JobRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, ref)
	return nil
}
