package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/dentai/internal/store"
)

// Backend persists learner states. Implementations need not be safe for
// concurrent writes to the same learner; Store serializes those.
type Backend interface {
	// Load returns the learner's state and whether it exists.
	Load(ctx context.Context, learnerID string) (LearnerState, bool, error)

	// Save replaces the learner's state.
	Save(ctx context.Context, learnerID string, st LearnerState) error

	// Delete forgets the learner. Unknown learners are not an error.
	Delete(ctx context.Context, learnerID string) error
}

// AtomicBackend is a Backend that can run a read-modify-write as one
// storage transaction. Store prefers it, since the keyed mutex only
// serializes writers inside one process.
type AtomicBackend interface {
	Backend

	// Modify loads the learner's state, passes it to fn with whether it
	// existed, and saves fn's result before anyone else can write.
	Modify(ctx context.Context, learnerID string, fn func(st LearnerState, exists bool) (LearnerState, error)) (LearnerState, error)
}

// MemoryBackend keeps states in process memory for the process lifetime.
type MemoryBackend struct {
	mu     sync.RWMutex
	states map[string]LearnerState
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{states: make(map[string]LearnerState)}
}

func (b *MemoryBackend) Load(_ context.Context, learnerID string) (LearnerState, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.states[learnerID]
	if !ok {
		return LearnerState{}, false, nil
	}
	return st.Clone(), true, nil
}

func (b *MemoryBackend) Save(_ context.Context, learnerID string, st LearnerState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[learnerID] = st.Clone()
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, learnerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, learnerID)
	return nil
}

// Learners returns the ids currently held.
func (b *MemoryBackend) Learners() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.states))
	for id := range b.states {
		ids = append(ids, id)
	}
	return ids
}

// RedisBackend stores one JSON document per learner under
// "{prefix}:{learner_id}:state", refreshed to ttl on every save.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisBackend connects to redisURL (redis://host:port/db).
// A ttl of zero keeps states until they are deleted.
func NewRedisBackend(redisURL, keyPrefix string, ttl time.Duration) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return NewRedisBackendWithClient(redis.NewClient(opts), keyPrefix, ttl), nil
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = "dentai"
	}
	return &RedisBackend{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *RedisBackend) stateKey(learnerID string) string {
	return fmt.Sprintf("%s:%s:state", r.keyPrefix, learnerID)
}

// Ping checks connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) Load(ctx context.Context, learnerID string) (LearnerState, bool, error) {
	data, err := r.client.Get(ctx, r.stateKey(learnerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return LearnerState{}, false, nil
		}
		return LearnerState{}, false, fmt.Errorf("failed to load state: %w", err)
	}
	var st LearnerState
	if err := json.Unmarshal(data, &st); err != nil {
		return LearnerState{}, false, err
	}
	return st, true, nil
}

func (r *RedisBackend) Save(ctx context.Context, learnerID string, st LearnerState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	if err := r.client.Set(ctx, r.stateKey(learnerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, learnerID string) error {
	if err := r.client.Del(ctx, r.stateKey(learnerID)).Err(); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// Close releases the client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// SnapshotBackend keeps learner states in the SQLite snapshot table.
type SnapshotBackend struct {
	repo store.SnapshotRepo
}

// NewSnapshotBackend wraps a snapshot repository.
func NewSnapshotBackend(repo store.SnapshotRepo) *SnapshotBackend {
	return &SnapshotBackend{repo: repo}
}

func (b *SnapshotBackend) Load(ctx context.Context, learnerID string) (LearnerState, bool, error) {
	snap, err := b.repo.Latest(ctx, learnerID)
	if err != nil {
		return LearnerState{}, false, err
	}
	if snap == nil {
		return LearnerState{}, false, nil
	}
	var st LearnerState
	if err := json.Unmarshal(snap.Data, &st); err != nil {
		return LearnerState{}, false, err
	}
	return st, true, nil
}

func (b *SnapshotBackend) Save(ctx context.Context, learnerID string, st LearnerState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}
	return b.repo.Save(ctx, &store.Snapshot{LearnerID: learnerID, UpdatedAt: time.Now(), Data: data})
}

// Modify runs fn under an immediate SQLite write transaction, so turns
// from separate processes sharing the database file do not lose updates.
func (b *SnapshotBackend) Modify(ctx context.Context, learnerID string, fn func(LearnerState, bool) (LearnerState, error)) (LearnerState, error) {
	var out LearnerState
	err := b.repo.Update(ctx, learnerID, func(cur *store.Snapshot) (*store.Snapshot, error) {
		var st LearnerState
		if cur != nil {
			if err := json.Unmarshal(cur.Data, &st); err != nil {
				return nil, err
			}
		}
		next, err := fn(st, cur != nil)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("serialize state: %w", err)
		}
		out = next
		return &store.Snapshot{UpdatedAt: time.Now(), Data: data}, nil
	})
	if err != nil {
		return LearnerState{}, err
	}
	return out, nil
}

func (b *SnapshotBackend) Delete(ctx context.Context, learnerID string) error {
	return b.repo.Delete(ctx, learnerID)
}
