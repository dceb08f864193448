package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/constants"
	internal_utils "github.com/poofware/homeservices/backend/services/booking-service/internal/utils"
	"github.com/redis/go-redis/v9"
)

// ReleaseFunc gives a held lock back. Releasing twice is a no-op.
type ReleaseFunc func(ctx context.Context) error

// PollLock guarantees one live poller per booking id across replicas.
type PollLock interface {
	Acquire(ctx context.Context, bookingID string, ttl time.Duration) (ReleaseFunc, error)
}

func lockKey(bookingID string) string {
	return constants.PollLockKeyPrefix + bookingID
}

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// releaseScript deletes the key only if it still carries our token, so a lock
// that expired and was taken over is never released by its old owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisPollLock struct {
	client redis.UniversalClient
}

func NewRedisPollLock(client redis.UniversalClient) *RedisPollLock {
	return &RedisPollLock{client: client}
}

func (l *RedisPollLock) Acquire(ctx context.Context, bookingID string, ttl time.Duration) (ReleaseFunc, error) {
	key := lockKey(bookingID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire poll lock %s: %w", key, err)
	}
	if !ok {
		return nil, internal_utils.ErrPollLockHeld
	}

	var once sync.Once
	return func(ctx context.Context) error {
		var relErr error
		once.Do(func() {
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				relErr = fmt.Errorf("release poll lock %s: %w", key, err)
			}
		})
		return relErr
	}, nil
}

// NewRedisClient builds the client used for the poll lock.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// ---------------------------------------------------------------------------
// In-memory
// ---------------------------------------------------------------------------

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryPollLock is the single-replica fallback when Redis isn't configured.
type MemoryPollLock struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryPollLock() *MemoryPollLock {
	return &MemoryPollLock{entries: make(map[string]memoryEntry), now: time.Now}
}

func (l *MemoryPollLock) Acquire(_ context.Context, bookingID string, ttl time.Duration) (ReleaseFunc, error) {
	key := lockKey(bookingID)
	token := uuid.NewString()

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok && (e.expires.IsZero() || l.now().Before(e.expires)) {
		return nil, internal_utils.ErrPollLockHeld
	}
	var expires time.Time
	if ttl > 0 {
		expires = l.now().Add(ttl)
	}
	l.entries[key] = memoryEntry{token: token, expires: expires}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.entries[key]; ok && e.token == token {
			delete(l.entries, key)
		}
		return nil
	}, nil
}
