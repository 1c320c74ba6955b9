package mirror

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/WelcomerTeam/Mirror/discord"
	"github.com/WelcomerTeam/Mirror/pkg/clock"
	"github.com/go-redis/redis/v8"
)

const (
	DefaultRedisStorePrefix = "mirror:original"
	DefaultRedisStoreTTL    = 24 * time.Hour

	DefaultMemoryStoreTTL   = time.Hour
	DefaultMemoryStoreLimit = 10000
)

type originalKey struct {
	kind string
	id   discord.Snowflake
}

type memoryOriginal struct {
	data    []byte
	expires time.Time
}

// MemoryStoreOptions configures a MemoryStore.
type MemoryStoreOptions struct {
	Clock clock.Clock
	TTL   time.Duration

	// Limit is the number of originals kept before the oldest are evicted.
	Limit int
}

// MemoryStore keeps originals in process. Entries expire after the ttl and
// the oldest tenth is evicted whenever the limit is reached.
type MemoryStore struct {
	clock   clock.Clock
	ttl     time.Duration
	limit   int
	objects *Cache[originalKey, memoryOriginal]

	evictMu sync.Mutex
}

func NewMemoryStore(options MemoryStoreOptions) *MemoryStore {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}

	if options.TTL == 0 {
		options.TTL = DefaultMemoryStoreTTL
	}

	if options.Limit <= 0 {
		options.Limit = DefaultMemoryStoreLimit
	}

	return &MemoryStore{
		clock:   options.Clock,
		ttl:     options.TTL,
		limit:   options.Limit,
		objects: NewCache[originalKey, memoryOriginal](stateUserSize),
	}
}

func (s *MemoryStore) Get(_ context.Context, kind string, id discord.Snowflake) ([]byte, bool, error) {
	key := originalKey{kind, id}

	original, ok := s.objects.Load(key)
	if !ok {
		return nil, false, nil
	}

	if !s.clock.Now().Before(original.expires) {
		s.objects.DeleteIf(key, func(value memoryOriginal) bool {
			return !s.clock.Now().Before(value.expires)
		})

		return nil, false, nil
	}

	return original.data, true, nil
}

func (s *MemoryStore) Put(_ context.Context, kind string, id discord.Snowflake, data []byte) error {
	key := originalKey{kind, id}

	if _, ok := s.objects.Load(key); !ok && s.objects.Count() >= s.limit {
		s.evict()
	}

	s.objects.Store(key, memoryOriginal{
		data:    data,
		expires: s.clock.Now().Add(s.ttl),
	})

	return nil
}

// evict drops expired originals, then the oldest tenth if still at the limit.
func (s *MemoryStore) evict() {
	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	if s.objects.Count() < s.limit {
		return
	}

	now := s.clock.Now()

	var (
		expired []originalKey
		live    []originalKey
		expires []time.Time
	)

	s.objects.Range(func(key originalKey, value memoryOriginal) bool {
		if !now.Before(value.expires) {
			expired = append(expired, key)
		} else {
			live = append(live, key)
			expires = append(expires, value.expires)
		}

		return false
	})

	for _, key := range expired {
		s.objects.Delete(key)
	}

	if len(live) < s.limit {
		return
	}

	sorted := append([]time.Time{}, expires...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	cutoff := sorted[len(sorted)/10]

	for i, key := range live {
		if !expires[i].After(cutoff) {
			s.objects.Delete(key)
		}
	}
}

// RedisStore keeps originals in redis under <prefix>:<kind>:<id>.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisStorePrefix
	}

	if ttl == 0 {
		ttl = DefaultRedisStoreTTL
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(kind string, id discord.Snowflake) string {
	return s.prefix + ":" + kind + ":" + id.String()
}

func (s *RedisStore) Get(ctx context.Context, kind string, id discord.Snowflake) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to get original: %w", err)
	}

	return data, true, nil
}

func (s *RedisStore) Put(ctx context.Context, kind string, id discord.Snowflake, data []byte) error {
	err := s.client.Set(ctx, s.key(kind, id), data, s.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to put original: %w", err)
	}

	return nil
}
