package topology

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "tabledisco:"
	keySpace         = "topology:"
	purgeScanCount   = 200
)

// RedisStoreConfig — параметры RedisStore.
type RedisStoreConfig struct {
	// Prefix — пространство имён ключей (default: "tabledisco:").
	Prefix string

	// TTL — время жизни записи. 0 — без срока.
	TTL time.Duration
}

// RedisStore хранит деревья в Redis строковыми ключами <prefix>topology:<id>.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore создаёт RedisStore поверх готового клиента.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) *RedisStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix + keySpace,
		ttl:    cfg.TTL,
	}
}

func (s *RedisStore) key(rootID string) string {
	return s.prefix + rootID
}

// Persist записывает дерево целиком.
func (s *RedisStore) Persist(ctx context.Context, t *Topology) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(t.RootID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist topology %s: %w", t.RootID, err)
	}
	return nil
}

// Load читает и декодирует дерево.
func (s *RedisStore) Load(ctx context.Context, rootID string) (*Topology, error) {
	data, err := s.client.Get(ctx, s.key(rootID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rootID)
	}
	if err != nil {
		return nil, fmt.Errorf("load topology %s: %w", rootID, err)
	}
	return Decode(data)
}

// PurgeAll удаляет все ключи топологий под префиксом.
func (s *RedisStore) PurgeAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", purgeScanCount).Result()
		if err != nil {
			return fmt.Errorf("scan topologies: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete topologies: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
