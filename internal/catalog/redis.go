package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/shaiso/tabledisco/internal/domain"
)

const (
	defaultPrefix = "tabledisco:"
	unitsKey      = "units"
	maxTxRetries  = 5
)

// Redis — Catalog в одном hash: поле — путь таблицы, значение — Unit в JSON.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis создаёт каталог. Пустой prefix — "tabledisco:".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{client: client, key: prefix + unitsKey}
}

// IsProcessed проверяет, есть ли таблица в каталоге.
func (r *Redis) IsProcessed(ctx context.Context, path string) (bool, error) {
	ok, err := r.client.HExists(ctx, r.key, path).Result()
	if err != nil {
		return false, fmt.Errorf("check unit %s: %w", path, err)
	}
	return ok, nil
}

// MarkProcessed записывает Unit, перезаписывая прежнюю запись.
func (r *Redis) MarkProcessed(ctx context.Context, unit domain.Unit) error {
	data, err := json.Marshal(unit)
	if err != nil {
		return fmt.Errorf("marshal unit: %w", err)
	}
	if err := r.client.HSet(ctx, r.key, unit.Path, data).Err(); err != nil {
		return fmt.Errorf("save unit %s: %w", unit.Path, err)
	}
	return nil
}

// Get возвращает Unit по пути или ErrNotFound.
func (r *Redis) Get(ctx context.Context, path string) (domain.Unit, error) {
	return r.get(ctx, r.client, path)
}

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func (r *Redis) get(ctx context.Context, c hashGetter, path string) (domain.Unit, error) {
	data, err := c.HGet(ctx, r.key, path).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Unit{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return domain.Unit{}, fmt.Errorf("get unit %s: %w", path, err)
	}
	var unit domain.Unit
	if err := json.Unmarshal(data, &unit); err != nil {
		return domain.Unit{}, fmt.Errorf("unmarshal unit %s: %w", path, err)
	}
	return unit, nil
}

// AddNodes дополняет ссылки таблицы. Чтение и запись идут под WATCH,
// параллельные стадии профилирования не теряют изменения друг друга.
func (r *Redis) AddNodes(ctx context.Context, path string, nodes map[string]string) error {
	txf := func(tx *redis.Tx) error {
		unit, err := r.get(ctx, tx, path)
		if err != nil {
			return err
		}
		if unit.MergeNodes(nodes) == 0 {
			return nil
		}
		data, err := json.Marshal(unit)
		if err != nil {
			return fmt.Errorf("marshal unit: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key, path, data)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, r.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("add nodes to %s: %w", path, err)
		}
		return err
	}
	return fmt.Errorf("add nodes to %s: too much contention", path)
}

// List возвращает таблицы, отсортированные по пути. Пустой bucket — все.
func (r *Redis) List(ctx context.Context, bucket string) ([]domain.Unit, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}

	out := make([]domain.Unit, 0, len(all))
	for path, raw := range all {
		var unit domain.Unit
		if err := json.Unmarshal([]byte(raw), &unit); err != nil {
			return nil, fmt.Errorf("unmarshal unit %s: %w", path, err)
		}
		if bucket != "" && unit.Bucket != bucket {
			continue
		}
		out = append(out, unit)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// PurgeAll удаляет весь каталог.
func (r *Redis) PurgeAll(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("purge units: %w", err)
	}
	return nil
}
