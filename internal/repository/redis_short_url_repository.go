package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/SergeiKhy/url-service/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisMaxTxRetries = 10

const (
	createOK = iota
	createSlugTaken
	createIDTaken
)

// KEYS: slug key, id key. ARGV: id, record JSON.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 1
end
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 2
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[2])
return 0
`)

// redisGetter is satisfied by both *redis.Client and *redis.Tx.
type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisShortURLRepository stores each record as JSON under short_url:id:<id>
// and indexes it by slug under short_url:slug:<slug>.
type RedisShortURLRepository struct {
	redis *RedisDB
}

// NewRedisShortURLRepository returns a repository over an open client.
func NewRedisShortURLRepository(redis *RedisDB) *RedisShortURLRepository {
	return &RedisShortURLRepository{redis: redis}
}

// Create claims the slug and stores the record in one script, so a record
// never exists without its slug key and the reverse.
func (r *RedisShortURLRepository) Create(ctx context.Context, record *models.ShortURLRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal short url: %w", err)
	}

	keys := []string{r.slugKey(record.Slug), r.idKey(record.ID)}
	result, err := createScript.Run(ctx, r.redis.Client, keys, record.ID, data).Int()
	if err != nil {
		return fmt.Errorf("failed to create short url: %w", err)
	}

	switch result {
	case createOK:
		return nil
	case createSlugTaken:
		return apperr.SlugExists(record.Slug)
	case createIDTaken:
		return apperr.New(apperr.CodeInvalid, "short url with id %q already exists", record.ID)
	default:
		return fmt.Errorf("unexpected create result %d", result)
	}
}

func (r *RedisShortURLRepository) GetByID(ctx context.Context, id string) (*models.ShortURLRecord, error) {
	record, err := r.get(ctx, r.redis.Client, id)
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFoundByID(id)
	}
	return record, err
}

func (r *RedisShortURLRepository) GetBySlug(ctx context.Context, slug string) (*models.ShortURLRecord, error) {
	id, err := r.redis.Client.Get(ctx, r.slugKey(slug)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFoundBySlug(slug)
		}
		return nil, fmt.Errorf("failed to get short url: %w", err)
	}

	record, err := r.get(ctx, r.redis.Client, id)
	if errors.Is(err, redis.Nil) {
		// Deleted between the two reads.
		return nil, apperr.NotFoundBySlug(slug)
	}
	return record, err
}

// Update applies the patch inside an optimistic WATCH transaction and
// retries when another writer touches the record first.
func (r *RedisShortURLRepository) Update(ctx context.Context, id string, patch models.ShortURLPatch) error {
	key := r.idKey(id)

	txf := func(tx *redis.Tx) error {
		record, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		patch.Apply(record)

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal short url: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	return r.watch(ctx, id, txf, key)
}

func (r *RedisShortURLRepository) Delete(ctx context.Context, id string) error {
	key := r.idKey(id)

	txf := func(tx *redis.Tx) error {
		record, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key, r.slugKey(record.Slug))
			return nil
		})
		return err
	}

	return r.watch(ctx, id, txf, key)
}

func (r *RedisShortURLRepository) watch(ctx context.Context, id string, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < redisMaxTxRetries; i++ {
		err := r.redis.Client.Watch(ctx, txf, keys...)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return apperr.NotFoundByID(id)
		default:
			return err
		}
	}
	return apperr.New(apperr.CodeUnavailable, "short url %q is being modified concurrently", id)
}

func (r *RedisShortURLRepository) get(ctx context.Context, c redisGetter, id string) (*models.ShortURLRecord, error) {
	data, err := c.Get(ctx, r.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get short url: %w", err)
	}

	var record models.ShortURLRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal short url: %w", err)
	}
	return &record, nil
}

func (r *RedisShortURLRepository) idKey(id string) string {
	return "short_url:id:" + id
}

func (r *RedisShortURLRepository) slugKey(slug string) string {
	return "short_url:slug:" + slug
}
