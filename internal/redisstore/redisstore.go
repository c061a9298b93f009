// Package redisstore keeps progress records in Redis, so pollers in other processes (e.g. a web front-end) can read
// them while a transfer is running.
package redisstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/alanbriolat/video-uploader/generic"
)

const DefaultKeyPrefix = "upload_progress:"

type Store struct {
	rdb    *redis.Client
	prefix string
}

// New wraps an existing client. Keys are the upload identifier behind prefix; records never expire.
func New(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

// Open connects to a redis:// URL and checks the server responds.
func Open(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return New(rdb, DefaultKeyPrefix), nil
}

func (s *Store) SetItem(ctx context.Context, id string, value string) error {
	return s.rdb.Set(ctx, s.prefix+id, value, 0).Err()
}

func (s *Store) GetItem(ctx context.Context, id string) (generic.Option[string], error) {
	value, err := s.rdb.Get(ctx, s.prefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return generic.None[string](), nil
	} else if err != nil {
		return generic.None[string](), err
	}
	return generic.Some(value), nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
