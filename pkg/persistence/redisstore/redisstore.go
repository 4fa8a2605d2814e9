// Package redisstore keeps verification attempts in Redis.
//
// Each attempt is a JSON string keyed by id. A sorted set per
// (subject, service, action) indexes attempt ids by issue time.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "lendstate:verification:"

// VerificationRepository implements persistence.VerificationRepository on Redis.
type VerificationRepository struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

type Option func(*VerificationRepository)

// WithPrefix namespaces every key written by the repository.
func WithPrefix(prefix string) Option {
	return func(r *VerificationRepository) {
		r.prefix = prefix
	}
}

// WithRetention expires attempt documents this long after they are issued.
func WithRetention(retention time.Duration) Option {
	return func(r *VerificationRepository) {
		r.retention = retention
	}
}

func New(client redis.UniversalClient, opts ...Option) *VerificationRepository {
	r := &VerificationRepository{
		client: client,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Open connects to the Redis server at url and verifies it answers.
func Open(ctx context.Context, url string, opts ...Option) (*VerificationRepository, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(client, opts...), nil
}

func (r *VerificationRepository) Close() error {
	return r.client.Close()
}

func (r *VerificationRepository) attemptKey(id string) string {
	return r.prefix + "attempt:" + id
}

func (r *VerificationRepository) indexKey(key models.AttemptKey) string {
	return r.prefix + "index:" + key.Encoded()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *VerificationRepository) get(ctx context.Context, src getter, id string) (*models.VerificationAttempt, error) {
	body, err := src.Get(ctx, r.attemptKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.ErrAttemptNotFound
		}

		return nil, fmt.Errorf("failed to get attempt %s: %w", id, err)
	}

	var attempt models.VerificationAttempt

	err = json.Unmarshal(body, &attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempt %s: %w", id, err)
	}

	return &attempt, nil
}

func (r *VerificationRepository) Latest(ctx context.Context, key models.AttemptKey) (*models.VerificationAttempt, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(key), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read attempt index: %w", err)
	}

	if len(ids) == 0 {
		return nil, persistence.ErrAttemptNotFound
	}

	return r.get(ctx, r.client, ids[0])
}

func (r *VerificationRepository) CountIssuedSince(ctx context.Context, key models.AttemptKey, since time.Time) (int, error) {
	count, err := r.client.ZCount(ctx, r.indexKey(key), strconv.FormatInt(since.UnixNano(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	return int(count), nil
}

func (r *VerificationRepository) Create(ctx context.Context, attempt *models.VerificationAttempt) error {
	body, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt %s: %w", attempt.ID, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.attemptKey(attempt.ID), body, r.retention)
		pipe.ZAdd(ctx, r.indexKey(attempt.Key()), redis.Z{
			Score:  float64(attempt.IssuedAt.UnixNano()),
			Member: attempt.ID,
		})

		if r.retention > 0 {
			pipe.Expire(ctx, r.indexKey(attempt.Key()), r.retention)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create attempt %s: %w", attempt.ID, err)
	}

	return nil
}

// Update uses WATCH on the attempt document so a concurrent writer aborts the transaction.
func (r *VerificationRepository) Update(ctx context.Context, attempt *models.VerificationAttempt) error {
	docKey := r.attemptKey(attempt.ID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, attempt.ID)
		if err != nil {
			return err
		}

		if current.Version != attempt.Version {
			return persistence.ErrConcurrentUpdate
		}

		next := *attempt
		next.Version++

		body, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("failed to marshal attempt %s: %w", attempt.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, docKey, body, redis.KeepTTL)

			return nil
		})

		return err
	}, docKey)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return persistence.ErrConcurrentUpdate
		}

		return err
	}

	attempt.Version++

	return nil
}
