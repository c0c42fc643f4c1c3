package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medplan/medplan-api/internal/config"
	"github.com/medplan/medplan-api/internal/repository"
	"github.com/medplan/medplan-api/pkg/metrics"
)

// objectsKey is the hash where provisioned addresses are registered with
// their display names, mirroring the object tree of the state substrate.
const objectsKey = "_objects"

// Store implements repository.StateStore on a Redis backend. One Redis
// string key per address, values are raw JSON strings.
type Store struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

func New(cfg config.RedisConfig, m *metrics.Metrics) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, metrics: m}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client, m *metrics.Metrics) *Store {
	return &Store{client: client, metrics: m}
}

func (s *Store) Get(ctx context.Context, address string) (string, bool, error) {
	defer s.observe("get", time.Now())

	val, err := s.client.Get(ctx, address).Result()
	if errors.Is(err, redis.Nil) {
		s.count("get", "miss")
		return "", false, nil
	}
	if err != nil {
		s.count("get", "error")
		return "", false, fmt.Errorf("failed to read state %s: %w", address, err)
	}

	s.count("get", "success")
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, address, value string) error {
	defer s.observe("set", time.Now())

	if err := s.client.Set(ctx, address, value, 0).Err(); err != nil {
		s.count("set", "error")
		return fmt.Errorf("failed to write state %s: %w", address, err)
	}

	s.count("set", "success")
	return nil
}

func (s *Store) EnsureExists(ctx context.Context, address, displayName string) error {
	defer s.observe("ensure", time.Now())

	pipe := s.client.Pipeline()
	pipe.SetNX(ctx, address, "", 0)
	pipe.HSetNX(ctx, objectsKey, address, displayName)
	if _, err := pipe.Exec(ctx); err != nil {
		s.count("ensure", "error")
		return fmt.Errorf("failed to provision state %s: %w", address, err)
	}

	s.count("ensure", "success")
	return nil
}

func (s *Store) Delete(ctx context.Context, address string) error {
	defer s.observe("delete", time.Now())

	pipe := s.client.Pipeline()
	pipe.Del(ctx, address)
	pipe.HDel(ctx, objectsKey, address)
	if _, err := pipe.Exec(ctx); err != nil {
		s.count("delete", "error")
		return fmt.Errorf("failed to delete state %s: %w", address, err)
	}

	s.count("delete", "success")
	return nil
}

// Ping reports backend reachability; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) count(op, status string) {
	if s.metrics != nil {
		s.metrics.StoreOperations.WithLabelValues(op, status).Inc()
	}
}

func (s *Store) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

var _ repository.StateStore = (*Store)(nil)
