package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a flight is not cached
var ErrMiss = errors.New("cache miss")

// FlightCache caches flight snapshots for the read endpoints. It is never
// consulted on the purchase path.
//
// Every Invalidate bumps the flight's generation. A reader takes the
// generation before loading from the store and hands it to SetFlight, which
// drops the snapshot if an invalidation landed in between.
type FlightCache interface {
	GetFlight(ctx context.Context, id string) (*models.Flight, error)
	Generation(ctx context.Context, id string) (int64, error)
	SetFlight(ctx context.Context, flight *models.Flight, generation int64) error
	Invalidate(ctx context.Context, ids ...string) error
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache stores flights as JSON under flight:<id> and their generation
// counters under flight:<id>:gen
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and pings it
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client, cfg.TTL), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func flightKey(id string) string {
	return "flight:" + id
}

func generationKey(id string) string {
	return "flight:" + id + ":gen"
}

// setIfGeneration writes KEYS[1] only while KEYS[2] still holds ARGV[1]
var setIfGeneration = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[2]) or "0")
if current ~= tonumber(ARGV[1]) then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

func (c *RedisCache) GetFlight(ctx context.Context, id string) (*models.Flight, error) {
	raw, err := c.client.Get(ctx, flightKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to get cached flight: %w", err)
	}

	var flight models.Flight
	if err := json.Unmarshal(raw, &flight); err != nil {
		return nil, fmt.Errorf("failed to decode cached flight: %w", err)
	}
	return &flight, nil
}

func (c *RedisCache) Generation(ctx context.Context, id string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get flight generation: %w", err)
	}
	return gen, nil
}

func (c *RedisCache) SetFlight(ctx context.Context, flight *models.Flight, generation int64) error {
	raw, err := json.Marshal(flight)
	if err != nil {
		return fmt.Errorf("failed to encode flight: %w", err)
	}
	keys := []string{flightKey(flight.ID), generationKey(flight.ID)}
	err = setIfGeneration.Run(ctx, c.client, keys, generation, raw, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to cache flight: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, generationKey(id))
			pipe.Del(ctx, flightKey(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate flights: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Nop never caches anything
type Nop struct{}

func (Nop) GetFlight(ctx context.Context, id string) (*models.Flight, error)             { return nil, ErrMiss }
func (Nop) Generation(ctx context.Context, id string) (int64, error)                     { return 0, nil }
func (Nop) SetFlight(ctx context.Context, flight *models.Flight, generation int64) error { return nil }
func (Nop) Invalidate(ctx context.Context, ids ...string) error                          { return nil }

var (
	_ FlightCache = (*RedisCache)(nil)
	_ FlightCache = Nop{}
)
