package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/verdemarket/engage-backend/config"
	"github.com/verdemarket/engage-backend/pkg/logger"
)

var client *redis.Client

// Init initializes Redis connection
func Init(cfg *config.RedisConfig) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return nil
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	return client
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		logger.Info("Closing Redis connection", nil)
		return client.Close()
	}
	return nil
}

// CacheShortCode maps a QR short code to its record id on the scan hot path.
// A zero ttl keeps the mapping until the code is deactivated.
func CacheShortCode(ctx context.Context, code, recordID string, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	key := fmt.Sprintf("qr:code:%s", code)
	if err := client.Set(ctx, key, recordID, ttl).Err(); err != nil {
		logger.Error("Failed to cache short code", err, nil)
		return err
	}
	return nil
}

// LookupShortCode resolves a short code from the cache. Returns "" on a miss.
func LookupShortCode(ctx context.Context, code string) (string, error) {
	if client == nil {
		return "", nil
	}
	key := fmt.Sprintf("qr:code:%s", code)
	val, err := client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		logger.Error("Failed to look up short code", err, nil)
		return "", err
	}
	return val, nil
}

// InvalidateShortCode drops a cached short code mapping after deactivation.
func InvalidateShortCode(ctx context.Context, code string) error {
	if client == nil {
		return nil
	}
	return client.Del(ctx, fmt.Sprintf("qr:code:%s", code)).Err()
}

// CacheJSON stores an arbitrary value as JSON under the given key. Used for
// trending-tag snapshots so ranking reads skip the database.
func CacheJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, ttl).Err()
}

// GetJSON loads a cached JSON value into dest. Returns false on a miss.
func GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if client == nil {
		return false, nil
	}
	data, err := client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}
