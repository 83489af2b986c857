package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mensajeropro/mensajero/internal/pkg/env"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// SetupCache initializes the connection to the Redis server used for
// cross-instance order locks.
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")
	password := env.GetEnv("CACHE_PASSWORD", "")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	} else {
		log.Printf("Successfully connected to Redis cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Ping reports whether the cache is reachable.
func Ping(ctx context.Context) error {
	return GetClient().Ping(ctx).Err()
}
