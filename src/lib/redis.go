package lib

import (
	"context"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

const ParkingStatusKey = "parking:status"

// InvalidateParkingStatus drops the cached lot snapshot. Called after
// every spot state change so readers never see a stale free count.
func InvalidateParkingStatus(ctx context.Context) {
	rd := GetRedisClient()
	if rd == nil {
		return
	}
	if err := rd.Del(ctx, ParkingStatusKey).Err(); err != nil {
		log.Printf("[redis] Failed to invalidate %s: %s\n", ParkingStatusKey, err.Error())
	}
}
