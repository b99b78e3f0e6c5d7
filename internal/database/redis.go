package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Code-Sangam/Sangam-6704/internal/config"
	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client
var Ctx = context.Background()

func InitRedis() {
	Redis = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	_, err := Redis.Ping(Ctx).Result()
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Message rate limiting will be disabled.", err)
	} else {
		log.Println("Connected to Redis successfully")
	}
}

// CheckRateLimit increments a per-user counter and reports whether the
// user is still within limit for the window. Fails open when Redis is
// unreachable so chat keeps working without it.
func CheckRateLimit(userID string, limit int, window time.Duration) (bool, error) {
	if Redis == nil {
		return true, nil
	}

	key := fmt.Sprintf("chat_rate:%s", userID)
	count, err := Redis.Incr(Ctx, key).Result()
	if err != nil {
		return true, err
	}

	if count == 1 {
		Redis.Expire(Ctx, key, window)
	}

	if count > int64(limit) {
		return false, nil
	}
	return true, nil
}
