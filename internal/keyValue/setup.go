package keyValue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type value struct {
	value   string
	expires time.Time
}

var mutex sync.RWMutex
var hashmap = make(map[string]value)

var sugar = zap.NewNop().Sugar()
var redisClient *redis.Client
var prefix string
var selfContained = true

// Setup selects redis when redisClient isn't nil, an in-process map otherwise.
// Keys are namespaced with keyPrefix so several projects can share one redis.
func Setup(ctx context.Context, _sugar *zap.SugaredLogger, _redisClient *redis.Client, keyPrefix string) {
	sugar = _sugar
	redisClient = _redisClient
	selfContained = _redisClient == nil
	prefix = keyPrefix + ":"

	if selfContained {
		go checkForLocalExpiredKeys(ctx)
	}
}

func checkForLocalExpiredKeys(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			mutex.Lock()
			for key, v := range hashmap {
				if v.expires.Before(now) {
					delete(hashmap, key)
				}
			}
			mutex.Unlock()
		}
	}
}

// Get returns "" for missing or expired keys.
func Get(ctx context.Context, key string) (string, error) {
	key = prefix + key
	if selfContained {
		sugar.Debugf("Getting value of key [%s] from hashmap", key)

		mutex.RLock()
		defer mutex.RUnlock()

		v, ok := hashmap[key]
		if !ok || v.expires.Before(time.Now()) {
			return "", nil
		}
		return v.value, nil
	}

	sugar.Debugf("Getting value of key [%s] from redis", key)

	value, err := redisClient.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

func Set(ctx context.Context, key string, v string, expires time.Duration) error {
	key = prefix + key
	if selfContained {
		sugar.Debugf("Setting value of key [%s] in hashmap", key)

		mutex.Lock()
		defer mutex.Unlock()

		hashmap[key] = value{v, time.Now().Add(expires)}
		return nil
	}

	sugar.Debugf("Setting value of key [%s] in redis", key)
	return redisClient.Set(ctx, key, v, expires).Err()
}

func Del(ctx context.Context, key string) error {
	key = prefix + key
	if selfContained {
		mutex.Lock()
		defer mutex.Unlock()

		delete(hashmap, key)
		return nil
	}

	return redisClient.Del(ctx, key).Err()
}
