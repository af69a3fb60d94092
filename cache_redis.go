package dnscache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheRedis keeps the success cache in redis. Values are packed DNS
// messages, so entries can be shared by several processes pointing at the
// same instance; there is no coherency guarantee beyond what redis gives.
type CacheRedis struct {
	client *redis.Client
}

func NewCacheRedis(redisURI string) (cache *CacheRedis, err error) {
	options_, err := redis.ParseURL(redisURI)
	if err != nil {
		return nil, err
	}
	cache = &CacheRedis{client: redis.NewClient(options_)}
	return
}

func (cache *CacheRedis) Get(key string) (val interface{}, ok bool) {
	bytes_, err := cache.client.Get(context.Background(), key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warnf("redis get error: %v", err)
		}
		return nil, false
	}
	return bytes_, true
}

func (cache *CacheRedis) Set(key string, val interface{}, ttl uint32) {
	bytes_, ok := val.([]byte)
	if !ok {
		log.Warnf("redis cache expects packed bytes, got %T", val)
		return
	}
	err := cache.client.Set(context.Background(), key, bytes_,
		time.Second*time.Duration(ttl)).Err()
	if err != nil {
		log.Warnf("redis set error: %v", err)
	}
}
