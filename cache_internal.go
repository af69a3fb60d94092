package dnscache

import (
	"time"

	"github.com/ReneKroon/ttlcache"
)

type CacheInternal struct {
	cacher *ttlcache.Cache
}

func NewCacheInternal() (cache *CacheInternal) {
	cacher := ttlcache.NewCache()
	cacher.SkipTtlExtensionOnHit(true)
	cache = &CacheInternal{cacher: cacher}
	return
}

func (cache *CacheInternal) Get(key string) (val interface{}, ok bool) {
	val, ok = cache.cacher.Get(key)
	return
}

func (cache *CacheInternal) Set(key string, val interface{}, ttl uint32) {
	if ttl == 0 {
		cache.cacher.Set(key, val)
		return
	}
	cache.cacher.SetWithTTL(key, val, time.Second*time.Duration(ttl))
}
