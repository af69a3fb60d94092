package dnscache

var (
	InternalCacheBackend = "internal"
	RedisCacheBackend    = "redis"
)

// StoreOptions selects the success-cache backend. TTL is in seconds; zero
// means entries never expire, which is the contract this library assumes
// for short-lived processes.
type StoreOptions struct {
	Backend  string
	RedisURI string
	TTL      uint32
}

type CacheStore interface {
	Get(key string) (val interface{}, ok bool)
	Set(key string, val interface{}, ttl uint32)
}
