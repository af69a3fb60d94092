package dnscache

import (
	"sync"
	"time"
)

var (
	sharedOnce     sync.Once
	sharedCombined *CombinedCache
)

// sharedCombinedCache lazily builds the one combined cache every DNSCache
// in the process shares, so cached information survives across callers
// without anybody passing a cache object around. Configuration comes from
// DefaultCombinedConfigPath; set that before the first DNSCache is built.
func sharedCombinedCache() *CombinedCache {
	sharedOnce.Do(func() {
		config_ := LoadCombinedConfig(DefaultCombinedConfigPath)
		cache_, err := NewCache(nil, DefaultTimeout, nil)
		if err != nil {
			// Endpoints came up empty; keep a resolver wired to the
			// defaults so lookups degrade instead of crashing.
			log.Errorf("unable to build shared resolver: %v", err)
			exchanger_, _ := NewDns53Exchanger(Quad9Dns53Endpoints)
			cache_, _ = NewCache(exchanger_, DefaultTimeout, nil)
		}
		sharedCombined = NewCombinedCache(config_, cache_)
	})
	return sharedCombined
}

// DNSCache is a light per-caller handle on the shared combined cache,
// carrying only that caller's query timeout. The timeout travels as an
// argument on every delegated call, so handles with different timeouts can
// be used from concurrent goroutines without racing on shared state.
type DNSCache struct {
	dnsTimeout time.Duration
	combined   *CombinedCache
}

// NewDNSCache returns a handle with the given per-query timeout; zero or
// negative means DefaultTimeout.
func NewDNSCache(timeout time.Duration) (cache *DNSCache) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DNSCache{dnsTimeout: timeout, combined: sharedCombinedCache()}
}

// Lookup is CombinedCache.Lookup bounded by this handle's timeout.
func (cache *DNSCache) Lookup(question, qType, qClass string, exact bool) []string {
	return cache.combined.lookupWithTimeout(question, qType, qClass, exact, cache.dnsTimeout)
}

// GetNS is Cache.GetNS bounded by this handle's timeout.
func (cache *DNSCache) GetNS(domain string) []string {
	return cache.combined.getNS(domain, cache.dnsTimeout)
}

// Config exposes the shared combined-list configuration, read-only by
// convention.
func (cache *DNSCache) Config() *CombinedConfig {
	return cache.combined.Config()
}
