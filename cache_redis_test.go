package dnscache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Needs a live redis, e.g. REDIS_TEST_URI=redis://127.0.0.1:6379/0.
func Test_Redis_GetSet(t *testing.T) {
	redisURI_ := os.Getenv("REDIS_TEST_URI")
	if redisURI_ == "" {
		t.Skip("REDIS_TEST_URI not set")
	}

	cache_, err := NewCacheRedis(redisURI_)
	assert.Nil(t, err)

	cache_.Set("dns-cache-test-key", []byte("BYTES_ORIGIN_STRING"), 15)
	val_, ok := cache_.Get("dns-cache-test-key")
	assert.True(t, ok)
	assert.Equal(t, []byte("BYTES_ORIGIN_STRING"), val_.([]byte))

	_, ok = cache_.Get("dns-cache-test-missing-key")
	assert.False(t, ok)

	cache_.Set("dns-cache-test-expiring-key", []byte("X"), 1)
	time.Sleep(time.Millisecond * 1100)
	_, ok = cache_.Get("dns-cache-test-expiring-key")
	assert.False(t, ok)
}

func Test_Redis_ParseURLError(t *testing.T) {
	_, err := NewCacheRedis("://not-a-uri")
	assert.NotNil(t, err)
}
