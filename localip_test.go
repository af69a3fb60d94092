package dnscache

import (
	"encoding/gob"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalIPAddressesUsesFreshCache(t *testing.T) {
	cacheFile_ := filepath.Join(t.TempDir(), "localips.bin")
	want_ := []string{"203.0.113.9", "2001:db8::9"}
	f_, err := os.Create(cacheFile_)
	if err != nil {
		t.Fatal(err)
	}
	assert.NoError(t, gob.NewEncoder(f_).Encode(want_))
	assert.NoError(t, f_.Close())

	got_ := LocalIPAddresses(cacheFile_, "", true)
	assert.Equal(t, want_, got_)
}

func TestLocalIPAddressesIgnoresStaleCache(t *testing.T) {
	cacheFile_ := filepath.Join(t.TempDir(), "localips.bin")
	stale_ := []string{"203.0.113.9"}
	f_, err := os.Create(cacheFile_)
	if err != nil {
		t.Fatal(err)
	}
	assert.NoError(t, gob.NewEncoder(f_).Encode(stale_))
	assert.NoError(t, f_.Close())
	old_ := time.Now().Add(-25 * time.Hour)
	assert.NoError(t, os.Chtimes(cacheFile_, old_, old_))

	got_ := LocalIPAddresses(cacheFile_, "", true)
	// The stale entry was refreshed from a live enumeration and the file
	// rewritten.
	assert.Equal(t, RemoveSliceDuplicate(localInterfaceAddresses()), got_)
	stat_, err := os.Stat(cacheFile_)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now(), stat_.ModTime(), time.Minute)
}

func TestLocalIPAddressesReplacesCorruptCache(t *testing.T) {
	cacheFile_ := filepath.Join(t.TempDir(), "localips.bin")
	assert.NoError(t, os.WriteFile(cacheFile_, []byte("not gob at all"), 0o644))

	got_ := LocalIPAddresses(cacheFile_, "", true)
	assert.Equal(t, RemoveSliceDuplicate(localInterfaceAddresses()), got_)

	// The replacement cache decodes cleanly.
	if len(got_) > 0 {
		cached_, ok := readLocalIPCache(cacheFile_)
		assert.True(t, ok)
		assert.Equal(t, got_, cached_)
	}
}

func TestFetchExternalIP(t *testing.T) {
	server_ := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dns-cache/"+CurrentVersion, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("203.0.113.7\n"))
	}))
	defer server_.Close()

	ip_, err := fetchExternalIP(server_.URL)
	assert.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip_)
}

func TestFetchExternalIPStripsMappedPrefix(t *testing.T) {
	server_ := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("::ffff:198.51.100.4"))
	}))
	defer server_.Close()

	ip_, err := fetchExternalIP(server_.URL)
	assert.NoError(t, err)
	assert.Equal(t, "198.51.100.4", ip_)
}
