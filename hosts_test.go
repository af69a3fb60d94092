package dnscache

import (
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

func newTestHostCache(t *testing.T, fake *fakeExchanger) *DNSCache {
	return &DNSCache{
		dnsTimeout: time.Second,
		combined:   NewCombinedCache(nil, newTestCache(t, fake)),
	}
}

func stubHostEnv(t *testing.T, hostname string, localIPs []string) {
	origHostname_, origLocalIPs_ := osHostname, localIPAddresses
	t.Cleanup(func() {
		osHostname, localIPAddresses = origHostname_, origLocalIPs_
	})
	osHostname = func() (string, error) { return hostname, nil }
	localIPAddresses = func(cacheFileName, externalLink string, useCached bool) []string {
		return localIPs
	}
}

func TestHostsEqualLiteralMatch(t *testing.T) {
	cache_ := newTestHostCache(t, &fakeExchanger{})
	assert.True(t, cache_.HostsEqual("localhost", "localhost", "", true, ""))
	assert.True(t, cache_.HostsEqual("10.0.0.1", "10.0.0.1", "", true, ""))
}

func TestHostsEqualDNSAgainstLiteralIP(t *testing.T) {
	fake_ := &fakeExchanger{responses: map[string]*dns.Msg{
		"app.example.com./1": answerMsg("app.example.com", dns.TypeA,
			aRR("app.example.com", "192.0.2.10")),
	}}
	cache_ := newTestHostCache(t, fake_)
	stubHostEnv(t, "otherhost", nil)

	assert.True(t, cache_.HostsEqual("app.example.com", "192.0.2.10", "", true, ""))
	assert.False(t, cache_.HostsEqual("app.example.com", "192.0.2.99", "", true, ""))
}

func TestHostsEqualLocalhostSubstitution(t *testing.T) {
	cache_ := newTestHostCache(t, &fakeExchanger{})
	stubHostEnv(t, "testhost", []string{"10.1.2.3"})

	// "localhost" stands for the canonical hostname; both sides then carry
	// the machine's own address set.
	assert.True(t, cache_.HostsEqual("localhost", "testhost", "cache.bin", true, ""))
}

func TestHostsEqualLoopbackLiteralSubstitution(t *testing.T) {
	cache_ := newTestHostCache(t, &fakeExchanger{})
	stubHostEnv(t, "testhost", []string{"10.1.2.3"})

	// A loopback literal refers to this machine, not to 127.0.0.1 as an
	// address to compare.
	assert.True(t, cache_.HostsEqual("127.0.0.1", "testhost", "cache.bin", true, ""))
	assert.True(t, cache_.HostsEqual("::1", "testhost", "cache.bin", true, ""))
}

func TestHostsEqualSiteLocalSubstitution(t *testing.T) {
	cache_ := newTestHostCache(t, &fakeExchanger{})
	stubHostEnv(t, "testhost", []string{"10.1.2.3"})

	assert.True(t, cache_.HostsEqual("fec0::1", "testhost", "cache.bin", true, ""))
}

func TestHostsEqualHostnameAgainstLocalSet(t *testing.T) {
	cache_ := newTestHostCache(t, &fakeExchanger{})
	stubHostEnv(t, "testhost", []string{"198.51.100.7"})

	// A non-loopback literal matches only through the local address set.
	assert.True(t, cache_.HostsEqual("testhost", "198.51.100.7", "cache.bin", true, ""))
	assert.False(t, cache_.HostsEqual("testhost", "198.51.100.8", "cache.bin", true, ""))
}

func TestHostsEqualAAAAOnlyWhenFirstSideHasOne(t *testing.T) {
	fake_ := &fakeExchanger{responses: map[string]*dns.Msg{
		"v4only.example.com./1": answerMsg("v4only.example.com", dns.TypeA,
			aRR("v4only.example.com", "192.0.2.20")),
		"other.example.com./1": answerMsg("other.example.com", dns.TypeA,
			aRR("other.example.com", "192.0.2.21")),
		"other.example.com./28": answerMsg("other.example.com", dns.TypeAAAA,
			aaaaRR("other.example.com", "2001:db8::21")),
	}}
	cache_ := newTestHostCache(t, fake_)
	stubHostEnv(t, "elsewhere", nil)

	assert.False(t, cache_.HostsEqual("v4only.example.com", "other.example.com", "", true, ""))
	// host1 had no AAAA answer, so host2's AAAA was never fetched.
	assert.Equal(t, 3, fake_.calls)
}

func TestHostsEqualFirstSideAAAATriggersSecond(t *testing.T) {
	fake_ := &fakeExchanger{responses: map[string]*dns.Msg{
		"v6a.example.com./28": answerMsg("v6a.example.com", dns.TypeAAAA,
			aaaaRR("v6a.example.com", "2001:db8::7")),
		"v6b.example.com./28": answerMsg("v6b.example.com", dns.TypeAAAA,
			aaaaRR("v6b.example.com", "2001:db8::7")),
	}}
	cache_ := newTestHostCache(t, fake_)
	stubHostEnv(t, "elsewhere", nil)

	assert.True(t, cache_.HostsEqual("v6a.example.com", "v6b.example.com", "", true, ""))
}

func TestHostsEqualFallbackComparesLiterals(t *testing.T) {
	cache_ := newTestHostCache(t, &fakeExchanger{})
	stubHostEnv(t, "elsewhere", nil)

	// Both sides are plain literals; the getaddrinfo fallback compares
	// them directly without any resolution.
	assert.False(t, cache_.HostsEqual("192.0.2.1", "192.0.2.2", "", false, ""))
}

func TestHostsEqualPackageLevelWrapper(t *testing.T) {
	assert.True(t, HostsEqual("somehost", "somehost", "", true, ""))
}
