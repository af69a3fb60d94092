package dnscache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	logger "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds the complete upstream query unless a caller
// overrides it per call.
const DefaultTimeout = 10 * time.Second

// queryKey identifies a cacheable unit of resolution work. No case or
// trailing-dot normalization happens here on purpose: two spellings of the
// same name are two cache entries.
type queryKey struct {
	question string
	qType    uint16
	qClass   uint16
}

type failureKind int

const (
	failNone failureKind = iota
	failNXDomain
	failTimeout
	failNoAnswer
	failNoNameservers
	failMalformed
)

// Record types that are commonly absent; a missing answer for anything
// else usually points at a nameserver misconfiguration.
var commonlyAbsentTypes = []string{"MX", "AAAA", "TXT"}

// Cache memoizes DNS lookups in memory, successes and failures both. It is
// meant to live as long as the process does; nothing is ever evicted, which
// is fine for short-lived processes and deliberate for everything this
// library is used by.
type Cache struct {
	exchanger    Exchanger
	timeout      time.Duration
	store        CacheStore
	storeBackend string
	storeTTL     uint32

	// MinTTL floors the store TTL when a bounded cache_ttl is configured.
	// Some servers always answer with a TTL of zero, turning this up a bit
	// is reasonable there.
	MinTTL uint32

	// TimeoutLogLevel is the severity for timed-out lookups. Info by
	// default: the process is short-lived and a repeat timeout on the same
	// key next run is expected, so the entry is informative, not alarming.
	TimeoutLogLevel logger.Level

	mu         sync.Mutex
	failures   map[queryKey][]string
	nsCache    map[string][]string
	nsFailures map[string]bool
}

// NewCache builds a resolver cache. A nil exchanger selects the pooled
// dns53 transport against the system resolvers; a nil storeOptions selects
// the in-process store.
func NewCache(exchanger Exchanger, timeout time.Duration, storeOptions *StoreOptions) (cache *Cache, err error) {
	if exchanger == nil {
		exchanger, err = NewDns53Exchanger(nil)
		if err != nil {
			return nil, err
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cache = &Cache{
		exchanger:       exchanger,
		timeout:         timeout,
		TimeoutLogLevel: logger.InfoLevel,
		failures:        map[queryKey][]string{},
		nsCache:         map[string][]string{},
		nsFailures:      map[string]bool{},
	}
	if storeOptions == nil {
		storeOptions = &StoreOptions{Backend: InternalCacheBackend}
	}
	switch storeOptions.Backend {
	case RedisCacheBackend:
		cache.store, err = NewCacheRedis(storeOptions.RedisURI)
		if err != nil {
			return nil, err
		}
		cache.storeBackend = RedisCacheBackend
	default:
		cache.store = NewCacheInternal()
		cache.storeBackend = InternalCacheBackend
	}
	cache.storeTTL = storeOptions.TTL
	return
}

// NewCacheFromOptions builds a resolver cache from a ResolverOptions file
// model.
func NewCacheFromOptions(options ResolverOptions) (cache *Cache, err error) {
	if options.LogLevel != "" {
		SetLogLevel(options.LogLevel)
	}
	var endpoints_ []string
	if strings.TrimSpace(options.Endpoints) != "" {
		for _, edp := range strings.Split(options.Endpoints, ",") {
			endpoints_ = append(endpoints_, strings.TrimSpace(edp))
		}
	}
	var exchanger_ Exchanger
	if options.UpstreamProto == UpstreamProtoDoh {
		if len(endpoints_) == 0 {
			endpoints_ = Quad9DohEndpoints
		}
		exchanger_ = NewDohExchanger(endpoints_, false)
	} else {
		exchanger_, err = NewDns53Exchanger(endpoints_)
		if err != nil {
			return nil, err
		}
	}
	cache, err = NewCache(exchanger_,
		time.Second*time.Duration(options.TimeoutSeconds),
		&StoreOptions{Backend: options.CacheBackend, RedisURI: options.RedisURI, TTL: options.CacheTTL})
	if err != nil {
		return nil, err
	}
	cache.MinTTL = options.MinTTL
	return
}

// Lookup resolves question for the given record type and class, e.g.
// ("example.com", "A", "IN"). Expected DNS failures never surface as
// errors, the result is simply empty and the failure is memoized. With
// exact set, every answer record matching the requested type and class is
// returned across record sets, in response order, without deduplication.
// Without exact only the first answer record set is returned verbatim,
// even if its type differs from the request; callers rely on that quirk.
func (cache *Cache) Lookup(question, qType, qClass string, exact bool) []string {
	return cache.lookupWithTimeout(question, qType, qClass, exact, cache.timeout)
}

func (cache *Cache) lookupWithTimeout(question, qType, qClass string, exact bool,
	timeout time.Duration) []string {

	rdType_, ok := dns.StringToType[qType]
	if !ok {
		log.Warnf("%s %s lookup failed: unknown record type", question, qType)
		return []string{}
	}
	rdClass_, ok := dns.StringToClass[qClass]
	if !ok {
		log.Warnf("%s %s lookup failed: unknown record class %s", question, qType, qClass)
		return []string{}
	}
	key_ := queryKey{question: question, qType: rdType_, qClass: rdClass_}
	cache.mu.Lock()
	if cached_, ok := cache.failures[key_]; ok {
		cache.mu.Unlock()
		return cached_
	}
	cache.mu.Unlock()

	storeKey_ := fmt.Sprintf("NAME[%s]TYPE[%d]CLASS[%d]", question, rdType_, rdClass_)
	msg_, ok := cache.getCachedMsg(storeKey_)
	if !ok {
		req_ := new(dns.Msg)
		req_.SetQuestion(dns.Fqdn(question), rdType_)
		req_.Question[0].Qclass = rdClass_
		req_.RecursionDesired = true
		rsp_, err := cache.exchanger.Exchange(req_, timeout)
		kind_, detail_ := classifyExchange(rsp_, err)
		switch kind_ {
		case failNXDomain:
			// A valid negative answer, not an error condition.
			return cache.recordFailure(key_)
		case failTimeout:
			log.Logf(cache.TimeoutLogLevel, "%s %s lookup timed out.", question, qType)
			return cache.recordFailure(key_)
		case failNoAnswer, failNoNameservers:
			if !SliceContains(commonlyAbsentTypes, qType) {
				log.Debugf("%s %s lookup failed: %s", question, qType, detail_)
			}
			return cache.recordFailure(key_)
		case failMalformed:
			log.Warnf("%s %s lookup failed: %s", question, qType, detail_)
			return cache.recordFailure(key_)
		}
		msg_ = rsp_
		cache.setCachedMsg(storeKey_, msg_)
	}
	if exact {
		return exactRecords(msg_, rdType_, rdClass_)
	}
	return firstRRSetValues(msg_)
}

func (cache *Cache) recordFailure(key queryKey) []string {
	cache.mu.Lock()
	cache.failures[key] = []string{}
	cache.mu.Unlock()
	return []string{}
}

func (cache *Cache) getCachedMsg(key string) (msg *dns.Msg, ok bool) {
	val_, ok := cache.store.Get(key)
	if !ok {
		return nil, false
	}
	if cache.storeBackend == InternalCacheBackend {
		msg, ok = val_.(*dns.Msg)
		return
	}
	bytes_, ok := val_.([]byte)
	if !ok {
		return nil, false
	}
	msg = new(dns.Msg)
	if err := msg.Unpack(bytes_); err != nil {
		log.Warnf("bad cached message for %s: %v", key, err)
		return nil, false
	}
	return msg, true
}

func (cache *Cache) setCachedMsg(key string, msg *dns.Msg) {
	ttl_ := cache.storeTTL
	if ttl_ > 0 && ttl_ < cache.MinTTL {
		ttl_ = cache.MinTTL
	}
	if cache.storeBackend == InternalCacheBackend {
		cache.store.Set(key, msg, ttl_)
		return
	}
	bytes_, err := msg.Pack()
	if err != nil {
		log.Warnf("unable to pack message for %s: %v", key, err)
		return
	}
	cache.store.Set(key, bytes_, ttl_)
}

// GetNS resolves the nameserver names for domain, like Lookup(domain,
// "NS"), except that a CNAME answer triggers one level of indirection: the
// immediate parent zone's nameservers are asked for the domain's NS
// directly and the names from their additional section are used. The full
// sequence is memoized only when the chase completes.
func (cache *Cache) GetNS(domain string) []string {
	return cache.getNS(domain, cache.timeout)
}

func (cache *Cache) getNS(domain string, timeout time.Duration) (names []string) {
	cache.mu.Lock()
	if cache.nsFailures[domain] {
		cache.mu.Unlock()
		return nil
	}
	if cached_, ok := cache.nsCache[domain]; ok {
		cache.mu.Unlock()
		return append([]string(nil), cached_...)
	}
	cache.mu.Unlock()

	req_ := new(dns.Msg)
	req_.SetQuestion(dns.Fqdn(domain), dns.TypeNS)
	req_.RecursionDesired = true
	rsp_, err := cache.exchanger.Exchange(req_, timeout)
	kind_, detail_ := classifyExchange(rsp_, err)
	switch kind_ {
	case failNXDomain:
		// A valid negative answer, remembered as such.
		cache.mu.Lock()
		cache.nsFailures[domain] = true
		cache.mu.Unlock()
		return nil
	case failTimeout:
		log.Logf(cache.TimeoutLogLevel, "%s NS lookup timed out.", domain)
		return nil
	case failNoNameservers, failMalformed:
		log.Debugf("%s NS lookup failed: %s", domain, detail_)
		return nil
	}
	// An empty NS answer is worth memoizing too.
	names = []string{}
	for _, rr := range rsp_.Answer {
		if _, isCNAME_ := rr.(*dns.CNAME); isCNAME_ {
			parentNames_, ok := cache.chaseParentNS(domain, timeout)
			names = append(names, parentNames_...)
			if !ok {
				// Aborted mid-chase: keep what was produced, memoize
				// nothing.
				return names
			}
		} else {
			names = append(names, RdataText(rr))
		}
	}
	cache.mu.Lock()
	cache.nsCache[domain] = append([]string(nil), names...)
	cache.mu.Unlock()
	return names
}

// chaseParentNS asks a nameserver of domain's immediate parent zone for
// domain's NS records and returns the names from the additional section.
// Only one level of indirection is followed; domains hiding behind chains
// of CNAMEs end up here with a partial or empty result.
func (cache *Cache) chaseParentNS(domain string, timeout time.Duration) (names []string, ok bool) {
	parts_ := strings.SplitN(domain, ".", 2)
	if len(parts_) < 2 || parts_[1] == "" {
		log.Debugf("%s NS lookup failed.", domain)
		return nil, false
	}
	parent_ := parts_[1]
	if !strings.HasSuffix(parent_, ".") {
		parent_ += "."
	}
	parentNSNames_ := cache.lookupWithTimeout(parent_, "NS", "IN", false, timeout)
	if len(parentNSNames_) == 0 {
		log.Debugf("%s NS lookup failed.", domain)
		return nil, false
	}
	choice_ := parentNSNames_[rand.Intn(len(parentNSNames_))]
	parentAddrs_ := cache.lookupWithTimeout(choice_, "A", "IN", false, timeout)
	if len(parentAddrs_) == 0 {
		log.Debugf("%s NS lookup has no parent.", domain)
		return nil, false
	}
	req_ := new(dns.Msg)
	req_.SetQuestion(dns.Fqdn(domain), dns.TypeNS)
	req_.RecursionDesired = true
	var (
		rsp_ *dns.Msg
		err  error
	)
	for _, addr_ := range parentAddrs_ {
		rsp_, err = cache.exchanger.ExchangeWith(net.JoinHostPort(addr_, "53"), req_, timeout)
		if err == nil {
			break
		}
	}
	kind_, detail_ := classifyExchange(rsp_, err)
	switch kind_ {
	case failNXDomain:
		cache.mu.Lock()
		cache.nsFailures[domain] = true
		cache.mu.Unlock()
		return nil, false
	case failTimeout:
		log.Logf(cache.TimeoutLogLevel, "%s NS parent lookup timed out.", domain)
		return nil, false
	case failNoNameservers, failMalformed:
		log.Debugf("%s NS parent lookup failed: %s", domain, detail_)
		return nil, false
	}
	names = []string{}
	for _, extra_ := range rsp_.Extra {
		if _, isOPT_ := extra_.(*dns.OPT); isOPT_ {
			continue
		}
		names = append(names, extra_.Header().Name)
	}
	return names, true
}

// classifyExchange sorts an exchange outcome into the four expected
// failure conditions, or failNone for a usable answer.
func classifyExchange(rsp *dns.Msg, err error) (kind failureKind, detail string) {
	if err != nil {
		if isTimeoutError(err) {
			return failTimeout, err.Error()
		}
		var dnsErr_ *dns.Error
		if errors.As(err, &dnsErr_) {
			// A bad DNS entry.
			return failMalformed, err.Error()
		}
		return failNoNameservers, err.Error()
	}
	if rsp == nil {
		return failNoNameservers, "no response"
	}
	switch rsp.Rcode {
	case dns.RcodeSuccess:
		if len(rsp.Answer) == 0 {
			return failNoAnswer, "no answer"
		}
		return failNone, ""
	case dns.RcodeNameError:
		return failNXDomain, ""
	default:
		return failNoNameservers, fmt.Sprintf("rcode %s", dns.RcodeToString[rsp.Rcode])
	}
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr_ net.Error
	return errors.As(err, &netErr_) && netErr_.Timeout()
}

func exactRecords(msg *dns.Msg, rdType, rdClass uint16) (values []string) {
	values = []string{}
	for _, rr := range msg.Answer {
		hdr_ := rr.Header()
		if hdr_.Rrtype == rdType && hdr_.Class == rdClass {
			values = append(values, RdataText(rr))
		}
	}
	return
}

func firstRRSetValues(msg *dns.Msg) (values []string) {
	values = []string{}
	if len(msg.Answer) == 0 {
		return
	}
	first_ := msg.Answer[0].Header()
	for _, rr := range msg.Answer {
		hdr_ := rr.Header()
		if hdr_.Name == first_.Name && hdr_.Rrtype == first_.Rrtype && hdr_.Class == first_.Class {
			values = append(values, RdataText(rr))
		}
	}
	return
}
