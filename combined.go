package dnscache

import (
	"strings"
	"time"
)

// ListedSentinel is the only value a combined-list hit produces. The raw
// combined answer encodes membership across unrelated lists and must never
// leak to a caller that asked about one specific list.
const ListedSentinel = "127.0.0.2"

// CombinedCache knows about the combined DNSBL and URLBL zones that answer
// for many individual lists at once. Callers keep using the normal name
// for a list; this type decides whether to query the combined zone instead
// and reinterprets the shared answer. The underlying Cache memoizes the
// combined answer, so checking ten lists behind one combined zone costs a
// single physical query.
//
// Lists are not combined blindly: white and black lists cannot share a
// zone, and lists that return multiple results are kept out.
type CombinedCache struct {
	*Cache
	config *CombinedConfig
}

func NewCombinedCache(config *CombinedConfig, cache *Cache) (combined *CombinedCache) {
	if config == nil {
		config = emptyCombinedConfig()
	}
	if config.dnsblReverseValues == nil || config.urlblReverseValues == nil {
		config.buildReverseValues()
	}
	return &CombinedCache{Cache: cache, config: config}
}

func (combined *CombinedCache) Config() *CombinedConfig {
	return combined.config
}

// Lookup behaves exactly like Cache.Lookup for questions outside any
// combined list. For a question on a list handled by a combined zone the
// result is ["127.0.0.2"] when the address is listed on that particular
// list, and empty otherwise.
func (combined *CombinedCache) Lookup(question, qType, qClass string, exact bool) []string {
	return combined.lookupWithTimeout(question, qType, qClass, exact, combined.timeout)
}

func (combined *CombinedCache) lookupWithTimeout(question, qType, qClass string, exact bool,
	timeout time.Duration) []string {

	rewriteAnswer_ := ""
	var reverseDict_ map[string]string

	// Our lists always have 4 labels, e.g. list1.dnsbl.example.com;
	// everything in front of them is the address portion.
	questionSplit_ := strings.Split(question, ".")
	splitAt_ := 0
	if len(questionSplit_) > 4 {
		splitAt_ = len(questionSplit_) - 4
	}
	originalList_ := strings.Join(questionSplit_[splitAt_:], ".")
	address_ := strings.Join(questionSplit_[:splitAt_], ".")

	if combined.config.dnsblReverseValues[originalList_] && combined.config.Combined != "" {
		log.Debugf("rewriting %s to use combined list", question)
		rewriteAnswer_ = originalList_
		question = address_ + "." + combined.config.Combined
		reverseDict_ = combined.config.CombinedDNSBLReverse
	} else if combined.config.urlblReverseValues[originalList_] && combined.config.CombinedURL != "" {
		log.Debugf("rewriting %s to use url combined list", question)
		rewriteAnswer_ = originalList_
		question = address_ + "." + combined.config.CombinedURL
		reverseDict_ = combined.config.CombinedURLBLReverse
	}

	log.Debugf("looking up %s: %s", qType, question)
	result_ := combined.Cache.lookupWithTimeout(question, qType, qClass, exact, timeout)

	if rewriteAnswer_ != "" && len(result_) > 0 {
		matched_ := false
		for _, answer_ := range result_ {
			if reverseDict_[answer_] == rewriteAnswer_ {
				log.Debugf("converting %v from %s to [%s] for %s.%s",
					result_, question, ListedSentinel, address_, rewriteAnswer_)
				result_ = []string{ListedSentinel}
				matched_ = true
				break
			}
		}
		if !matched_ {
			log.Debugf("ignoring %v from %s w.r.t. %s.%s", result_, question,
				address_, rewriteAnswer_)
			result_ = []string{}
		}
	}
	return result_
}
