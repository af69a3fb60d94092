package dnscache

import (
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultCombinedConfigPath is where the combined-list definitions live.
var DefaultCombinedConfigPath = "/etc/combined_lists.json"

const (
	UpstreamProtoDns53 = "dns53"
	UpstreamProtoDoh   = "doh"
)

// CombinedConfig describes the combined DNSBL / URLBL zones and the reverse
// mappings from combined answer values back to the individual list domains.
// DNSBL and URLBL are convenient labels, DNSWL and URLYL entries fit here
// just as well.
type CombinedConfig struct {
	Combined             string            `json:"COMBINED"`
	CombinedURL          string            `json:"COMBINED_URL"`
	CombinedDNSBL        map[string]string `json:"COMBINED_DNSBL"`
	CombinedDNSBLReverse map[string]string `json:"COMBINED_DNSBL_REVERSE"`
	CombinedURLBL        map[string]string `json:"COMBINED_URLBL"`
	CombinedURLBLReverse map[string]string `json:"COMBINED_URLBL_REVERSE"`

	dnsblReverseValues map[string]bool
	urlblReverseValues map[string]bool
}

func emptyCombinedConfig() (config *CombinedConfig) {
	return &CombinedConfig{
		CombinedDNSBL:        map[string]string{},
		CombinedDNSBLReverse: map[string]string{},
		CombinedURLBL:        map[string]string{},
		CombinedURLBLReverse: map[string]string{},
		dnsblReverseValues:   map[string]bool{},
		urlblReverseValues:   map[string]bool{},
	}
}

// LoadCombinedConfig reads the combined-list definitions from a JSON file.
// A missing or unreadable file degrades to all-empty definitions, which
// turns combined-list rewriting into a no-op.
func LoadCombinedConfig(path string) (config *CombinedConfig) {
	config = emptyCombinedConfig()
	if !PathExists(path) {
		return
	}
	fileBytes_, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("unable to read combined config %s: %v", path, err)
		return emptyCombinedConfig()
	}
	if err = json.Unmarshal(fileBytes_, config); err != nil {
		log.Warnf("unable to parse combined config %s: %v", path, err)
		return emptyCombinedConfig()
	}
	if config.CombinedDNSBL == nil {
		config.CombinedDNSBL = map[string]string{}
	}
	if config.CombinedDNSBLReverse == nil {
		config.CombinedDNSBLReverse = map[string]string{}
	}
	if config.CombinedURLBL == nil {
		config.CombinedURLBL = map[string]string{}
	}
	if config.CombinedURLBLReverse == nil {
		config.CombinedURLBLReverse = map[string]string{}
	}
	config.buildReverseValues()
	return
}

func (config *CombinedConfig) buildReverseValues() {
	config.dnsblReverseValues = make(map[string]bool, len(config.CombinedDNSBLReverse))
	for _, listDomain := range config.CombinedDNSBLReverse {
		config.dnsblReverseValues[listDomain] = true
	}
	config.urlblReverseValues = make(map[string]bool, len(config.CombinedURLBLReverse))
	for _, listDomain := range config.CombinedURLBLReverse {
		config.urlblReverseValues[listDomain] = true
	}
}

// ResolverOptions is the optional resolver tuning file (yaml format).
type ResolverOptions struct {
	Endpoints          string `yaml:"endpoints"`
	UpstreamProto      string `yaml:"upstream_proto"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	MinTTL             uint32 `yaml:"min_ttl"`
	CacheBackend       string `yaml:"cache_backend"`
	RedisURI           string `yaml:"redis_uri"`
	CacheTTL           uint32 `yaml:"cache_ttl"`
	LogLevel           string `yaml:"log_level"`
	CombinedConfigPath string `yaml:"combined_config_path"`
}

func ReadResolverOptionsFromFile(path string) (options ResolverOptions, err error) {
	fileBytes_, err := os.ReadFile(path)
	if err != nil {
		return
	}
	err = yaml.Unmarshal(fileBytes_, &options)
	return
}
