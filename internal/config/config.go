package config

import (
	"fmt"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Public dataset locations used when the corresponding variable is unset.
const (
	DefaultCountrySource       = "https://opendata.ecdc.europa.eu/covid19/casedistribution/csv"
	DefaultStateSource         = "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-states.csv"
	DefaultCountySource        = "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-counties.csv"
	DefaultLivePrimarySource   = "https://api.thevirustracker.com/free-api?countryTotals=ALL"
	DefaultLiveSecondarySource = "https://disease.sh/v3/covid-19/countries"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	// Each source is a local path or an http(s) URL.
	CountrySource       string
	StateSource         string
	CountySource        string
	LivePrimarySource   string
	LiveSecondarySource string

	OutputDir     string
	FetchTimeout  time.Duration
	OverridesFile string

	LogLevel  string
	LogFormat string

	// Optional collaborators. Each is disabled while its address is empty.
	RedisAddr      string
	SourceCacheTTL time.Duration
	KafkaBrokers   []string
	KafkaTopic     string
	PushgatewayURL string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("SOURCE_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		CountrySource:       sharedcfg.EnvOrDefault("COUNTRY_SOURCE", DefaultCountrySource),
		StateSource:         sharedcfg.EnvOrDefault("STATE_SOURCE", DefaultStateSource),
		CountySource:        sharedcfg.EnvOrDefault("COUNTY_SOURCE", DefaultCountySource),
		LivePrimarySource:   sharedcfg.EnvOrDefault("LIVE_PRIMARY_SOURCE", DefaultLivePrimarySource),
		LiveSecondarySource: sharedcfg.EnvOrDefault("LIVE_SECONDARY_SOURCE", DefaultLiveSecondarySource),
		OutputDir:           sharedcfg.EnvOrDefault("OUTPUT_DIR", "data"),
		FetchTimeout:        fetchTimeout,
		OverridesFile:       os.Getenv("OVERRIDES_FILE"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		SourceCacheTTL:      cacheTTL,
		KafkaBrokers:        brokers,
		KafkaTopic:          sharedcfg.EnvOrDefault("KAFKA_TOPIC", "outbreak-documents"),
		PushgatewayURL:      os.Getenv("PUSHGATEWAY_URL"),
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether documents are also published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	raw := sharedcfg.EnvOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}
