package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every server-level option for the civic lookup service.
type Config struct {
	Server ServerConfig `koanf:"server"`
}

// ServerConfig collects the bootstrap knobs owned by the lifecycle agent.
type ServerConfig struct {
	Listen    ListenConfig    `koanf:"listen"`
	Logging   LoggingConfig   `koanf:"logging"`
	Districts DistrictsConfig `koanf:"districts"`
	Directory DirectoryConfig `koanf:"directory"`
	Geocoder  GeocoderConfig  `koanf:"geocoder"`
	Cache     CacheConfig     `koanf:"cache"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level, format, and correlation ID wiring.
type LoggingConfig struct {
	Level             string `koanf:"level"`
	Format            string `koanf:"format"`
	CorrelationHeader string `koanf:"correlationHeader"`
}

// DistrictsConfig points at an optional ZIP-to-district CSV that replaces the
// embedded dataset. When Watch is set the file is hot-reloaded on change.
type DistrictsConfig struct {
	File  string `koanf:"file"`
	Watch bool   `koanf:"watch"`
}

// DirectoryConfig governs the legislator roster refresh cycle.
type DirectoryConfig struct {
	DatasetURL     string `koanf:"datasetUrl"`
	TTLSeconds     int    `koanf:"ttlSeconds"`
	TimeoutSeconds int    `koanf:"timeoutSeconds"`
}

// GeocoderConfig describes the Census geocoder endpoint used for address
// fallback when no ZIP can be recovered from the query.
type GeocoderConfig struct {
	BaseURL        string `koanf:"baseUrl"`
	Benchmark      string `koanf:"benchmark"`
	Vintage        string `koanf:"vintage"`
	TimeoutSeconds int    `koanf:"timeoutSeconds"`
}

// CacheConfig selects the result cache backend shared by the upstream clients.
type CacheConfig struct {
	Backend    string           `koanf:"backend"`
	TTLSeconds int              `koanf:"ttlSeconds"`
	Redis      RedisCacheConfig `koanf:"redis"`
}

type RedisCacheConfig struct {
	Address  string              `koanf:"address"`
	Username string              `koanf:"username"`
	Password string              `koanf:"password"`
	DB       int                 `koanf:"db"`
	TLS      RedisTLSCacheConfig `koanf:"tls"`
}

type RedisTLSCacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// UpstreamConfig bundles the external government APIs the service proxies.
// Keys and base URLs are per-dependency so operators can point at mirrors or
// fixtures.
type UpstreamConfig struct {
	Congress APIConfig      `koanf:"congress"`
	FEC      APIConfig      `koanf:"fec"`
	Rollcall RollcallConfig `koanf:"rollcall"`
	GDELT    APIConfig      `koanf:"gdelt"`
}

// APIConfig is the shared shape for keyed JSON upstreams.
type APIConfig struct {
	BaseURL        string `koanf:"baseUrl"`
	APIKey         string `koanf:"apiKey"`
	TimeoutSeconds int    `koanf:"timeoutSeconds"`
	TTLSeconds     int    `koanf:"ttlSeconds"`
}

// RollcallConfig covers the Senate and House roll-call XML feeds, which are
// unkeyed but chamber-specific.
type RollcallConfig struct {
	SenateBaseURL  string `koanf:"senateBaseUrl"`
	HouseBaseURL   string `koanf:"houseBaseUrl"`
	TimeoutSeconds int    `koanf:"timeoutSeconds"`
	TTLSeconds     int    `koanf:"ttlSeconds"`
}

// Timeout converts the configured seconds into a duration, falling back to the
// supplied default when unset.
func (a APIConfig) Timeout(fallback time.Duration) time.Duration {
	if a.TimeoutSeconds <= 0 {
		return fallback
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// TTL converts the configured seconds into a duration, falling back to the
// supplied default when unset.
func (a APIConfig) TTL(fallback time.Duration) time.Duration {
	if a.TTLSeconds <= 0 {
		return fallback
	}
	return time.Duration(a.TTLSeconds) * time.Second
}

// DefaultConfig returns the baseline configuration applied before file and env
// overrides.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    8080,
			},
			Logging: LoggingConfig{
				Level:             "info",
				Format:            "json",
				CorrelationHeader: "X-Request-ID",
			},
			Directory: DirectoryConfig{
				DatasetURL:     "https://unitedstates.github.io/congress-legislators/legislators-current.yaml",
				TTLSeconds:     21600,
				TimeoutSeconds: 10,
			},
			Geocoder: GeocoderConfig{
				BaseURL:        "https://geocoding.geo.census.gov/geocoder",
				Benchmark:      "Public_AR_Current",
				Vintage:        "Current_Current",
				TimeoutSeconds: 5,
			},
			Cache: CacheConfig{
				Backend:    "memory",
				TTLSeconds: 300,
			},
			Upstream: UpstreamConfig{
				Congress: APIConfig{
					BaseURL:        "https://api.congress.gov/v3",
					TimeoutSeconds: 8,
					TTLSeconds:     900,
				},
				FEC: APIConfig{
					BaseURL:        "https://api.open.fec.gov/v1",
					TimeoutSeconds: 8,
					TTLSeconds:     3600,
				},
				Rollcall: RollcallConfig{
					SenateBaseURL:  "https://www.senate.gov/legislative/LIS/roll_call_votes",
					HouseBaseURL:   "https://clerk.house.gov/evs",
					TimeoutSeconds: 8,
					TTLSeconds:     900,
				},
				GDELT: APIConfig{
					BaseURL:        "https://api.gdeltproject.org/api/v2/doc/doc",
					TimeoutSeconds: 6,
					TTLSeconds:     600,
				},
			},
		},
	}
}

// Validate rejects configurations the lifecycle agent cannot act on.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Listen.Port < 0 || c.Server.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: listen port %d out of range", c.Server.Listen.Port))
	}

	switch strings.ToLower(c.Server.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported log level %q", c.Server.Logging.Level))
	}
	switch strings.ToLower(c.Server.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported log format %q", c.Server.Logging.Format))
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Cache.Backend)) {
	case "", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported cache backend %q", c.Server.Cache.Backend))
	}
	if strings.EqualFold(c.Server.Cache.Backend, "redis") && strings.TrimSpace(c.Server.Cache.Redis.Address) == "" {
		errs = append(errs, errors.New("config: redis cache backend requires an address"))
	}
	if c.Server.Cache.TTLSeconds < 0 {
		errs = append(errs, errors.New("config: cache ttlSeconds must not be negative"))
	}

	if strings.TrimSpace(c.Server.Directory.DatasetURL) == "" {
		errs = append(errs, errors.New("config: directory datasetUrl required"))
	}
	if strings.TrimSpace(c.Server.Geocoder.BaseURL) == "" {
		errs = append(errs, errors.New("config: geocoder baseUrl required"))
	}

	return errors.Join(errs...)
}
