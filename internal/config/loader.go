package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective snapshot so the lifecycle agent can make decisions using the documented precedence rules.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		parser, err := parserForFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := map[string]string{
			"server.logging.correlationheader":        "server.logging.correlationHeader",
			"server.directory.dataseturl":             "server.directory.datasetUrl",
			"server.directory.ttlseconds":             "server.directory.ttlSeconds",
			"server.directory.timeoutseconds":         "server.directory.timeoutSeconds",
			"server.geocoder.baseurl":                 "server.geocoder.baseUrl",
			"server.geocoder.timeoutseconds":          "server.geocoder.timeoutSeconds",
			"server.cache.ttlseconds":                 "server.cache.ttlSeconds",
			"server.cache.redis.tls.cafile":           "server.cache.redis.tls.caFile",
			"server.upstream.congress.baseurl":        "server.upstream.congress.baseUrl",
			"server.upstream.congress.apikey":         "server.upstream.congress.apiKey",
			"server.upstream.congress.ttlseconds":     "server.upstream.congress.ttlSeconds",
			"server.upstream.congress.timeoutseconds": "server.upstream.congress.timeoutSeconds",
			"server.upstream.fec.baseurl":             "server.upstream.fec.baseUrl",
			"server.upstream.fec.apikey":              "server.upstream.fec.apiKey",
			"server.upstream.fec.ttlseconds":          "server.upstream.fec.ttlSeconds",
			"server.upstream.fec.timeoutseconds":      "server.upstream.fec.timeoutSeconds",
			"server.upstream.gdelt.baseurl":           "server.upstream.gdelt.baseUrl",
			"server.upstream.gdelt.ttlseconds":        "server.upstream.gdelt.ttlSeconds",
			"server.upstream.gdelt.timeoutseconds":    "server.upstream.gdelt.timeoutSeconds",
			"server.upstream.rollcall.senatebaseurl":  "server.upstream.rollcall.senateBaseUrl",
			"server.upstream.rollcall.housebaseurl":   "server.upstream.rollcall.houseBaseUrl",
			"server.upstream.rollcall.ttlseconds":     "server.upstream.rollcall.ttlSeconds",
			"server.upstream.rollcall.timeoutseconds": "server.upstream.rollcall.timeoutSeconds",
		}
		transform := func(s string) string {
			// Double underscores signal a nested path (SERVER__LISTEN__PORT -> server.listen.port).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			// Single underscores are removed so LISTEN_PORT collapses into listenport when callers
			// choose not to use double underscores for object nesting.
			key = strings.ReplaceAll(key, "_", "")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parserForFile selects a koanf parser by extension so operators can author
// configuration in yaml, json, or toml.
func parserForFile(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported config format %s", path)
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": map[string]any{
				"address": cfg.Server.Listen.Address,
				"port":    cfg.Server.Listen.Port,
			},
			"logging": map[string]any{
				"level":             cfg.Server.Logging.Level,
				"format":            cfg.Server.Logging.Format,
				"correlationHeader": cfg.Server.Logging.CorrelationHeader,
			},
			"districts": map[string]any{
				"file":  cfg.Server.Districts.File,
				"watch": cfg.Server.Districts.Watch,
			},
			"directory": map[string]any{
				"datasetUrl":     cfg.Server.Directory.DatasetURL,
				"ttlSeconds":     cfg.Server.Directory.TTLSeconds,
				"timeoutSeconds": cfg.Server.Directory.TimeoutSeconds,
			},
			"geocoder": map[string]any{
				"baseUrl":        cfg.Server.Geocoder.BaseURL,
				"benchmark":      cfg.Server.Geocoder.Benchmark,
				"vintage":        cfg.Server.Geocoder.Vintage,
				"timeoutSeconds": cfg.Server.Geocoder.TimeoutSeconds,
			},
			"cache": map[string]any{
				"backend":    cfg.Server.Cache.Backend,
				"ttlSeconds": cfg.Server.Cache.TTLSeconds,
				"redis": map[string]any{
					"address":  cfg.Server.Cache.Redis.Address,
					"username": cfg.Server.Cache.Redis.Username,
					"password": cfg.Server.Cache.Redis.Password,
					"db":       cfg.Server.Cache.Redis.DB,
					"tls": map[string]any{
						"enabled": cfg.Server.Cache.Redis.TLS.Enabled,
						"caFile":  cfg.Server.Cache.Redis.TLS.CAFile,
					},
				},
			},
			"upstream": map[string]any{
				"congress": apiToMap(cfg.Server.Upstream.Congress),
				"fec":      apiToMap(cfg.Server.Upstream.FEC),
				"rollcall": map[string]any{
					"senateBaseUrl":  cfg.Server.Upstream.Rollcall.SenateBaseURL,
					"houseBaseUrl":   cfg.Server.Upstream.Rollcall.HouseBaseURL,
					"timeoutSeconds": cfg.Server.Upstream.Rollcall.TimeoutSeconds,
					"ttlSeconds":     cfg.Server.Upstream.Rollcall.TTLSeconds,
				},
				"gdelt": apiToMap(cfg.Server.Upstream.GDELT),
			},
		},
	}
}

func apiToMap(api APIConfig) map[string]any {
	return map[string]any{
		"baseUrl":        api.BaseURL,
		"apiKey":         api.APIKey,
		"timeoutSeconds": api.TimeoutSeconds,
		"ttlSeconds":     api.TTLSeconds,
	}
}
