package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/docintake/docintake/core/infra/redisutil"
)

const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

const (
	defaultConfigDir     = "config"
	defaultStore         = StoreFile
	defaultRedisURL      = "redis://localhost:6379"
	defaultEventsSubject = "docintake.config.changed"
	defaultNamespace     = "docintake"

	envConfigDir          = "DOCINTAKE_CONFIG_DIR"
	envStore              = "DOCINTAKE_STORE"
	envMetricsAddr        = "DOCINTAKE_METRICS_ADDR"
	envMetricsNamespace   = "DOCINTAKE_METRICS_NAMESPACE"
	envEventsSubject      = "DOCINTAKE_EVENTS_SUBJECT"
	envNATSURL            = "NATS_URL"
	envRedisURL           = "REDIS_URL"
	envRedisClusterAddrs  = "REDIS_CLUSTER_ADDRESSES"
	envRedisTLSCA         = "REDIS_TLS_CA"
	envRedisTLSCert       = "REDIS_TLS_CERT"
	envRedisTLSKey        = "REDIS_TLS_KEY"
	envRedisTLSServerName = "REDIS_TLS_SERVER_NAME"
	envRedisTLSInsecure   = "REDIS_TLS_INSECURE"
)

// Config holds runtime configuration for docintake binaries.
type Config struct {
	// ConfigDir holds global.yaml and the clients/ registry for the file store.
	ConfigDir string
	Store     string
	Redis     redisutil.Options
	// NatsURL enables change events when set.
	NatsURL       string
	EventsSubject string
	// MetricsAddr serves /metrics when set.
	MetricsAddr      string
	MetricsNamespace string
}

// Load returns configuration using environment variables with defaults.
func Load() *Config {
	return &Config{
		ConfigDir: envOr(envConfigDir, defaultConfigDir),
		Store:     strings.ToLower(envOr(envStore, defaultStore)),
		Redis: redisutil.Options{
			URL:          envOr(envRedisURL, defaultRedisURL),
			ClusterAddrs: parseAddrList(os.Getenv(envRedisClusterAddrs)),
			TLS: redisutil.TLSFiles{
				CA:         strings.TrimSpace(os.Getenv(envRedisTLSCA)),
				Cert:       strings.TrimSpace(os.Getenv(envRedisTLSCert)),
				Key:        strings.TrimSpace(os.Getenv(envRedisTLSKey)),
				ServerName: strings.TrimSpace(os.Getenv(envRedisTLSServerName)),
				Insecure:   parseBool(os.Getenv(envRedisTLSInsecure)),
			},
		},
		NatsURL:          strings.TrimSpace(os.Getenv(envNATSURL)),
		EventsSubject:    envOr(envEventsSubject, defaultEventsSubject),
		MetricsAddr:      strings.TrimSpace(os.Getenv(envMetricsAddr)),
		MetricsNamespace: envOr(envMetricsNamespace, defaultNamespace),
	}
}

// Validate rejects combinations that cannot work.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreFile:
		if c.ConfigDir == "" {
			return fmt.Errorf("%s required for the file store", envConfigDir)
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("%s required for the redis store", envRedisURL)
		}
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", envStore, StoreFile, StoreRedis, c.Store)
	}
	if c.NatsURL != "" && c.EventsSubject == "" {
		return fmt.Errorf("%s required when %s is set", envEventsSubject, envNATSURL)
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseAddrList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	if len(parts) == 0 {
		return nil
	}
	return parts
}
