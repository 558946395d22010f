package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr     string
	DemoMode bool
	// TrustProxyHeaders takes client IPs from proxy headers; off unless the
	// service sits behind a proxy that sets them.
	TrustProxyHeaders bool
	LogLevel          string
	AdminToken        string
	Database          DatabaseConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	Auth              AuthConfig
	Cases             CasesConfig
	Sightings         SightingsConfig
	Registrations     RegistrationConfig
}

type DatabaseConfig struct {
	URL             string
	Driver          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a database is configured; otherwise stores are in-memory.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelayInterval time.Duration
	RelayBatch    int
}

// Enabled reports whether the audit relay should run.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	SessionTTL    time.Duration
}

type CasesConfig struct {
	// TransitionsFile is an optional YAML file restricting case status changes.
	TransitionsFile string
	// Transitions is the parsed file content, nil when unrestricted.
	Transitions map[string][]string
}

type SightingsConfig struct {
	RateLimitPerMinute int
}

type RegistrationConfig struct {
	RetryInterval time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:              envOr("FINDTHEM_ADDR", ":8080"),
		DemoMode:          os.Getenv("DEMO_MODE") == "true",
		TrustProxyHeaders: os.Getenv("TRUST_PROXY_HEADERS") == "true",
		LogLevel:          envOr("LOG_LEVEL", "info"),
		AdminToken:        os.Getenv("ADMIN_API_TOKEN"),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Driver:          envOr("DB_DRIVER", "postgres"),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: envOr("AUDIT_TOPIC", "findthem.audit"),
			RelayBatch: 100,
		},
		Auth: AuthConfig{
			JWTSigningKey: envOr("JWT_SIGNING_KEY", defaultJWTSigningKey),
			JWTIssuer:     envOr("JWT_ISSUER", "findthem"),
		},
		Cases: CasesConfig{
			TransitionsFile: os.Getenv("CASE_TRANSITIONS_FILE"),
		},
	}

	var err error
	if cfg.Auth.SessionTTL, err = durationEnv("SESSION_TTL", 12*time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.Registrations.RetryInterval, err = durationEnv("REGISTRATION_RETRY_INTERVAL", time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.Kafka.RelayInterval, err = durationEnv("AUDIT_RELAY_INTERVAL", 2*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Sightings.RateLimitPerMinute, err = intEnv("SIGHTING_RATE_LIMIT", 10); err != nil {
		return Server{}, err
	}
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "pgx" {
		return Server{}, fmt.Errorf("DB_DRIVER must be postgres or pgx, got %q", cfg.Database.Driver)
	}

	if cfg.Cases.TransitionsFile != "" {
		raw, err := os.ReadFile(cfg.Cases.TransitionsFile)
		if err != nil {
			return Server{}, fmt.Errorf("read case transitions: %w", err)
		}
		if cfg.Cases.Transitions, err = ParseTransitions(raw); err != nil {
			return Server{}, err
		}
	}
	return cfg, nil
}

type transitionsFile struct {
	Transitions map[string][]string `yaml:"transitions"`
}

// ParseTransitions decodes the case transition YAML document. Unknown keys are rejected.
func ParseTransitions(raw []byte) (map[string][]string, error) {
	var doc transitionsFile
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse case transitions: %w", err)
	}
	if len(doc.Transitions) == 0 {
		return nil, fmt.Errorf("parse case transitions: no transitions defined")
	}
	return doc.Transitions, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
