// Package config loads runtime configuration from the environment, organised
// by concern. Values of the form secret://NAME are resolved through the
// configured SecretResolver.
package config

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultRateLimitRequests  = 100
	defaultRateLimitWindow    = time.Hour
	defaultRateLimitSweep     = 15 * time.Minute
	defaultCacheCapacity      = 100
	defaultOracleTimeout      = 10 * time.Second
	defaultOracleModel        = "gpt-4o-mini"
	defaultMaxMonthlyRevenue  = int64(50_000_000) // $500,000.00 in cents
	secretReferenceScheme     = "secret://"
	defaultViewTrackingTopic  = "product-view-events"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Firestore  FirestoreConfig
	PubSub     PubSubConfig
	Oracle     OracleConfig
	RateLimits RateLimitConfig
	Revenue    RevenueConfig
	Cache      CacheConfig
	Features   FeatureFlags
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig names the topic used for deferred view-tracking jobs.
type PubSubConfig struct {
	ProjectID         string
	ViewTrackingTopic string
}

// OracleConfig configures the optional ranking oracle. An empty APIKey leaves
// the oracle absent; the core runs on rule-based fallbacks alone.
type OracleConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Enabled reports whether an oracle can be constructed from this config.
func (c OracleConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	Requests      int
	Window        time.Duration
	SweepInterval time.Duration
}

// RevenueConfig sets the monthly revenue cap; the daily cap derives from it.
type RevenueConfig struct {
	MaxMonthlyCents int64
}

// CacheConfig bounds the memoization stores.
type CacheConfig struct {
	Capacity int
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	EnableOracle     bool
	EnablePromotions bool
}

// SecretResolver resolves secret:// references during Load.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// SecretResolverFunc adapts a function to the SecretResolver interface.
type SecretResolverFunc func(ctx context.Context, name string) (string, error)

// Resolve implements SecretResolver.
func (f SecretResolverFunc) Resolve(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

type loadOptions struct {
	envFile  string
	resolver SecretResolver
}

// Option customises Load behaviour.
type Option func(*loadOptions)

// WithEnvFile overrides the .env file consulted for local development.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// WithSecretResolver installs the resolver used for secret:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loadOptions) { o.resolver = resolver }
}

// Load reads configuration from the process environment, falling back to the
// .env file for keys the environment does not define.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loadOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	fileValues := readEnvFile(options.envFile)
	get := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fileValues[key])
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringOr(get("PORT"), defaultPort),
			ReadTimeout:  durationOr(get("SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationOr(get("SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationOr(get("SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    get("FIRESTORE_PROJECT_ID"),
			EmulatorHost: get("FIRESTORE_EMULATOR_HOST"),
		},
		PubSub: PubSubConfig{
			ProjectID:         stringOr(get("PUBSUB_PROJECT_ID"), get("FIRESTORE_PROJECT_ID")),
			ViewTrackingTopic: stringOr(get("PUBSUB_VIEW_TOPIC"), defaultViewTrackingTopic),
		},
		Oracle: OracleConfig{
			APIKey:  get("ORACLE_API_KEY"),
			Model:   stringOr(get("ORACLE_MODEL"), defaultOracleModel),
			BaseURL: get("ORACLE_BASE_URL"),
			Timeout: durationOr(get("ORACLE_TIMEOUT"), defaultOracleTimeout),
		},
		RateLimits: RateLimitConfig{
			Requests:      intOr(get("RATE_LIMIT_REQUESTS"), defaultRateLimitRequests),
			Window:        durationOr(get("RATE_LIMIT_WINDOW"), defaultRateLimitWindow),
			SweepInterval: durationOr(get("RATE_LIMIT_SWEEP_INTERVAL"), defaultRateLimitSweep),
		},
		Revenue: RevenueConfig{
			MaxMonthlyCents: int64Or(get("REVENUE_MAX_MONTHLY_CENTS"), defaultMaxMonthlyRevenue),
		},
		Cache: CacheConfig{
			Capacity: intOr(get("CACHE_CAPACITY"), defaultCacheCapacity),
		},
		Features: FeatureFlags{
			EnableOracle:     boolOr(get("FEATURE_ORACLE"), true),
			EnablePromotions: boolOr(get("FEATURE_PROMOTIONS"), true),
		},
	}

	if err := resolveSecrets(ctx, &cfg, options.resolver); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecrets(ctx context.Context, cfg *Config, resolver SecretResolver) error {
	targets := []*string{&cfg.Oracle.APIKey}
	for _, target := range targets {
		value := strings.TrimSpace(*target)
		if !strings.HasPrefix(value, secretReferenceScheme) {
			continue
		}
		name := strings.TrimPrefix(value, secretReferenceScheme)
		if resolver == nil {
			return fmt.Errorf("config: secret reference %q requires a resolver", name)
		}
		resolved, err := resolver.Resolve(ctx, name)
		if err != nil {
			return fmt.Errorf("config: resolve secret %q: %w", name, err)
		}
		*target = strings.TrimSpace(resolved)
	}
	return nil
}

// readEnvFile parses KEY=VALUE lines, ignoring comments and blanks. Missing
// files are not an error; production reads the environment directly.
func readEnvFile(path string) map[string]string {
	values := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return values
	}
	file, err := os.Open(path)
	if err != nil {
		return values
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key != "" {
			values[key] = value
		}
	}
	return values
}

func stringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func intOr(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func int64Or(value string, fallback int64) int64 {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func boolOr(value string, fallback bool) bool {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
