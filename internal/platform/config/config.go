package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultPostgresMaxConns    = 10
	defaultPostgresTimeout     = 30 * time.Second
	defaultSearchTTL           = 5 * time.Minute
	defaultCouponTTL           = time.Minute
	defaultSearchLimit         = 20
	defaultOrderPrefixes       = "B,D"
	defaultHMACSignatureHeader = "X-Signature"
	defaultHMACTimestampHeader = "X-Signature-Timestamp"
	defaultHMACClockSkew       = 5 * time.Minute
	defaultBuildBatchSize      = 500
	defaultBuildLockTimeout    = 5 * time.Minute
	defaultBuildMinInterval    = time.Minute
	defaultBuildChainDelay     = 2 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server       ServerConfig
	GCP          GCPConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Search       SearchConfig
	CouponLookup CouponLookupConfig
	Security     SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// GCPConfig stores Google Cloud project settings used for tracing and jobs.
type GCPConfig struct {
	ProjectID   string
	JobTopicID  string
	Credentials string
}

// PostgresConfig stores relational store connection parameters.
type PostgresConfig struct {
	DSN            string
	MaxConns       int
	ConnectTimeout time.Duration
}

// RedisConfig stores search-cache backend parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SearchConfig controls search behaviour and result shaping.
type SearchConfig struct {
	CacheTTL            time.Duration
	CouponCacheTTL      time.Duration
	DefaultLimit        int
	OrderNumberPrefixes []string
	AdminBaseURL        string
	TracingEnabled      bool
}

// CouponLookupConfig controls the lookup-table backfill builder.
type CouponLookupConfig struct {
	BatchSize   int
	LockTimeout time.Duration
	MinInterval time.Duration
	ChainDelay  time.Duration
}

// SecurityConfig groups internal-boundary authentication settings.
type SecurityConfig struct {
	Environment     string
	HMACSecrets     map[string]string
	SignatureHeader string
	TimestampHeader string
	ClockSkew       time.Duration
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "SEARCH_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "SEARCH_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SEARCH_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SEARCH_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		GCP: GCPConfig{
			ProjectID:   stringWithDefault(lookup, "SEARCH_GCP_PROJECT_ID", ""),
			JobTopicID:  stringWithDefault(lookup, "SEARCH_GCP_JOB_TOPIC", ""),
			Credentials: stringWithDefault(lookup, "SEARCH_GCP_CREDENTIALS_FILE", ""),
		},
		Postgres: PostgresConfig{
			DSN:            stringWithDefault(lookup, "SEARCH_POSTGRES_DSN", ""),
			MaxConns:       intWithDefault(lookup, "SEARCH_POSTGRES_MAX_CONNS", defaultPostgresMaxConns),
			ConnectTimeout: durationWithDefault(lookup, "SEARCH_POSTGRES_CONNECT_TIMEOUT", defaultPostgresTimeout),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "SEARCH_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "SEARCH_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "SEARCH_REDIS_DB", 0),
		},
		Search: SearchConfig{
			CacheTTL:            durationWithDefault(lookup, "SEARCH_CACHE_TTL", defaultSearchTTL),
			CouponCacheTTL:      durationWithDefault(lookup, "SEARCH_COUPON_CACHE_TTL", defaultCouponTTL),
			DefaultLimit:        intWithDefault(lookup, "SEARCH_DEFAULT_LIMIT", defaultSearchLimit),
			OrderNumberPrefixes: csvUpper(stringWithDefault(lookup, "SEARCH_ORDER_NUMBER_PREFIXES", defaultOrderPrefixes)),
			AdminBaseURL:        strings.TrimRight(stringWithDefault(lookup, "SEARCH_ADMIN_BASE_URL", ""), "/"),
			TracingEnabled:      boolWithDefault(lookup, "SEARCH_TRACING_ENABLED", true),
		},
		CouponLookup: CouponLookupConfig{
			BatchSize:   intWithDefault(lookup, "SEARCH_COUPON_BUILD_BATCH_SIZE", defaultBuildBatchSize),
			LockTimeout: durationWithDefault(lookup, "SEARCH_COUPON_BUILD_LOCK_TIMEOUT", defaultBuildLockTimeout),
			MinInterval: durationWithDefault(lookup, "SEARCH_COUPON_BUILD_MIN_INTERVAL", defaultBuildMinInterval),
			ChainDelay:  durationWithDefault(lookup, "SEARCH_COUPON_BUILD_CHAIN_DELAY", defaultBuildChainDelay),
		},
		Security: SecurityConfig{
			Environment:     strings.ToLower(stringWithDefault(lookup, "SEARCH_SECURITY_ENVIRONMENT", "local")),
			HMACSecrets:     mapWithDefault(lookup, "SEARCH_SECURITY_HMAC_SECRETS"),
			SignatureHeader: stringWithDefault(lookup, "SEARCH_SECURITY_HMAC_HEADER_SIGNATURE", defaultHMACSignatureHeader),
			TimestampHeader: stringWithDefault(lookup, "SEARCH_SECURITY_HMAC_HEADER_TIMESTAMP", defaultHMACTimestampHeader),
			ClockSkew:       durationWithDefault(lookup, "SEARCH_SECURITY_HMAC_CLOCK_SKEW", defaultHMACClockSkew),
		},
	}

	// Resolve secret references (secret:// or sm://) for sensitive fields.
	secretFields := []*string{
		&cfg.Postgres.DSN,
		&cfg.Redis.Password,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}
	for key, value := range cfg.Security.HMACSecrets {
		resolved, err := resolveSecret(ctx, value, options.secret)
		if err != nil {
			return Config{}, err
		}
		cfg.Security.HMACSecrets[key] = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Postgres.DSN == "" {
		missing = append(missing, "Postgres.DSN")
	}
	if cfg.Search.DefaultLimit <= 0 {
		missing = append(missing, "Search.DefaultLimit")
	}
	if cfg.CouponLookup.BatchSize <= 0 {
		missing = append(missing, "CouponLookup.BatchSize")
	}
	if cfg.CouponLookup.LockTimeout <= 0 {
		missing = append(missing, "CouponLookup.LockTimeout")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvUpper(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToUpper(strings.TrimSpace(part))
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return values
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		secret := strings.TrimSpace(parts[1])
		if name == "" || secret == "" {
			continue
		}
		values[name] = secret
	}
	return values
}
