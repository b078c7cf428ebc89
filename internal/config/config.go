package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Strategy names accepted in SEARCH_STRATEGIES.
const (
	StrategyFullText   = "fulltext"
	StrategySimilarity = "similarity"
)

const defaultJWTSecret = "supersecretkey"

// DefaultPrincipalType is the "app_label.Model" of the principal (user) type.
const DefaultPrincipalType = "auth.User"

type Config struct {
	Port string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	JWTSecret string

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	Env string

	// JWTExpireHours is the token lifetime in hours (default 24). Set via JWT_EXPIRE_HOURS.
	JWTExpireHours int

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json".
	LogFormat string
	LogLevel  string

	// CORSAllowedOrigins is set via CORS_ALLOWED_ORIGINS (comma-separated).
	CORSAllowedOrigins []string

	// Elasticsearch is optional. When ElasticsearchHosts is empty the full-text
	// strategy is not wired at all.
	ElasticsearchHosts          []string
	ElasticsearchIndex          string
	ElasticsearchTimeout        time.Duration
	ElasticsearchMaxRetries     int
	ElasticsearchRetryOnTimeout bool

	// SearchStrategies is the order free-text strategies are tried in.
	SearchStrategies    []string
	SearchMinTermLength int

	// UserLoginField is the unique principal column searched and shown ("username" or "email").
	UserLoginField string
	// PrincipalType is the principal's content type as "app_label.Model".
	PrincipalType string
	// DomainAppLabel selects which content types count as registered entity types.
	DomainAppLabel string
	// UserAliases are lowercase type names that resolve to the principal type.
	UserAliases []string
	// RegistryRefreshCron is how often the entity type registry is reloaded.
	RegistryRefreshCron string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "auditdb"),
		DBUser: getEnv("DB_USER", "audituser"),
		DBPass: getEnv("DB_PASS", "auditpass"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		JWTSecret:      getEnv("JWT_SECRET", defaultJWTSecret),
		Env:            getEnv("ENV", "dev"),
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		ElasticsearchHosts:          splitList(getEnv("ELASTICSEARCH_HOSTS", "")),
		ElasticsearchIndex:          getEnv("ELASTICSEARCH_INDEX", "auditlog_logentry"),
		ElasticsearchTimeout:        getEnvDuration("ELASTICSEARCH_TIMEOUT", 30*time.Second),
		ElasticsearchMaxRetries:     getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
		ElasticsearchRetryOnTimeout: getEnvBool("ELASTICSEARCH_RETRY_ON_TIMEOUT", true),

		SearchStrategies:    splitList(getEnv("SEARCH_STRATEGIES", StrategyFullText+","+StrategySimilarity)),
		SearchMinTermLength: getEnvInt("SEARCH_MIN_TERM_LENGTH", 3),

		UserLoginField:      getEnv("USER_LOGIN_FIELD", "username"),
		PrincipalType:       getEnv("PRINCIPAL_TYPE", DefaultPrincipalType),
		DomainAppLabel:      getEnv("DOMAIN_APP_LABEL", "api"),
		UserAliases:         splitList(strings.ToLower(getEnv("USER_ALIASES", "user,customuser"))),
		RegistryRefreshCron: getEnv("REGISTRY_REFRESH_CRON", "@every 1m"),
	}
}

// Validate reports configuration that must stop startup.
func (c Config) Validate() error {
	var errs []error
	if c.Env == "prod" && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		errs = append(errs, errors.New("JWT_SECRET must be set in prod"))
	}
	if c.UserLoginField != "username" && c.UserLoginField != "email" {
		errs = append(errs, fmt.Errorf("USER_LOGIN_FIELD %q: must be username or email", c.UserLoginField))
	}
	if app, model, ok := strings.Cut(c.PrincipalType, "."); !ok || app == "" || model == "" {
		errs = append(errs, fmt.Errorf("PRINCIPAL_TYPE %q: must be app_label.Model", c.PrincipalType))
	}
	seen := make(map[string]bool)
	for _, s := range c.SearchStrategies {
		if s != StrategyFullText && s != StrategySimilarity {
			errs = append(errs, fmt.Errorf("SEARCH_STRATEGIES: unknown strategy %q", s))
		}
		if seen[s] {
			errs = append(errs, fmt.Errorf("SEARCH_STRATEGIES: %q listed twice", s))
		}
		seen[s] = true
	}
	return errors.Join(errs...)
}

// DatabaseURL returns the postgres URL form of the DB settings, as needed by migrate.
func (c Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPass),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// splitList splits a comma-separated list and trims spaces. Empty strings are omitted.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
