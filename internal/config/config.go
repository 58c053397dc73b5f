// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"iamcore/internal/db"
)

// Development fallbacks. Production mode refuses to start with these.
const (
	devRootAccessKeyID = "AKIAIAMROOTDEVKEY000"
	devRootSecretKey   = "root-secret-change-in-production"
)

// WebIdentityConfig holds the trust anchors for AssumeRoleWithWebIdentity.
// Either an OIDC issuer (discovery + JWKS) or a static HS256 secret; when
// neither is set, web identity federation is disabled.
type WebIdentityConfig struct {
	IssuerURL      string        // OIDC issuer URL for discovery
	Audience       string        // required token audience when IssuerURL is set
	AllowedIssuers []string      // accepted issuers (defaults to [IssuerURL])
	JWKSCacheTTL   time.Duration // JWKS cache duration (default: 1h)

	StaticSecret string // HS256 shared secret for local/dev federation
	StaticIssuer string // required iss claim for the static verifier, optional
}

// Enabled returns true when some identity provider is configured.
func (w *WebIdentityConfig) Enabled() bool {
	return w.IssuerURL != "" || w.StaticSecret != ""
}

// Validate checks that the web identity configuration is internally consistent.
func (w *WebIdentityConfig) Validate() error {
	if w.IssuerURL != "" && w.Audience == "" {
		return fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set")
	}
	return nil
}

// Config holds the configuration for the IAM service.
type Config struct {
	// Database. Driver is "sqlite3" (default) or "postgres"; DSN is the
	// SQLite file path or the Postgres connection string.
	DBDriver      string
	DBDSN         string
	DBMaxOpenConn int

	ListenAddr        string // HTTP listen address (default ":8080")
	TLSCertFile       string // TLS certificate file path (optional)
	TLSKeyFile        string // TLS private key file path (optional)
	AllowInsecureHTTP bool   // allow non-TLS listener in production (for trusted TLS termination)

	LogLevel string // log level: debug, info, warn, error (default "info")
	Env      string // environment: "development" (default) or "production"

	// Bootstrap root credential for the seed account. Authenticates the
	// operator root without touching the credential store.
	RootAccessKeyID     string
	RootSecretAccessKey string

	SeedAccountEmail string // email recorded on the seed account
	SeedFile         string // optional YAML with extra seed entries

	// Token-key upkeep. Empty schedules select the package defaults.
	TokenKeyLifetime time.Duration
	RotateSchedule   string
	SweepSchedule    string

	// BcryptCost for login-profile password hashing. Zero selects the
	// library default.
	BcryptCost int

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// WebIdentity holds identity provider trust configuration.
	WebIdentity WebIdentityConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// UsingDefaultRootCredential reports whether the insecure development
// fallback root credential is in effect.
func (c *Config) UsingDefaultRootCredential() bool {
	return c.RootAccessKeyID == devRootAccessKeyID
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DBDriver:            os.Getenv("DB_DRIVER"),
		DBDSN:               os.Getenv("DB_DSN"),
		ListenAddr:          os.Getenv("LISTEN_ADDR"),
		TLSCertFile:         os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:          os.Getenv("TLS_KEY_FILE"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		Env:                 os.Getenv("ENV"),
		RootAccessKeyID:     os.Getenv("ROOT_ACCESS_KEY_ID"),
		RootSecretAccessKey: os.Getenv("ROOT_SECRET_ACCESS_KEY"),
		SeedAccountEmail:    os.Getenv("SEED_ACCOUNT_EMAIL"),
		SeedFile:            os.Getenv("SEED_FILE"),
		RotateSchedule:      os.Getenv("TOKEN_ROTATE_SCHEDULE"),
		SweepSchedule:       os.Getenv("TOKEN_SWEEP_SCHEDULE"),
	}

	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DBMaxOpenConn = n
		}
	}
	if v := os.Getenv("TOKEN_KEY_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TokenKeyLifetime = d
		}
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BcryptCost = n
		}
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}
	if strings.EqualFold(os.Getenv("ALLOW_INSECURE_HTTP"), "true") {
		cfg.AllowInsecureHTTP = true
	}

	// Web identity config
	cfg.WebIdentity = WebIdentityConfig{
		IssuerURL:    os.Getenv("AUTH_ISSUER_URL"),
		Audience:     os.Getenv("AUTH_AUDIENCE"),
		StaticSecret: os.Getenv("WEB_IDENTITY_SECRET"),
		StaticIssuer: os.Getenv("WEB_IDENTITY_ISSUER"),
	}
	if v := os.Getenv("AUTH_ALLOWED_ISSUERS"); v != "" {
		cfg.WebIdentity.AllowedIssuers = compactNonEmpty(strings.Split(v, ","))
	}
	if v := os.Getenv("AUTH_JWKS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WebIdentity.JWKSCacheTTL = d
		}
	}
	if cfg.WebIdentity.JWKSCacheTTL == 0 {
		cfg.WebIdentity.JWKSCacheTTL = time.Hour
	}
	if err := cfg.WebIdentity.Validate(); err != nil {
		return nil, err
	}

	// Defaults
	if cfg.DBDriver == "" {
		cfg.DBDriver = db.DriverSQLite
	}
	if cfg.DBDriver != db.DriverSQLite && cfg.DBDriver != db.DriverPostgres {
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", db.DriverSQLite, db.DriverPostgres, cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		if cfg.DBDriver == db.DriverPostgres {
			return nil, fmt.Errorf("DB_DSN is required when DB_DRIVER=postgres")
		}
		cfg.DBDSN = "iamcore.sqlite"
	}
	if cfg.DBMaxOpenConn <= 0 {
		cfg.DBMaxOpenConn = 8
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return nil, fmt.Errorf("both TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SeedAccountEmail == "" {
		cfg.SeedAccountEmail = "root@iamcore.local"
	}
	if cfg.RootAccessKeyID == "" {
		cfg.RootAccessKeyID = devRootAccessKeyID
		cfg.RootSecretAccessKey = devRootSecretKey
		cfg.Warnings = append(cfg.Warnings,
			"ROOT_ACCESS_KEY_ID not set — using insecure development root credential. Set ROOT_ACCESS_KEY_ID and ROOT_SECRET_ACCESS_KEY in production!")
	} else if cfg.RootSecretAccessKey == "" {
		return nil, fmt.Errorf("ROOT_SECRET_ACCESS_KEY is required when ROOT_ACCESS_KEY_ID is set")
	}
	if !cfg.WebIdentity.Enabled() {
		cfg.Warnings = append(cfg.Warnings,
			"web identity federation is not configured — set AUTH_ISSUER_URL or WEB_IDENTITY_SECRET to enable AssumeRoleWithWebIdentity")
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.RootAccessKeyID == devRootAccessKeyID {
			return nil, fmt.Errorf("ROOT_ACCESS_KEY_ID must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.TLSCertFile == "" && !cfg.AllowInsecureHTTP {
			return nil, fmt.Errorf("TLS_CERT_FILE/TLS_KEY_FILE must be set in production unless ALLOW_INSECURE_HTTP=true")
		}
	}

	return cfg, nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
