package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/BradenHooton/riskgate/internal/risk"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Storage  string
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Risk     RiskConfig
	Geo      GeoConfig
	Notify   NotifyConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	LogFormat      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	TrustedProxies []string
	// LoginRateLimit is requests per minute per client IP on the login route.
	LoginRateLimit int
	// TrustClientGeoHeaders honors X-City/X-Country from any client.
	TrustClientGeoHeaders bool
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	BootstrapUsername string
	BootstrapPassword string
}

type RiskConfig struct {
	ModelDir          string
	Location          *time.Location
	HighRiskCountries []string
	ClaimWindow       time.Duration
	Policy            risk.Policy
}

type GeoConfig struct {
	DBPath   string
	CacheTTL time.Duration
}

// NotifyConfig configures escalation mail. Mail is sent only when Enabled.
type NotifyConfig struct {
	AWSRegion   string
	FromAddress string
	Recipients  []string
}

func (n NotifyConfig) Enabled() bool {
	return n.AWSRegion != "" && n.FromAddress != "" && len(n.Recipients) > 0
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Storage: strings.ToLower(getEnv("STORAGE_DRIVER", StoragePostgres)),
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "riskgate"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:                  getEnv("PORT", "8080"),
			Env:                   env,
			LogLevel:              getEnv("LOG_LEVEL", "info"),
			LogFormat:             getEnv("LOG_FORMAT", "json"),
			ReadTimeout:           getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:          getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:           getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:        getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			TrustedProxies:        getEnvAsList("TRUSTED_PROXIES"),
			LoginRateLimit:        getEnvAsInt("LOGIN_RATE_LIMIT", 20),
			TrustClientGeoHeaders: getEnvAsBool("GEO_TRUST_CLIENT_HEADERS", false),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			BootstrapUsername: getEnv("BOOTSTRAP_ADMIN_USERNAME", ""),
			BootstrapPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		Geo: GeoConfig{
			DBPath:   getEnv("GEOIP_DB_PATH", ""),
			CacheTTL: getEnvAsDuration("GEOIP_CACHE_TTL", 1*time.Hour),
		},
		Notify: NotifyConfig{
			AWSRegion:   getEnv("AWS_REGION", ""),
			FromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
			Recipients:  getEnvAsList("ALERT_RECIPIENTS"),
		},
	}

	switch cfg.Storage {
	case StoragePostgres:
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q (got %q)", StoragePostgres, StorageMemory, cfg.Storage)
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	riskCfg, err := loadRisk()
	if err != nil {
		return nil, err
	}
	cfg.Risk = riskCfg

	if cfg.Auth.BootstrapUsername != "" && cfg.Auth.BootstrapPassword == "" {
		return nil, fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD is required when BOOTSTRAP_ADMIN_USERNAME is set")
	}

	return cfg, nil
}

// loadRisk builds the classifier policy: defaults, then RISK_POLICY_FILE,
// then the individual env overrides.
func loadRisk() (RiskConfig, error) {
	tz := getEnv("RISK_TIMEZONE", "Asia/Jakarta")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return RiskConfig{}, fmt.Errorf("RISK_TIMEZONE %q: %w", tz, err)
	}

	policy := risk.DefaultPolicy()
	if path := getEnv("RISK_POLICY_FILE", ""); path != "" {
		if policy, err = risk.LoadPolicyFile(path, policy); err != nil {
			return RiskConfig{}, err
		}
	}
	policy.DelaySeconds = getEnvAsInt("DELAY_SECONDS", policy.DelaySeconds)
	policy.BruteForce.Window = getEnvAsDuration("BRUTE_FORCE_WINDOW", policy.BruteForce.Window)
	if err := policy.Validate(); err != nil {
		return RiskConfig{}, err
	}

	countries := risk.DefaultHighRiskCountries
	if list := getEnvAsList("RISK_HIGH_RISK_COUNTRIES"); list != nil {
		countries = list
	}

	return RiskConfig{
		ModelDir:          getEnv("MODEL_DIR", "models"),
		Location:          loc,
		HighRiskCountries: countries,
		ClaimWindow:       getEnvAsDuration("DELAY_CLAIM_WINDOW", 15*time.Minute),
		Policy:            policy,
	}, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL renders the connection as a postgres:// URL for lib/pq.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated value, dropping empty entries.
// Unset or blank yields nil.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
