package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "tabapp"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultLoginRateLimit   = 5
	defaultDirectoryURL     = "http://localhost:8080"
	defaultSecureStore      = "file"
	defaultSecureStorePath  = ".tabapp/secure"
	defaultBiometricTimeout = 30 * time.Second
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	loginRateLimitEnvVar    = "LOGIN_RATE_LIMIT_PER_MIN"
	directoryTimeoutEnvVar  = "DIRECTORY_TIMEOUT"
	biometricTimeoutEnvVar  = "BIOMETRIC_TIMEOUT"
)

// Secure store backends accepted in SECURE_STORE.
const (
	SecureStoreFile   = "file"
	SecureStoreRedis  = "redis"
	SecureStoreMemory = "memory"
)

// Config captures runtime configuration for the directory service and the
// client harness, loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	LoginRateLimit int
	SeedFile       string

	DirectoryURL     string
	DirectoryTimeout time.Duration

	SecureStore       string
	SecureStorePath   string
	SecureStoreSecret string

	BiometricKinds   []string
	BiometricTimeout time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		LoginRateLimit:    defaultLoginRateLimit,
		SeedFile:          os.Getenv("DIRECTORY_SEED_FILE"),
		DirectoryURL:      getEnv("DIRECTORY_URL", defaultDirectoryURL),
		SecureStore:       strings.ToLower(getEnv("SECURE_STORE", defaultSecureStore)),
		SecureStorePath:   getEnv("SECURE_STORE_PATH", defaultSecureStorePath),
		SecureStoreSecret: os.Getenv("SECURE_STORE_SECRET"),
		BiometricKinds:    splitList(os.Getenv("BIOMETRIC_KINDS")),
		BiometricTimeout:  defaultBiometricTimeout,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.DirectoryTimeout, err = durationFromEnv("", directoryTimeoutEnvVar, 0); err != nil {
		return Config{}, err
	}
	if cfg.BiometricTimeout, err = durationFromEnv("", biometricTimeoutEnvVar, cfg.BiometricTimeout); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(loginRateLimitEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", loginRateLimitEnvVar, err)
		}
		cfg.LoginRateLimit = n
	}

	switch cfg.SecureStore {
	case SecureStoreFile, SecureStoreRedis, SecureStoreMemory:
	default:
		return Config{}, fmt.Errorf("invalid SECURE_STORE %q", cfg.SecureStore)
	}
	if cfg.SecureStore == SecureStoreRedis && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set when SECURE_STORE=redis")
	}

	return cfg, nil
}

// RequireBackends enforces that the directory service has its Postgres and
// Redis backends outside of development.
func (c Config) RequireBackends() error {
	if c.IsDev() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// IsDev reports whether the configured environment is a development one.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
