package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr          string
	LocationsFile     string
	Prefix            string
	DatabaseURL       string
	LogLevel          string
	LogFormat         string
	DryRun            bool
	Backend           string
	SFTPTarget        string
	SFTPPort          int
	SFTPKeyFile       string
	SFTPKnownHosts    string
	SFTPTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	MaxBodyBytes      int64
}

const (
	BackendLocal = "local"
	BackendSFTP  = "sftp"
)

// DefaultMaxBodyBytes caps the request body a delete request may carry when
// MaxBodyBytes is not positive.
const DefaultMaxBodyBytes = 1 << 20

// Load reads an optional .env file from the working directory and then the
// process environment. Values already set in the environment win.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		HTTPAddr:          envOr("STATIC_DELETE_ADDR", ":8080"),
		LocationsFile:     envOr("STATIC_DELETE_LOCATIONS", "/etc/nebula-panel/static-delete.yaml"),
		Prefix:            envOr("STATIC_DELETE_PREFIX", defaultPrefix()),
		DatabaseURL:       envOr("STATIC_DELETE_DATABASE_URL", ""),
		LogLevel:          envOr("STATIC_DELETE_LOG_LEVEL", "info"),
		LogFormat:         envOr("STATIC_DELETE_LOG_FORMAT", "json"),
		DryRun:            envBoolOr("STATIC_DELETE_DRY_RUN", false),
		Backend:           strings.ToLower(envOr("STATIC_DELETE_BACKEND", BackendLocal)),
		SFTPTarget:        envOr("STATIC_DELETE_SFTP_TARGET", ""),
		SFTPPort:          envIntOr("STATIC_DELETE_SFTP_PORT", 22),
		SFTPKeyFile:       envOr("STATIC_DELETE_SFTP_KEY", ""),
		SFTPKnownHosts:    envOr("STATIC_DELETE_SFTP_KNOWN_HOSTS", ""),
		SFTPTimeout:       envDurationOr("STATIC_DELETE_SFTP_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: envDurationOr("STATIC_DELETE_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownTimeout:   envDurationOr("STATIC_DELETE_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxBodyBytes:      envInt64Or("STATIC_DELETE_MAX_BODY_BYTES", DefaultMaxBodyBytes),
	}
}

func defaultPrefix() string {
	wd, err := os.Getwd()
	if err != nil {
		return "/"
	}
	return wd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return fallback
}
