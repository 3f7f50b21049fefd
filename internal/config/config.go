package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Port        string
	Environment string

	AdminAPIToken string

	// Control-plane database (attempt history, version registry, deploy locks)
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// Redeploy sequencing
	DeployServices        []string
	StopGracePeriod       time.Duration
	RemoveGracePeriod     time.Duration
	StartDeadline         time.Duration
	PollInterval          time.Duration
	DeployLockTTL         time.Duration
	DefaultVolumeName     string
	DefaultRegion         string
	AppRootDomain         string
	AppRootScheme         string
	DefaultConduitVersion string

	// Image builds
	BuilderImageRepo  string
	BuilderDockerfile string

	// Environment surface of the deployed homeserver
	ConduitServerName        string
	ConduitDatabaseBackend   string
	ConduitDatabasePath      string
	ConduitPort              int
	ConduitAllowRegistration bool
	ConduitLog               string
	ConduitConfigPath        string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "sichat-deploy"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Port:        getenv("PORT", "8081"),
		Environment: getenv("ENVIRONMENT", "development"),

		AdminAPIToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),

		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "sichat_deploy"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     10,
		DBMaxOpenConn:     100,
		DBConnMaxLifetime: 3600,
		DBConnMaxIdleTime: 60,

		DeployServices:    parseServices(getenv("DEPLOY_SERVICES", "sichat")),
		StopGracePeriod:   getenvDuration("DEPLOY_STOP_GRACE", 60*time.Second),
		RemoveGracePeriod: getenvDuration("DEPLOY_REMOVE_GRACE", 30*time.Second),
		StartDeadline:     getenvDuration("DEPLOY_START_DEADLINE", 120*time.Second),
		PollInterval:      getenvDuration("DEPLOY_POLL_INTERVAL", 2*time.Second),
		DeployLockTTL:     getenvDuration("DEPLOY_LOCK_TTL", 10*time.Minute),
		DefaultVolumeName: getenv("DEPLOY_VOLUME_NAME", "sichat_data"),
		DefaultRegion:     getenv("DEPLOY_REGION", "fra"),
		AppRootDomain:     strings.TrimLeft(strings.TrimSpace(getenv("APP_ROOT_DOMAIN", "")), "."),
		AppRootScheme:     strings.TrimSpace(getenv("APP_ROOT_SCHEME", "")),

		DefaultConduitVersion: getenv("CONDUIT_VERSION", "v0.6.0"),

		BuilderImageRepo:  getenv("BUILDER_IMAGE_REPO", "registry.sichat.dev/sichat/conduit"),
		BuilderDockerfile: getenv("BUILDER_DOCKERFILE", "Dockerfile"),

		ConduitServerName:        getenv("CONDUIT_SERVER_NAME", "sichat.dev"),
		ConduitDatabaseBackend:   getenv("CONDUIT_DATABASE_BACKEND", "rocksdb"),
		ConduitDatabasePath:      getenv("CONDUIT_DATABASE_PATH", "/var/lib/matrix-conduit"),
		ConduitPort:              getenvInt("CONDUIT_PORT", 6167),
		ConduitAllowRegistration: getenvBool("CONDUIT_ALLOW_REGISTRATION", false),
		ConduitLog:               getenv("CONDUIT_LOG", "warn,state_res=warn"),
		ConduitConfigPath:        getenv("CONDUIT_CONFIG", ""),
	}

	return &cfg
}

// ConduitEnv assembles the environment passed to a started homeserver
// instance. CONDUIT_CONFIG is set even when empty: the binary insists the
// variable exists and an empty value selects env-only configuration.
func (c *Config) ConduitEnv() map[string]string {
	return map[string]string{
		"CONDUIT_SERVER_NAME":        c.ConduitServerName,
		"CONDUIT_DATABASE_BACKEND":   c.ConduitDatabaseBackend,
		"CONDUIT_DATABASE_PATH":      c.ConduitDatabasePath,
		"CONDUIT_PORT":               strconv.Itoa(c.ConduitPort),
		"CONDUIT_ADDRESS":            "0.0.0.0",
		"CONDUIT_ALLOW_REGISTRATION": strconv.FormatBool(c.ConduitAllowRegistration),
		"CONDUIT_LOG":                c.ConduitLog,
		"CONDUIT_CONFIG":             c.ConduitConfigPath,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseServices(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
