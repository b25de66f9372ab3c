package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all coordinator configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Telemetry TelemetryConfig
	Agent     AgentConfig
	Scan      ScanConfig
	Ingest    IngestConfig
	Lookup    LookupConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds in-process cache settings
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// ResourceDirectives are the base resource limits handed to agents.
// Schedule windows may override them for parts of the day.
type ResourceDirectives struct {
	CPUPercent  int `json:"cpu_percent"`
	MemoryMB    int `json:"memory_mb"`
	Concurrency int `json:"concurrency"`
}

// ScheduleWindow overrides the base directives during a UTC time window.
// Days are time.Weekday values (0 = Sunday). StartHour is inclusive,
// EndHour exclusive. The first matching window wins.
type ScheduleWindow struct {
	Days       []int              `json:"days"`
	StartHour  int                `json:"start_hour"`
	EndHour    int                `json:"end_hour"`
	Directives ResourceDirectives `json:"directives"`
}

// AgentConfig holds agent coordination settings
type AgentConfig struct {
	Base               ResourceDirectives
	Schedule           []ScheduleWindow
	HeartbeatLimit     int64 // heartbeats per agent per window
	HeartbeatWindowSec int
	PairingCodeTTL     time.Duration
	RenderLease        time.Duration
	RenderMaxAttempts  int
	PostClaimTimeout   time.Duration
}

// ScanConfig holds scan policy and the storage endpoint agents write to
type ScanConfig struct {
	Roots            []string
	MountMap         map[string]string
	BatchSize        int
	DateCutoff       time.Duration // zero means no cutoff
	StalenessWindow  time.Duration
	AutoScanEnabled  bool
	AutoScanInterval time.Duration
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
}

// IngestConfig holds ingestion filter settings
type IngestConfig struct {
	AllowedSubfolders []string
	StatusFolderMap   map[string]string
	PolicyExpression  string // optional CEL accept expression
}

// LookupConfig holds the external taxonomy name-lookup settings
type LookupConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "coordinator"),
			User:        getEnv("POSTGRES_USER", "coordinator"),
			Password:    getEnv("POSTGRES_PASSWORD", "coordinator"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
		Agent: AgentConfig{
			Base: ResourceDirectives{
				CPUPercent:  getEnvInt("AGENT_CPU_PERCENT", 50),
				MemoryMB:    getEnvInt("AGENT_MEMORY_MB", 2048),
				Concurrency: getEnvInt("AGENT_CONCURRENCY", 2),
			},
			HeartbeatLimit:     int64(getEnvInt("HEARTBEAT_RATE_LIMIT", 120)),
			HeartbeatWindowSec: getEnvInt("HEARTBEAT_RATE_WINDOW_SEC", 60),
			PairingCodeTTL:     getEnvDuration("PAIRING_CODE_TTL", 15*time.Minute),
			RenderLease:        getEnvDuration("RENDER_LEASE", 10*time.Minute),
			RenderMaxAttempts:  getEnvInt("RENDER_MAX_ATTEMPTS", 3),
			PostClaimTimeout:   getEnvDuration("POST_CLAIM_TIMEOUT", 15*time.Minute),
		},
		Scan: ScanConfig{
			Roots:            getEnvSlice("SCAN_ROOTS", []string{"/mnt/designs"}),
			MountMap:         getEnvStringMap("SCAN_MOUNT_MAP", map[string]string{}),
			BatchSize:        getEnvInt("SCAN_BATCH_SIZE", 200),
			DateCutoff:       getEnvDuration("SCAN_DATE_CUTOFF", 0),
			StalenessWindow:  getEnvDuration("SCAN_STALENESS_WINDOW", 10*time.Minute),
			AutoScanEnabled:  getEnvBool("AUTO_SCAN_ENABLED", false),
			AutoScanInterval: getEnvDuration("AUTO_SCAN_INTERVAL", 6*time.Hour),
			StorageEndpoint:  getEnv("STORAGE_ENDPOINT", ""),
			StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
			StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		},
		Ingest: IngestConfig{
			AllowedSubfolders: getEnvSlice("INGEST_ALLOWED_SUBFOLDERS", nil),
			StatusFolderMap: getEnvStringMap("INGEST_STATUS_FOLDER_MAP", map[string]string{
				"approved":  "approved",
				"in review": "in_review",
				"concepts":  "concept",
			}),
			PolicyExpression: getEnv("INGEST_POLICY_CEL", ""),
		},
		Lookup: LookupConfig{
			BaseURL:  getEnv("LOOKUP_BASE_URL", ""),
			Timeout:  getEnvDuration("LOOKUP_TIMEOUT", 3*time.Second),
			CacheTTL: getEnvDuration("LOOKUP_CACHE_TTL", 1*time.Hour),
		},
	}

	if raw := os.Getenv("AGENT_SCHEDULE"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Agent.Schedule); err != nil {
			return nil, fmt.Errorf("parse AGENT_SCHEDULE: %w", err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Agent.RenderMaxAttempts < 1 {
		return fmt.Errorf("render max attempts must be >= 1")
	}

	for i, w := range c.Agent.Schedule {
		if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 1 || w.EndHour > 24 || w.StartHour >= w.EndHour {
			return fmt.Errorf("schedule window %d has invalid hour range %d-%d", i, w.StartHour, w.EndHour)
		}
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the redis host:port address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// getEnvStringMap parses "key=value,key2=value2" pairs
func getEnvStringMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return out
}
