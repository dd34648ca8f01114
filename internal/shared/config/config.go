package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Directory  DirectoryConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	Workflow   WorkflowConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// DirectoryConfig holds connection settings for the municipal citizen
// registry, a legacy SQL Server system that owns reporter identities.
type DirectoryConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Enabled  bool
}

// EventStoreConfig holds configuration for EventStoreDB.
type EventStoreConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

// WorkflowConfig holds the tunables of the assignment and attendance
// policies.
type WorkflowConfig struct {
	// MaxActiveTasks is the per-worker cap on complaints in Assigned or
	// In Progress status.
	MaxActiveTasks int
	// OfficeHoursStart and OfficeHoursEnd bound attendance writes,
	// HH:MM, half-open interval.
	OfficeHoursStart string
	OfficeHoursEnd   string
	// ReconcileSchedule is a cron expression for the counter
	// reconciliation pass.
	ReconcileSchedule string
}

type LoggingConfig struct {
	Level    string
	Encoding string
}

func Load() (*Config, error) {
	// Missing .env is fine, env vars may come from the environment.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "platform"),
			Password: getEnv("DB_PASSWORD", "platform"),
			Database: getEnv("DB_NAME", "fixmycity"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Directory: DirectoryConfig{
			Host:     getEnv("DIRECTORY_DB_HOST", "localhost"),
			Port:     getEnvInt("DIRECTORY_DB_PORT", 1433),
			User:     getEnv("DIRECTORY_DB_USER", "sa"),
			Password: getEnv("DIRECTORY_DB_PASSWORD", ""),
			Database: getEnv("DIRECTORY_DB_NAME", "CitizenRegistry"),
			SSLMode:  getEnv("DIRECTORY_DB_SSLMODE", "disable"),
			Enabled:  getEnvBool("DIRECTORY_ENABLED", false),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Workflow: WorkflowConfig{
			MaxActiveTasks:    getEnvInt("MAX_ACTIVE_TASKS", 4),
			OfficeHoursStart:  getEnv("OFFICE_HOURS_START", "09:00"),
			OfficeHoursEnd:    getEnv("OFFICE_HOURS_END", "17:00"),
			ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "0 3 * * *"),
		},
		Logging: LoggingConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
