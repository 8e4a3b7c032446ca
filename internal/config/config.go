package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds application configuration
type Config struct {
	Host              string
	Port              string
	StorageDriver     string
	DataDir           string
	StorageQuotaBytes int64
	DBConn            string
	LogLevel          string
	BackupDir         string
	SMTPHost          string
	SMTPPort          string
	SMTPUsername      string
	SMTPPassword      string
	SenderEmail       string
	OperatorEmail     string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	quota, err := strconv.ParseInt(getEnv("STORAGE_QUOTA_BYTES", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_QUOTA_BYTES: %w", err)
	}

	cfg := &Config{
		Host:              getEnv("HOST", "127.0.0.1"),
		Port:              getEnv("PORT", "8080"),
		StorageDriver:     getEnv("STORAGE_DRIVER", "file"),
		DataDir:           getEnv("DATA_DIR", "./data"),
		StorageQuotaBytes: quota,
		DBConn:            getEnv("DB_CONN", "host=localhost port=5432 user=kassa password=kassa dbname=kassa sslmode=disable"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		BackupDir:         getEnv("BACKUP_DIR", "./backups"),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SenderEmail:       getEnv("SENDER_EMAIL", ""),
		OperatorEmail:     getEnv("OPERATOR_EMAIL", ""),
	}

	if cfg.StorageDriver != "file" && cfg.StorageDriver != "postgres" {
		return nil, fmt.Errorf("unknown STORAGE_DRIVER: %s", cfg.StorageDriver)
	}
	if cfg.StorageDriver == "file" && cfg.DataDir == "" {
		return nil, fmt.Errorf("DATA_DIR is required for the file driver")
	}
	if cfg.StorageDriver == "postgres" && cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required for the postgres driver")
	}

	return cfg, nil
}

// RemindersEnabled reports whether SMTP settings are complete enough to
// send the daily digest.
func (c *Config) RemindersEnabled() bool {
	return c.SMTPHost != "" && c.SenderEmail != "" && c.OperatorEmail != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
