package config

import (
	"fmt"
	"os"
)

// Config holds application configuration
type Config struct {
	Port     string
	LogLevel string

	// Notion workspace access
	NotionToken     string
	TransactionsDB  string
	AccountsDB      string
	DailyBalancesDB string
	BudgetsDB       string
	WeightsDB       string

	// Shared secret required by the trigger endpoints
	WebhookSecret string

	// Object-storage snapshot cache
	GCSBucket        string
	WeightsObjectKey string

	// Optional cron expression for the in-process daily run
	RecalcSchedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		NotionToken:      os.Getenv("NOTION_TOKEN"),
		TransactionsDB:   os.Getenv("NOTION_DB_TRANSACTIONS"),
		AccountsDB:       os.Getenv("NOTION_DB_ACCOUNTS"),
		DailyBalancesDB:  os.Getenv("NOTION_DB_DAILY_BALANCES"),
		BudgetsDB:        os.Getenv("NOTION_DB_BUDGETS"),
		WeightsDB:        os.Getenv("NOTION_DB_WEIGHTS"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		WeightsObjectKey: getEnv("WEIGHTS_OBJECT_KEY", "weights/latest.json"),
		RecalcSchedule:   os.Getenv("RECALC_SCHEDULE"),
	}

	if cfg.NotionToken == "" {
		return nil, fmt.Errorf("NOTION_TOKEN is required")
	}
	if cfg.TransactionsDB == "" {
		return nil, fmt.Errorf("NOTION_DB_TRANSACTIONS is required")
	}
	if cfg.AccountsDB == "" {
		return nil, fmt.Errorf("NOTION_DB_ACCOUNTS is required")
	}
	if cfg.DailyBalancesDB == "" {
		return nil, fmt.Errorf("NOTION_DB_DAILY_BALANCES is required")
	}
	if cfg.BudgetsDB == "" {
		return nil, fmt.Errorf("NOTION_DB_BUDGETS is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
