package config

import (
	"os"
	"strconv"
	"time"
)

type WalletConfig struct {
	TransferCodeTTL   time.Duration
	HistoryLimit      int
	MarketplaceLimit  int
	EventsQueue       string
	EventsURL         string
	RequestTimeout    time.Duration
	ShutdownGracetime time.Duration
}

func LoadWalletConfig() *WalletConfig {
	return &WalletConfig{
		TransferCodeTTL:   getEnvAsDuration("TRANSFER_CODE_TTL", 10*time.Minute),
		HistoryLimit:      getEnvAsInt("HISTORY_LIMIT", 50),
		MarketplaceLimit:  getEnvAsInt("MARKETPLACE_LIMIT", 50),
		EventsQueue:       getEnv("EVENTS_QUEUE", "wallet_events"),
		EventsURL:         getEnv("EVENTS_AMQP_URL", ""),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
		ShutdownGracetime: getEnvAsDuration("SHUTDOWN_GRACETIME", 30*time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
