package util

import (
	"os"
	"strconv"
	"time"

	"github.com/minitru/bunnyAI/pkg/logger"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}
}

func GetEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return ""
	}
	return value
}

func GetEnvString(key string, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}

	return value
}

func GetEnvNumeric(key string, defaultValue float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	returnValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return returnValue
}

func GetEnvInt(key string, defaultValue int) int {
	return int(GetEnvNumeric(key, float64(defaultValue)))
}

// GetEnvSeconds reads a duration given in whole or fractional seconds.
func GetEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	seconds := GetEnvNumeric(key, defaultValue.Seconds())
	return time.Duration(seconds * float64(time.Second))
}

// GetEnvBool accepts "true"/"false" and the "1"/"0" flags used by the
// OpenRouter settings.
func GetEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	switch value {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}

	return defaultValue
}
