package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/michaelpento.lv/crossarb/types"
)

// Environment variables
const (
	EnvPrivateKey = "CROSSARB_PRIVATE_KEY"
)

// LoadEnv loads environment variables from a .env file if present.
func LoadEnv() error {
	return godotenv.Load()
}

// LoadSecureConfig reads key material from the environment. A missing key
// is fatal at startup.
func LoadSecureConfig() (*SecureConfig, error) {
	privateKey, err := GetRequiredEnv(EnvPrivateKey)
	if err != nil {
		return nil, err
	}
	return &SecureConfig{PrivateKey: privateKey}, nil
}

// GetRequiredEnv returns the value of a required environment variable.
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%w: required environment variable %s not set", types.ErrConfiguration, key)
	}
	return value, nil
}

// GetEnvWithDefault gets an environment variable with a default value.
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
