package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/Vast-Academy/account-android-app-backend/internal/constants"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"
)

var (
	ErrMissingAuthVerifyURL  = models.ConfigError{Message: "missing identity provider verify URL"}
	ErrMissingPushGatewayURL = models.ConfigError{Message: "missing push gateway URL"}
	ErrMissingDBPath         = models.ConfigError{Message: "missing database path"}
)

// LoadConfig reads the JSON config file, fills defaults, and applies
// environment overrides. Environment always wins over the file.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Auth.VerifyURL == "" {
		return ErrMissingAuthVerifyURL
	}
	if c.Push.GatewayURL == "" {
		return ErrMissingPushGatewayURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.ExpirySweepIntervalMin <= 0 {
		c.Server.ExpirySweepIntervalMin = constants.DefaultExpirySweepIntervalMin
	}
	if c.Server.StaleCheckIntervalMin <= 0 {
		c.Server.StaleCheckIntervalMin = constants.DefaultStaleCheckIntervalMin
	}
	if c.Server.StaleThresholdMin <= 0 {
		c.Server.StaleThresholdMin = constants.DefaultStaleThresholdMin
	}
	if c.Auth.TimeoutSec <= 0 {
		c.Auth.TimeoutSec = constants.DefaultAuthTimeoutSec
	}
	if c.Push.TimeoutSec <= 0 {
		c.Push.TimeoutSec = constants.DefaultPushTimeoutSec
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if url := os.Getenv("AUTH_VERIFY_URL"); url != "" {
		c.Auth.VerifyURL = url
	}
	if key := os.Getenv("AUTH_API_KEY"); key != "" {
		c.Auth.APIKey = key
	}
	if url := os.Getenv("PUSH_GATEWAY_URL"); url != "" {
		c.Push.GatewayURL = url
	}
	if key := os.Getenv("PUSH_API_KEY"); key != "" {
		c.Push.APIKey = key
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}
