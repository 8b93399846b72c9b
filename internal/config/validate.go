package config

import (
	"fmt"
	"net/mail"
	"strings"
)

// MinSecretKeyLength matches what auth.NewTokenService accepts.
const MinSecretKeyLength = 16

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	return c.validateLog()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.LoginRateLimit < 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must not be negative, got %d", c.Server.LoginRateLimit)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	_, err := c.Database.SQLitePath()
	return err
}

func (c *Config) validateAuth() error {
	if len(c.Auth.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("SECRET_KEY must be at least %d characters", MinSecretKeyLength)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Auth.SessionTTL)
	}
	if c.Auth.MinPasswordLength < 1 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be at least 1, got %d", c.Auth.MinPasswordLength)
	}
	if c.Auth.AdminEmail != "" {
		if _, err := mail.ParseAddress(c.Auth.AdminEmail); err != nil {
			return fmt.Errorf("ADMIN_EMAIL %q is not a valid address", c.Auth.AdminEmail)
		}
	}
	return nil
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func (c *Config) validateLog() error {
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
}
