package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar = "PORT"
	appNameVar = "APP_NAME"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" || port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Admin Gate")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetAdminEmail returns the email address of the one principal allowed
// through the gate. Configured at deployment, never mutated at runtime.
func (EnvVars) GetAdminEmail() string {
	return GetEnv("ADMIN_EMAIL", "")
}

// GetAdminPhone returns the phone number of the authorized principal.
func (EnvVars) GetAdminPhone() string {
	return GetEnv("ADMIN_PHONE", "")
}

func (EnvVars) GetSmtpPassword() string {
	return GetEnv("SMTP_PASSWORD", "")
}

func (EnvVars) GetSmtpAccount() string {
	return GetEnv("SMTP_ACCOUNT", "")
}

func (EnvVars) GetSmtpHost() string {
	return GetEnv("SMTP_HOST", "smtp.gmail.com")
}

func (EnvVars) GetSmtpPort() string {
	return GetEnv("SMTP_PORT", "587")
}

// GetSmsGatewayURL returns the HTTP endpoint of the SMS delivery gateway.
func (EnvVars) GetSmsGatewayURL() string {
	return GetEnv("SMS_GATEWAY_URL", "")
}

func (EnvVars) GetSmsAPIKey() string {
	return GetEnv("SMS_API_KEY", "")
}

// GetDatabaseURL returns the Postgres connection string. When set, gate
// state (throttle, challenges, sessions) is enforced in Postgres.
func (EnvVars) GetDatabaseURL() string {
	return GetEnv("DATABASE_URL", "")
}

// GetStateFile returns the path of the JSON state file used when no
// database is configured. Empty means in-memory state only.
func (EnvVars) GetStateFile() string {
	return GetEnv("STATE_FILE", "")
}

func (EnvVars) GetSentryDSN() string {
	return GetEnv("SENTRY_DSN", "")
}

// GetSessionSigningKey returns the HMAC key for session credentials.
// Empty means a random key is generated at startup (sessions then do not
// survive a restart).
func (EnvVars) GetSessionSigningKey() string {
	return GetEnv("SESSION_SIGNING_KEY", "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
