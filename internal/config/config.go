package config

type Config interface {
	EnvConfig
	GateConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetAdminEmail() string
	GetAdminPhone() string
	GetSmtpHost() string
	GetSmtpPort() string
	GetSmtpPassword() string
	GetSmtpAccount() string
	GetSmsGatewayURL() string
	GetSmsAPIKey() string
	GetDatabaseURL() string
	GetStateFile() string
	GetSentryDSN() string
	GetSessionSigningKey() string
}

type mainConfig struct {
	EnvVars
	Gate
}

func New() Config {
	return mainConfig{}
}
