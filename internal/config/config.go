package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	PasswordlessConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetBaseURL() string
	GetSmtpHost() string
	GetSmtpPort() string
	GetSmtpPassword() string
	GetSmtpAccount() string
	GetSmtpFrom() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type PasswordlessConfig interface {
	GetTokenTTL() time.Duration
	GetAllowTokenInQuery() bool
	GetSuccessRedirectURL() string
	GetFailureRedirectURL() string
	GetSessionMaxAge() time.Duration
	GetDelivery() string
	GetAutoRegister() bool
	GetSeedUsers() []string
}

type StoreConfig interface {
	GetStore() string
	GetSessionStore() string
	GetRedisAddr() string
	GetBadgerDir() string
	GetSQLDialect() string
	GetSQLDSN() string
	GetMongoURI() string
	GetMongoDB() string
}

type mainConfig struct {
	EnvVars
	Cors
	Passwordless
	Stores
}

var _ Config = mainConfig{}
