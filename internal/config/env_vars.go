package config

import (
	"fmt"
	"strings"
)

const (
	configFileVar = "config_file"
	portEnvVar    = "port"
	appNameVar    = "app_name"
	baseURLVar    = "base_url"
	logLevelVar   = "log_level"
	envVar        = "env"
)

type EnvVars struct {
	values
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.get(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.get(appNameVar, "Go Passwordless")
}

func (e EnvVars) GetSmtpPassword() string {
	return e.get("smtp_password", "")
}

func (e EnvVars) GetSmtpAccount() string {
	return e.get("smtp_account", "")
}

func (e EnvVars) GetSmtpHost() string {
	return e.get("smtp_host", "smtp.gmail.com")
}

func (e EnvVars) GetSmtpPort() string {
	return e.get("smtp_port", "587")
}

// GetSmtpFrom defaults to the SMTP account.
func (e EnvVars) GetSmtpFrom() string {
	return e.get("smtp_from", e.GetSmtpAccount())
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.get(envVar, "DEV"))
}

func (e EnvVars) GetLogLevel() string {
	return e.get(logLevelVar, "info")
}

// GetBaseURL returns the externally visible URL of the server (e.g., "https://auth.example.com")
// This is used to build the links sent to users
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.get(baseURLVar, "http://localhost:8080"), "/")
}
