package config

import (
	"strconv"
	"strings"
	"time"
)

const (
	defaultTokenTTL      = 60 * time.Minute
	defaultSessionMaxAge = 24 * time.Hour
)

type Passwordless struct {
	values
}

var _ PasswordlessConfig = Passwordless{}

// GetTokenTTL reads TOKEN_TTL as a Go duration ("15m") or a number of seconds.
func (p Passwordless) GetTokenTTL() time.Duration {
	return p.duration("token_ttl", defaultTokenTTL)
}

func (p Passwordless) GetAllowTokenInQuery() bool {
	return p.boolean("allow_token_in_query", true)
}

func (p Passwordless) GetSuccessRedirectURL() string {
	return p.get("success_redirect_url", "")
}

func (p Passwordless) GetFailureRedirectURL() string {
	return p.get("failure_redirect_url", "")
}

func (p Passwordless) GetSessionMaxAge() time.Duration {
	return p.duration("session_max_age", defaultSessionMaxAge)
}

// GetDelivery names the default delivery, "console" or "email".
func (p Passwordless) GetDelivery() string {
	return p.get("delivery", "console")
}

func (p Passwordless) GetAutoRegister() bool {
	return p.boolean("auto_register", false)
}

// GetSeedUsers reads the comma separated SEED_USERS addresses registered at start up.
func (p Passwordless) GetSeedUsers() []string {
	var seeds []string
	for _, email := range strings.Split(p.get("seed_users", ""), ",") {
		if email = strings.TrimSpace(email); email != "" {
			seeds = append(seeds, email)
		}
	}
	return seeds
}

func (v values) duration(key string, defaultValue time.Duration) time.Duration {
	raw := v.get(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func (v values) boolean(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(v.get(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}
