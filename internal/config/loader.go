package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// values is the merged key space shared by every getter. Keys are the
// lower-cased environment variable names, e.g. "token_ttl".
type values struct {
	k *koanf.Koanf
}

func (v values) get(key, defaultValue string) string {
	if v.k == nil || !v.k.Exists(key) {
		return defaultValue
	}
	if s := v.k.String(key); s != "" {
		return s
	}
	return defaultValue
}

type Option func(*loader)

type loader struct {
	filePath  string
	overrides map[string]string
}

// WithConfigFile loads a YAML file before the environment.
func WithConfigFile(path string) Option {
	return func(l *loader) {
		l.filePath = path
	}
}

// WithOverrides sets values that win over the file and the environment,
// e.g. command line flags.
func WithOverrides(overrides map[string]string) Option {
	return func(l *loader) {
		l.overrides = overrides
	}
}

// Load merges, in increasing priority, the YAML file named by WithConfigFile
// or CONFIG_FILE, the environment and any overrides.
func Load(options ...Option) (Config, error) {
	l := &loader{}
	for _, opt := range options {
		opt(l)
	}

	k := koanf.New(".")
	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, errors.Wrap(err, "[config.Load] env")
	}

	filePath := l.filePath
	if filePath == "" {
		filePath = k.String(configFileVar)
	}
	if filePath != "" {
		fileValues := koanf.New(".")
		if err := fileValues.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "[config.Load] file %s", filePath)
		}
		// the environment wins over the file
		if err := fileValues.Merge(k); err != nil {
			return nil, errors.Wrap(err, "[config.Load] merge")
		}
		k = fileValues
	}

	for key, value := range l.overrides {
		if value == "" {
			continue
		}
		if err := k.Set(strings.ToLower(key), value); err != nil {
			return nil, errors.Wrapf(err, "[config.Load] override %s", key)
		}
	}

	v := values{k: k}
	return mainConfig{
		EnvVars:      EnvVars{v},
		Cors:         Cors{v},
		Passwordless: Passwordless{v},
		Stores:       Stores{v},
	}, nil
}

// envValue lower-cases the key and drops empty variables so they do not
// mask values from the file.
func envValue(key, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	return strings.ToLower(key), value
}

// New returns a Config backed by the environment only.
func New() Config {
	c, err := Load()
	if err != nil {
		return mainConfig{}
	}
	return c
}
