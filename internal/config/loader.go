package config

import (
	"os"
	"sync"

	"github.com/stravasync/stravasync/internal/errors"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading.
type Loader struct {
	path   string
	mu     sync.RWMutex
	config *Config
}

// NewLoader creates a new configuration loader
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the configuration from the file. A missing file is not an
// error when allowMissing is set; defaults are used instead, so the
// tool works without a config file at all.
func (l *Loader) Load(allowMissing bool) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); err != nil {
		if os.IsNotExist(err) {
			if allowMissing {
				cfg := Default()
				applyEnvOverrides(cfg)
				l.config = cfg
				return cfg, nil
			}
			return nil, &errors.ErrConfigNotFound{Path: l.path}
		}
		return nil, err
	}

	content, err := os.ReadFile(l.path)
	if err != nil {
		return nil, &errors.ErrFileRead{Path: l.path, Err: err}
	}

	cfg, err := Parse(substituteEnvVars(content))
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, &errors.ErrConfigValidation{Err: err}
	}

	l.config = cfg
	return cfg, nil
}

// Get returns the most recently loaded configuration
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Parse unmarshals YAML content over the defaults.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, &errors.ErrConfigParse{Err: err}
	}
	return cfg, nil
}

// substituteEnvVars expands ${VAR} references in the raw YAML so
// secrets can stay out of the file.
func substituteEnvVars(content []byte) []byte {
	return []byte(os.Expand(string(content), func(key string) string {
		return os.Getenv(key)
	}))
}

// applyEnvOverrides resolves the OAuth client credentials from the
// environment when the file leaves them empty.
func applyEnvOverrides(cfg *Config) {
	if cfg.Strava.ClientID == "" {
		cfg.Strava.ClientID = os.Getenv("STRAVA_CLIENT_ID")
	}
	if cfg.Strava.ClientSecret == "" {
		cfg.Strava.ClientSecret = os.Getenv("STRAVA_CLIENT_SECRET")
	}
}
