package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Dev struct {
		Mode bool `yaml:"mode"`
	} `yaml:"dev"`
	// Providers are tried in file order. APIKeyEnv names the environment
	// variable holding the credential; the secret itself never lives in
	// the file.
	Providers []Provider `yaml:"providers"`
	Delivery  struct {
		MaxRetries int      `yaml:"max_retries"`
		BaseDelay  Duration `yaml:"base_delay"`
	} `yaml:"delivery"`
	Orchestrator struct {
		MaxAttempts int      `yaml:"max_attempts"`
		RetryDelay  Duration `yaml:"retry_delay"`
	} `yaml:"orchestrator"`
	Taxonomy struct {
		Path string `yaml:"path"`
	} `yaml:"taxonomy"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

type Provider struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"` // openai | ollama | static
	BaseURL   string   `yaml:"base_url"`
	Model     string   `yaml:"model"`
	APIKeyEnv string   `yaml:"api_key_env"`
	Timeout   Duration `yaml:"timeout"`
}

// Duration decodes yaml values written either as Go duration strings
// ("500ms") or as integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return perr
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// APIKey reads the provider credential from the named environment
// variable.
func (p Provider) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

func Default() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8090"
	cfg.Dev.Mode = true
	cfg.Delivery.MaxRetries = 3
	cfg.Delivery.BaseDelay = Duration(500 * time.Millisecond)
	cfg.Orchestrator.MaxAttempts = 3
	cfg.Orchestrator.RetryDelay = Duration(500 * time.Millisecond)
	cfg.Log.Level = "info"
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	applyEnv(&cfg)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if len(cfg.Providers) == 0 && !cfg.Dev.Mode {
		return errors.New("no providers configured and dev mode disabled")
	}
	for i, p := range cfg.Providers {
		switch p.Kind {
		case "openai", "ollama", "static":
		case "":
			return fmt.Errorf("provider %d: missing kind", i)
		default:
			return fmt.Errorf("provider %d: unknown kind %q", i, p.Kind)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TK_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("TK_DEV_MODE"); v != "" {
		cfg.Dev.Mode = parseBool(v, cfg.Dev.Mode)
	}
	if v := os.Getenv("TK_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Delivery.MaxRetries = n
		}
	}
	if v := os.Getenv("TK_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Delivery.BaseDelay = Duration(d)
		}
	}
	if v := os.Getenv("TK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.MaxAttempts = n
		}
	}
	if v := os.Getenv("TK_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Orchestrator.RetryDelay = Duration(d)
		}
	}
	if v := os.Getenv("TK_TAXONOMY_PATH"); v != "" {
		cfg.Taxonomy.Path = v
	}
	if v := os.Getenv("TK_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("TK_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
