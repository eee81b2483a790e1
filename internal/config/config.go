package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration, loaded from home/config.yaml and then
// overridden by environment variables.
type Config struct {
	// BattleAPIBaseURL is the base URL of the battle engine.
	BattleAPIBaseURL string
	// Port the HTTP API listens on.
	Port int
	// APIKey protects the HTTP API when set.
	APIKey string
	// WebhookURL receives battle commentary when set.
	WebhookURL string
	// WebhookUsername is the display name for webhook messages.
	WebhookUsername string
	// PromptTimeout bounds how long humans have to answer a turn prompt.
	PromptTimeout time.Duration
	// BotDelay paces bot-only battles between rounds.
	BotDelay time.Duration
	// DBDriver is "sqlite" (default) or "postgres".
	DBDriver string
	// DBURL is the postgres connection string.
	DBURL string
	// StrategiesDir holds lua strategy scripts. Defaults to home/strategies.
	StrategiesDir string
}

const DefaultPort = 8139

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BattleAPIBaseURL: "http://api:4000",
		Port:             DefaultPort,
		PromptTimeout:    3 * time.Minute,
		BotDelay:         2 * time.Second,
		DBDriver:         "sqlite",
	}
}

// fileConfig is the yaml shape of Config. Durations are strings in the file
// ("3m", "500ms") and parsed on load.
type fileConfig struct {
	BattleAPIBaseURL string `yaml:"battle_api_base_url"`
	Port             int    `yaml:"port"`
	APIKey           string `yaml:"api_key"`
	WebhookURL       string `yaml:"webhook_url"`
	WebhookUsername  string `yaml:"webhook_username"`
	PromptTimeout    string `yaml:"prompt_timeout"`
	BotDelay         string `yaml:"bot_delay"`
	DBDriver         string `yaml:"db_driver"`
	DBURL            string `yaml:"db_url"`
	StrategiesDir    string `yaml:"strategies_dir"`
}

// Load reads home/config.yaml when present and applies environment variable
// overrides. A missing config file is not an error.
func Load(home string) (Config, error) {
	cfg := Default()
	path := filepath.Join(home, "config.yaml")
	if b, err := os.ReadFile(path); err == nil {
		var fc fileConfig
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
		if err := cfg.applyFile(fc); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}
	cfg.applyEnv()
	if cfg.StrategiesDir == "" {
		cfg.StrategiesDir = filepath.Join(home, "strategies")
	}
	return cfg, nil
}

func (c *Config) applyFile(fc fileConfig) error {
	if fc.BattleAPIBaseURL != "" {
		c.BattleAPIBaseURL = fc.BattleAPIBaseURL
	}
	if fc.Port != 0 {
		c.Port = fc.Port
	}
	if fc.APIKey != "" {
		c.APIKey = fc.APIKey
	}
	if fc.WebhookURL != "" {
		c.WebhookURL = fc.WebhookURL
	}
	if fc.WebhookUsername != "" {
		c.WebhookUsername = fc.WebhookUsername
	}
	if fc.DBDriver != "" {
		c.DBDriver = fc.DBDriver
	}
	if fc.DBURL != "" {
		c.DBURL = fc.DBURL
	}
	if fc.StrategiesDir != "" {
		c.StrategiesDir = fc.StrategiesDir
	}
	if fc.PromptTimeout != "" {
		d, err := time.ParseDuration(fc.PromptTimeout)
		if err != nil {
			return fmt.Errorf("prompt_timeout: %w", err)
		}
		c.PromptTimeout = d
	}
	if fc.BotDelay != "" {
		d, err := time.ParseDuration(fc.BotDelay)
		if err != nil {
			return fmt.Errorf("bot_delay: %w", err)
		}
		c.BotDelay = d
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BATTLE_API_BASE_URL"); v != "" {
		c.BattleAPIBaseURL = v
	}
	if v := os.Getenv("BROCK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("BROCK_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("BROCK_WEBHOOK_URL"); v != "" {
		c.WebhookURL = v
	}
	if v := os.Getenv("BROCK_DB_DRIVER"); v != "" {
		c.DBDriver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DBURL = v
	}
	if v := os.Getenv("BROCK_PROMPT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PromptTimeout = d
		}
	}
	if v := os.Getenv("BROCK_BOT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.BotDelay = d
		}
	}
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}
