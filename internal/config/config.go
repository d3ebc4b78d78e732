package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the TOML config at path, applies defaults, pulls credentials
// from the environment where the file leaves them empty, and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnvCredentials()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvCredentials fills credential fields from the environment when the
// config file leaves them blank, so keys can stay out of checked-in files.
func (c *Config) applyEnvCredentials() {
	if c.Exchange.APIKey == "" {
		c.Exchange.APIKey = os.Getenv("BINANCE_API_KEY")
	}
	if c.Exchange.APISecret == "" {
		c.Exchange.APISecret = os.Getenv("BINANCE_API_SECRET")
	}
	if c.Oracle.APIKey == "" {
		c.Oracle.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Notify.Telegram.BotToken == "" {
		c.Notify.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
}
