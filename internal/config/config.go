package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config covers both binaries: the daemon reads Server, the card reads
// Card. One file keeps a card and its daemon pointing at the same place.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Card   CardConfig   `mapstructure:"card"`
}

type ServerConfig struct {
	Listen       string `mapstructure:"listen"`
	DBPath       string `mapstructure:"db_path"`
	EngineBuffer int    `mapstructure:"engine_buffer"`
}

type CardConfig struct {
	URL             string `mapstructure:"url"`
	Entity          string `mapstructure:"entity"`
	DefaultDuration string `mapstructure:"default_duration"`
	UserID          string `mapstructure:"user_id"`
	Style           string `mapstructure:"style"`
	Height          int    `mapstructure:"height"`
	RowHeight       int    `mapstructure:"row_height"`
	EventBuffer     int    `mapstructure:"event_buffer"`
}

// Load reads timercard.yaml (or the explicit path) and applies
// TIMERCARD_* environment overrides, e.g. TIMERCARD_CARD_ENTITY. A missing
// config file is fine; the defaults stand.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("server.listen", ":8099")
	v.SetDefault("server.db_path", "timercard.db")
	v.SetDefault("server.engine_buffer", 64)
	v.SetDefault("card.url", "ws://127.0.0.1:8099/ws")
	v.SetDefault("card.default_duration", "00:30:00")
	v.SetDefault("card.user_id", "user")
	v.SetDefault("card.style", "mini")
	v.SetDefault("card.height", 100)
	v.SetDefault("card.row_height", 30)
	v.SetDefault("card.event_buffer", 16)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("timercard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/timercard")
	}
	v.SetEnvPrefix("TIMERCARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !asConfigNotFound(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}
