package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultAPIBaseURL   = "https://api.vk.com/method"
	DefaultAPIVersion   = "5.199"
	DefaultCallbackPath = "/callback"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	VK       VKConfig       `toml:"vk"`
	Callback CallbackConfig `toml:"callback"`
	Bot      BotConfig      `toml:"bot"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type VKConfig struct {
	Token          string `toml:"token" validate:"required"`
	Version        string `toml:"version"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type CallbackConfig struct {
	Path         string `toml:"path"`
	Confirmation string `toml:"confirmation"`
	Secret       string `toml:"secret"`
	GroupID      int64  `toml:"group_id"`
}

type BotConfig struct {
	EchoMode bool `toml:"echo_mode"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		VK: VKConfig{
			Version: DefaultAPIVersion,
			BaseURL: DefaultAPIBaseURL,
		},
		Callback: CallbackConfig{
			Path: DefaultCallbackPath,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate reports whether the settings a running gateway needs are present.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
