// Package config loads run configuration from a YAML file and the
// environment. Every key has a MODELBENCH_-prefixed environment override,
// so the file is optional.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Run    RunConfig    `mapstructure:"run"`
	Server ServerConfig `mapstructure:"server"`
	Debug  bool         `mapstructure:"debug"`
}

type APIConfig struct {
	URL            string `mapstructure:"url"`
	Key            string `mapstructure:"key"`
	TextModel      string `mapstructure:"text_model"`
	ImageModel     string `mapstructure:"image_model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	EnableThinking bool   `mapstructure:"enable_thinking"`
}

type RunConfig struct {
	Workers   int    `mapstructure:"workers"`
	CasesDir  string `mapstructure:"cases_dir"`
	OutputDir string `mapstructure:"output_dir"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.API.URL == "" {
		warnings = append(warnings, "api.url is empty")
	}
	if c.API.Key == "" {
		warnings = append(warnings, "api.key is empty; requests will be unauthenticated")
	}
	if c.API.TextModel == "" {
		warnings = append(warnings, "api.text_model is empty")
	}
	if c.Run.Workers <= 0 {
		warnings = append(warnings, fmt.Sprintf("run.workers %d is not positive, falling back to default", c.Run.Workers))
	}
	if c.API.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("api.max_tokens %d is negative", c.API.MaxTokens))
	}
	return warnings
}

// setDefaults registers every key. Keys unknown to viper are invisible to
// AutomaticEnv during Unmarshal, so even the ones defaulting to zero values
// must be declared here.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", "")
	v.SetDefault("api.key", "")
	v.SetDefault("api.text_model", "")
	v.SetDefault("api.image_model", "")
	v.SetDefault("debug", false)
	v.SetDefault("api.max_tokens", 16384)
	v.SetDefault("api.enable_thinking", false)
	v.SetDefault("run.workers", 10)
	v.SetDefault("run.cases_dir", "cases")
	v.SetDefault("run.output_dir", "results")
	v.SetDefault("server.port", 8080)
}

// Load reads configuration from file and environment. A missing config file
// is not an error: defaults plus environment variables still make a usable
// configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MODELBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}
