package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Provider struct {
		// Selected names the active backend: "openai" or "gemini".
		// Switching it is the only step needed to change backends.
		Selected string `mapstructure:"selected"`
		OpenAI   struct {
			APIKey     string `mapstructure:"api_key"`
			StoryModel string `mapstructure:"story_model"`
			ImageModel string `mapstructure:"image_model"`
			ImageSize  string `mapstructure:"image_size"`
		} `mapstructure:"openai"`
		Gemini struct {
			APIKey     string `mapstructure:"api_key"`
			StoryModel string `mapstructure:"story_model"`
			ImageModel string `mapstructure:"image_model"`
		} `mapstructure:"gemini"`
	} `mapstructure:"provider"`

	Orchestrator struct {
		Strategy           string `mapstructure:"strategy"` // auto|parallel|sequential|background
		ExecBudgetSecs     int    `mapstructure:"exec_budget_secs"`
		PerCallTimeoutSecs int    `mapstructure:"per_call_timeout_secs"`
		Workers            int    `mapstructure:"workers"`
		QueueDepth         int    `mapstructure:"queue_depth"`
	} `mapstructure:"orchestrator"`

	Retry struct {
		MaxRetries     int `mapstructure:"max_retries"`
		InitialDelayMs int `mapstructure:"initial_delay_ms"`
		MaxDelayMs     int `mapstructure:"max_delay_ms"`
	} `mapstructure:"retry"`

	Registry struct {
		SyncRetentionMins       int `mapstructure:"sync_retention_mins"`
		BackgroundRetentionMins int `mapstructure:"background_retention_mins"`
	} `mapstructure:"registry"`

	Polling struct {
		IntervalMs  int `mapstructure:"interval_ms"`
		CeilingMins int `mapstructure:"ceiling_mins"`
		WindowLo    int `mapstructure:"window_lo"`
		WindowHi    int `mapstructure:"window_hi"`
	} `mapstructure:"polling"`

	Server struct {
		Addr string `mapstructure:"addr"`
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	// API keys usually arrive through the environment rather than the file.
	viper.BindEnv("provider.openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("provider.gemini.api_key", "GEMINI_API_KEY")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars carry the
		// whole configuration.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("provider.selected", "openai")
	viper.SetDefault("provider.openai.image_size", "1024x1024")

	viper.SetDefault("orchestrator.strategy", "auto")
	viper.SetDefault("orchestrator.exec_budget_secs", 0)
	viper.SetDefault("orchestrator.per_call_timeout_secs", 55)
	viper.SetDefault("orchestrator.workers", 4)
	viper.SetDefault("orchestrator.queue_depth", 16)

	viper.SetDefault("retry.max_retries", 2)
	viper.SetDefault("retry.initial_delay_ms", 1000)
	viper.SetDefault("retry.max_delay_ms", 5000)

	viper.SetDefault("registry.sync_retention_mins", 30)
	viper.SetDefault("registry.background_retention_mins", 60)

	viper.SetDefault("polling.interval_ms", 2000)
	viper.SetDefault("polling.ceiling_mins", 15)
	viper.SetDefault("polling.window_lo", 30)
	viper.SetDefault("polling.window_hi", 95)

	viper.SetDefault("server.addr", "localhost")
	viper.SetDefault("server.port", "8080")
}

// Duration helpers keep the int-valued knobs in one place.

func (c *Config) ExecBudget() time.Duration {
	return time.Duration(c.Orchestrator.ExecBudgetSecs) * time.Second
}

func (c *Config) PerCallTimeout() time.Duration {
	return time.Duration(c.Orchestrator.PerCallTimeoutSecs) * time.Second
}

func (c *Config) RetryInitialDelay() time.Duration {
	return time.Duration(c.Retry.InitialDelayMs) * time.Millisecond
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMs) * time.Millisecond
}

func (c *Config) SyncRetention() time.Duration {
	return time.Duration(c.Registry.SyncRetentionMins) * time.Minute
}

func (c *Config) BackgroundRetention() time.Duration {
	return time.Duration(c.Registry.BackgroundRetentionMins) * time.Minute
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalMs) * time.Millisecond
}

func (c *Config) PollCeiling() time.Duration {
	return time.Duration(c.Polling.CeilingMins) * time.Minute
}
