package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config, _, err := load(configPath)
	return config, err
}

// LoadAndWatch loads configuration and reloads it whenever the config file changes.
// Reloads that fail to parse or validate are reported to onError and otherwise ignored.
func LoadAndWatch(configPath string, callback func(*Config), onError func(error)) (*Config, error) {
	config, v, err := load(configPath)
	if err != nil {
		return nil, err
	}

	// Nothing to watch when running purely on defaults and environment
	if v.ConfigFileUsed() == "" {
		return config, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig := &Config{}
		if err := v.Unmarshal(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to unmarshal config: %w", err))
			}
			return
		}

		if err := validateConfig(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("invalid configuration: %w", err))
			}
			return
		}

		callback(newConfig)
	})
	v.WatchConfig()

	return config, nil
}

func load(configPath string) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Register every default key so env overrides and reloads keep them
	defaults, err := yaml.Marshal(GetDefaults())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	seed := viper.New()
	seed.SetConfigType("yaml")
	if err := seed.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	for _, key := range seed.AllKeys() {
		v.SetDefault(key, seed.Get(key))
	}

	// Environment variable overrides
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Use specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mail-sentinel/")
		v.AddConfigPath("$HOME/.mail-sentinel/")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, v, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid max body size: %d", config.Server.MaxBodyBytes)
	}

	if len(config.Privacy.Categories) == 0 {
		return fmt.Errorf("privacy categories must not be empty (use \"all\" to enable every category)")
	}

	if config.Privacy.MatchTimeout < 0 {
		return fmt.Errorf("invalid match timeout: %s", config.Privacy.MatchTimeout)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache is enabled but redis_url is empty")
	}

	if config.Storage.Enabled && config.Storage.DatabaseURL == "" {
		return fmt.Errorf("storage is enabled but database_url is empty")
	}

	if config.Security.RateLimit.Enabled && (config.Security.RateLimit.RequestsPerMin <= 0 || config.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid rate limit: %d requests/min, burst %d",
			config.Security.RateLimit.RequestsPerMin, config.Security.RateLimit.Burst)
	}

	if config.WebSocket.Enabled && config.WebSocket.Password == "" {
		return fmt.Errorf("websocket is enabled but no password is set")
	}

	if config.Training.TestSize <= 0 || config.Training.TestSize >= 1 {
		return fmt.Errorf("invalid training test size: %v (must be between 0 and 1)", config.Training.TestSize)
	}

	if config.Training.MaxFeatures <= 0 {
		return fmt.Errorf("invalid max features: %d", config.Training.MaxFeatures)
	}

	if config.Training.Alpha <= 0 {
		return fmt.Errorf("invalid smoothing alpha: %v", config.Training.Alpha)
	}

	if config.Training.BatchSize <= 0 || config.Training.WorkerCount <= 0 {
		return fmt.Errorf("invalid training batch size %d or worker count %d",
			config.Training.BatchSize, config.Training.WorkerCount)
	}

	return nil
}
