package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// LoadConfig loads the configuration from file and environment variables.
// A missing config file is not an error; defaults and environment cover
// everything needed for local runs.
func LoadConfig(log logger.Logger) (*Config, error) {
	v := newViper()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info(context.Background(), "no config file found, using defaults and environment")
	}

	return unmarshal(v)
}

// WatchConfig reloads the configuration whenever the config file changes and
// invokes onChange with the fresh value. Reload failures keep the previous
// configuration and are logged.
func WatchConfig(log logger.Logger, onChange func(*Config)) error {
	v := newViper()

	if err := v.ReadInConfig(); err != nil {
		// Nothing to watch without a file.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshal(v)
		if err != nil {
			log.Error(context.Background(), "config reload failed, keeping previous", err,
				logger.String("file", e.Name))
			return
		}
		log.Info(context.Background(), "config reloaded", logger.String("file", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.shutdown_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("security.block_threshold", 10)
	v.SetDefault("security.block_window_minutes", 15)
	v.SetDefault("security.activity_log_size", 500)
	v.SetDefault("quota.query_timeout_seconds", 2)
	v.SetDefault("monitoring.memory_sample_seconds", 30)
	v.SetDefault("monitoring.cpu_sample_seconds", 60)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/gatekeeper/")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GATEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
