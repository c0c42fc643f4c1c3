package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Adapter    AdapterConfig
	Reconciler ReconcilerConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// AdapterConfig identifies this adapter instance. Every state address this
// process owns is prefixed with "<namespace>.".
type AdapterConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type ReconcilerConfig struct {
	BackfillDays    int               `mapstructure:"backfill_days"`
	IntervalSeconds int               `mapstructure:"interval_seconds"`
	GraceMinutes    int               `mapstructure:"grace_minutes"`
	SlotTimes       map[string]string `mapstructure:"slot_times"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("adapter.namespace", "med-plan.0")
	viper.SetDefault("reconciler.backfill_days", 7)
	viper.SetDefault("reconciler.interval_seconds", 60)
	viper.SetDefault("reconciler.grace_minutes", 120)
	viper.SetDefault("reconciler.slot_times", map[string]string{
		"morning": "08:00",
		"noon":    "12:30",
		"evening": "18:30",
		"night":   "22:30",
	})

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
