package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type DeliveryConfig struct {
	Timeout       time.Duration   `mapstructure:"timeout"`
	MaxRetries    int             `mapstructure:"max_retries"`
	RetrySchedule []time.Duration `mapstructure:"retry_schedule"`
	SweepInterval time.Duration   `mapstructure:"sweep_interval"`
	SweepBatch    int             `mapstructure:"sweep_batch"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("webhookd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/webhookd")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WEBHOOKD")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/webhookd.db")

	viper.SetDefault("delivery.timeout", 30*time.Second)
	viper.SetDefault("delivery.max_retries", 5)
	viper.SetDefault("delivery.retry_schedule", []time.Duration{
		30 * time.Second,
		60 * time.Second,
		5 * time.Minute,
		15 * time.Minute,
		time.Hour,
	})
	viper.SetDefault("delivery.sweep_interval", 15*time.Second)
	viper.SetDefault("delivery.sweep_batch", 100)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
