// Package config loads wlmd's configuration from file, flags and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the complete wlmd configuration.
type Config struct {
	Pool   PoolConfig   `yaml:"pool" json:"pool" mapstructure:"pool"`
	WLM    WLMConfig    `yaml:"wlm" json:"wlm" mapstructure:"wlm"`
	Logger LoggerConfig `yaml:"logger" json:"logger" mapstructure:"logger"`
	Server ServerConfig `yaml:"server" json:"server" mapstructure:"server"`
}

// PoolConfig sizes the worker pool. BinaryPath is the build-action worker
// executable spawned per worker process.
type PoolConfig struct {
	MinWorkers int    `yaml:"min_workers" json:"min_workers" mapstructure:"min_workers"`
	MaxWorkers int    `yaml:"max_workers" json:"max_workers" mapstructure:"max_workers"`
	BinaryPath string `yaml:"binary_path" json:"binary_path" mapstructure:"binary_path"`
}

// WLMConfig mirrors spec.md §6's enumerated configuration options exactly.
type WLMConfig struct {
	TotalWorkerMemoryLimitMB  int           `yaml:"total_worker_memory_limit_mb" json:"total_worker_memory_limit_mb" mapstructure:"total_worker_memory_limit_mb"`
	WorkerMemoryLimitMB       int           `yaml:"worker_memory_limit_mb" json:"worker_memory_limit_mb" mapstructure:"worker_memory_limit_mb"`
	WorkerMetricsPollInterval time.Duration `yaml:"worker_metrics_poll_interval" json:"worker_metrics_poll_interval" mapstructure:"worker_metrics_poll_interval"`
	ShrinkWorkerPool          bool          `yaml:"shrink_worker_pool" json:"shrink_worker_pool" mapstructure:"shrink_worker_pool"`
	WorkerVerbose             bool          `yaml:"worker_verbose" json:"worker_verbose" mapstructure:"worker_verbose"`
}

// LoggerConfig controls zap's output.
type LoggerConfig struct {
	Level  string `yaml:"level" json:"level" mapstructure:"level"`
	Format string `yaml:"format" json:"format" mapstructure:"format"`
}

// ServerConfig controls the status/metrics HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port" json:"port" mapstructure:"port"`
}

// Load reads configuration from configPath (if set), falling back to
// ./configs/wlmd.yaml, then applies environment variable overrides and
// finally any flags set in flagOverrides. flagOverrides may be nil, in
// which case no flag takes precedence over file/env/default values.
//
// flagOverrides is bound onto the same viper instance Load unmarshals
// from (unlike binding onto viper's package-level global instance, which
// this function never touches), so a flag the caller actually set wins
// over the config file and defaults, per viper's usual precedence order.
func Load(configPath string, flagOverrides *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("wlmd")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("wlmd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flagOverrides != nil {
		if err := bindFlags(v, flagOverrides); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, flagName := range map[string]string{
		"pool.min_workers": "min-workers",
		"pool.max_workers": "max-workers",
		"pool.binary_path": "binary",
		"server.port":      "port",
	} {
		flag := flags.Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pool.min_workers", 2)
	v.SetDefault("pool.max_workers", 10)
	v.SetDefault("pool.binary_path", "./build-worker")

	v.SetDefault("wlm.total_worker_memory_limit_mb", 0)
	v.SetDefault("wlm.worker_memory_limit_mb", 0)
	v.SetDefault("wlm.worker_metrics_poll_interval", "5s")
	v.SetDefault("wlm.shrink_worker_pool", false)
	v.SetDefault("wlm.worker_verbose", false)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("server.port", 8080)
}

func validate(cfg *Config) error {
	if cfg.Pool.MinWorkers < 0 {
		return fmt.Errorf("pool.min_workers must be >= 0")
	}
	if cfg.Pool.MaxWorkers < cfg.Pool.MinWorkers {
		return fmt.Errorf("pool.max_workers must be >= pool.min_workers")
	}
	if cfg.WLM.TotalWorkerMemoryLimitMB < 0 {
		return fmt.Errorf("wlm.total_worker_memory_limit_mb must be >= 0")
	}
	if cfg.WLM.WorkerMemoryLimitMB < 0 {
		return fmt.Errorf("wlm.worker_memory_limit_mb must be >= 0")
	}
	if cfg.WLM.WorkerMetricsPollInterval <= 0 {
		return fmt.Errorf("wlm.worker_metrics_poll_interval must be positive")
	}
	return nil
}
