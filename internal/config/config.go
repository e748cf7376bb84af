package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Redis struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"redis"`
	Workflow struct {
		// ConflictTTL is how long a conflict stays Pending before the sweep
		// escalates it.
		ConflictTTL        time.Duration `mapstructure:"conflict_ttl"`
		EscalationInterval time.Duration `mapstructure:"escalation_interval"`
		SessionSweep       time.Duration `mapstructure:"session_sweep_interval"`
		SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
		RecoveryWindow     time.Duration `mapstructure:"recovery_window"`
		ActivityDebounce   time.Duration `mapstructure:"activity_debounce"`
		ContextTokenBudget int           `mapstructure:"context_token_budget"`
	} `mapstructure:"workflow"`
}

// Load reads configuration from config.yaml and the environment.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.user", "postgres")
	viper.SetDefault("db.name", "collabflow")
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("workflow.conflict_ttl", 30*time.Minute)
	viper.SetDefault("workflow.escalation_interval", 5*time.Minute)
	viper.SetDefault("workflow.session_sweep_interval", 5*time.Minute)
	viper.SetDefault("workflow.session_idle_timeout", 30*time.Minute)
	viper.SetDefault("workflow.recovery_window", 60*time.Second)
	viper.SetDefault("workflow.activity_debounce", time.Minute)
	viper.SetDefault("workflow.context_token_budget", 8000)

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine; defaults plus env cover local runs.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// DSN assembles the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.DB.Host, c.DB.User, c.DB.Password, c.DB.Name, c.DB.Port, c.DB.SSLMode)
}
