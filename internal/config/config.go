// Package config loads incidentd settings from file, environment and
// defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved service configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Lexicon  LexiconConfig
	Model    ModelConfig
	Seal     SealConfig
	Auth     AuthConfig
	Alerts   AlertsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port         int
	GRPCPort     int
	CORSOrigins  []string
	RateLimitRPS int
	MaxBodyBytes int64
}

type DatabaseConfig struct {
	// URL empty selects the in-memory stores.
	URL string
}

type LexiconConfig struct {
	Path string
}

type ModelConfig struct {
	BootstrapCorpus string
	MaxFeatures     int
	MinDF           int
	MaxDF           float64
	TrainingTimeout time.Duration
}

type SealConfig struct {
	Key string
}

type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type AlertsConfig struct {
	Webhooks []string
	Secret   string
}

type LogConfig struct {
	Development bool
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5000"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("database.url", "")
	v.SetDefault("lexicon.path", "")
	v.SetDefault("model.bootstrap_corpus", "")
	v.SetDefault("model.max_features", 5000)
	v.SetDefault("model.min_df", 2)
	v.SetDefault("model.max_df", 0.95)
	v.SetDefault("model.training_timeout", "5m")
	v.SetDefault("seal.key", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("alerts.webhooks", []string{})
	v.SetDefault("alerts.secret", "")
	v.SetDefault("log.development", false)
}

// Load reads the named config file from configs/ or the working directory,
// then applies environment overrides such as SERVER_PORT. A missing file is
// not an error; found reports whether one was read.
func Load(name string) (cfg *Config, found bool, err error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	found = true
	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return nil, false, fmt.Errorf("read config: %w", err)
		}
		found = false
	}
	cfg, err = FromViper(v)
	return cfg, found, err
}

// FromViper resolves a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			GRPCPort:     v.GetInt("server.grpc_port"),
			CORSOrigins:  v.GetStringSlice("server.cors_origins"),
			RateLimitRPS: v.GetInt("server.rate_limit_rps"),
			MaxBodyBytes: v.GetInt64("server.max_body_bytes"),
		},
		Database: DatabaseConfig{URL: v.GetString("database.url")},
		Lexicon:  LexiconConfig{Path: v.GetString("lexicon.path")},
		Model: ModelConfig{
			BootstrapCorpus: v.GetString("model.bootstrap_corpus"),
			MaxFeatures:     v.GetInt("model.max_features"),
			MinDF:           v.GetInt("model.min_df"),
			MaxDF:           v.GetFloat64("model.max_df"),
			TrainingTimeout: v.GetDuration("model.training_timeout"),
		},
		Seal: SealConfig{Key: v.GetString("seal.key")},
		Auth: AuthConfig{
			Secret:   v.GetString("auth.secret"),
			TokenTTL: v.GetDuration("auth.token_ttl"),
		},
		Alerts: AlertsConfig{
			Webhooks: v.GetStringSlice("alerts.webhooks"),
			Secret:   v.GetString("alerts.secret"),
		},
		Log: LogConfig{Development: v.GetBool("log.development")},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	case c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535:
		return fmt.Errorf("config: server.grpc_port %d out of range", c.Server.GRPCPort)
	case c.Server.MaxBodyBytes <= 0:
		return errors.New("config: server.max_body_bytes must be positive")
	case c.Model.MaxFeatures <= 0:
		return errors.New("config: model.max_features must be positive")
	case c.Model.MinDF < 1:
		return errors.New("config: model.min_df must be at least 1")
	case c.Model.MaxDF <= 0 || c.Model.MaxDF > 1:
		return fmt.Errorf("config: model.max_df %v not in (0,1]", c.Model.MaxDF)
	case c.Model.TrainingTimeout <= 0:
		return errors.New("config: model.training_timeout must be positive")
	}
	return nil
}
