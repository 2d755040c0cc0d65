package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config file and environment
// variables, with environment variables taking precedence. Variables use
// the ARCANA_ prefix with underscores for nesting, e.g.
// ARCANA_DATABASE_URL or ARCANA_LLM_GEMINI_API_KEY.
// Returns a populated, validated Config or an error.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/arcana")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars can carry everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("ARCANA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper already knows about. Keys
	// without defaults must be bound explicitly or Unmarshal never sees
	// their env values.
	for _, key := range []string{"database.url", "auth.jwt_secret", "llm.gemini_api_key"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("llm.classifier_model", "gemini-2.0-flash-lite")
	v.SetDefault("llm.analyzer_model", "gemini-2.0-flash")
	v.SetDefault("llm.composer_model", "gemini-2.0-flash")
	v.SetDefault("llm.fallback_composer_model", "gemini-1.5-pro")
	v.SetDefault("llm.request_timeout_seconds", 60)

	v.SetDefault("worker.batch_size", 5)
	v.SetDefault("worker.poll_interval_seconds", 10)
	v.SetDefault("worker.job_delay_millis", 500)
	v.SetDefault("worker.max_consecutive_failures", 5)
	v.SetDefault("worker.backoff_cap_seconds", 300)
	v.SetDefault("worker.workflow_timeout_seconds", 120)
}
