package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains token verification settings. Token issuance lives
// in the identity service; this API only verifies.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// LLMConfig contains all model integration settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`

	// ClassifierModel screens questions, AnalyzerModel extracts
	// mood/topic/period, ComposerModel writes the reading.
	ClassifierModel string `mapstructure:"classifier_model" validate:"required"`
	AnalyzerModel   string `mapstructure:"analyzer_model"   validate:"required"`
	ComposerModel   string `mapstructure:"composer_model"   validate:"required"`

	// FallbackComposerModel is tried once when the primary composer
	// returns a structurally invalid reading.
	FallbackComposerModel string `mapstructure:"fallback_composer_model" validate:"required"`

	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"gte=1"`
}

// WorkerConfig tunes the batch worker loop.
type WorkerConfig struct {
	BatchSize              int `mapstructure:"batch_size" validate:"gte=1"`
	PollIntervalSeconds    int `mapstructure:"poll_interval_seconds" validate:"gte=1"`
	JobDelayMillis         int `mapstructure:"job_delay_millis" validate:"gte=0"`
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures" validate:"gte=1"`
	BackoffCapSeconds      int `mapstructure:"backoff_cap_seconds" validate:"gte=1"`
	WorkflowTimeoutSeconds int `mapstructure:"workflow_timeout_seconds" validate:"gte=1"`
}
