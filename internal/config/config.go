// Package config provides configuration loading, validation, and management
// for the personachat service. It reads a YAML file through viper, applies
// PERSONACHAT_* environment overrides on top of in-code defaults, and
// validates the result with go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration for all components.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger"`
	Gemini       GeminiConfig       `mapstructure:"gemini"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Roster       RosterConfig       `mapstructure:"roster"`
	Media        MediaConfig        `mapstructure:"media"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// GeminiConfig configures the generative backend. APIKey may be empty at
// startup; the user can supply one later through the credential endpoint.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	TextModel   string        `mapstructure:"text_model"   validate:"oneof=gemini-flash-latest gemini-2.5-pro"`
	ImageModel  string        `mapstructure:"image_model"  validate:"oneof=imagen-4.0-generate-001"`
	VideoModel  string        `mapstructure:"video_model"  validate:"required"`
	Temperature float32       `mapstructure:"temperature"  validate:"min=0,max=2"`
	MaxRetries  int           `mapstructure:"max_retries"  validate:"min=0,max=5"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"  validate:"min=0"`
	Timeout     time.Duration `mapstructure:"timeout"      validate:"min=1s,max=10m"`
}

// OrchestratorConfig selects the responder strategy.
type OrchestratorConfig struct {
	Mode          string `mapstructure:"mode"           validate:"oneof=single multi"`
	MaxResponders int    `mapstructure:"max_responders" validate:"min=1,max=5"`
}

// RosterConfig points at the bot and team manifests. Source is either an
// http(s) base URL or a local directory.
type RosterConfig struct {
	Source      string        `mapstructure:"source"      validate:"required"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=64"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s"`
}

// MediaConfig configures generated artifact storage and video polling.
type MediaConfig struct {
	Dir       string        `mapstructure:"dir"       validate:"required"`
	DBPath    string        `mapstructure:"db_path"   validate:"required"`
	Retention time.Duration `mapstructure:"retention" validate:"min=1h"`
	Video     VideoConfig   `mapstructure:"video"`
}

// VideoConfig controls the video job poller.
type VideoConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=1s"`
	MaxPolls     int           `mapstructure:"max_polls"     validate:"min=1"`
	Resolution   string        `mapstructure:"resolution"    validate:"oneof=720p 1080p"`
}

// HTTPConfig configures the browser-facing API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
	// TurnTimeout bounds one orchestration or generation dispatch. Video jobs
	// run under their own poll budget.
	TurnTimeout time.Duration `mapstructure:"turn_timeout" validate:"min=10s"`
}

// TelegramConfig configures the optional Telegram bridge.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"    validate:"required_if=Enabled true"`
	AdminID int64  `mapstructure:"admin_id" validate:"required_if=Enabled true"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig configures one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// LoadConfig reads configuration from path, falls back to defaults when the
// file does not exist, applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	startTime := time.Now()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		slog.Info("configuration file not found, using defaults", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = lookupAPIKey()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("configuration loaded successfully",
		"path", path,
		"log_level", cfg.Logger.Level,
		"text_model", cfg.Gemini.TextModel,
		"orchestrator_mode", cfg.Orchestrator.Mode,
		"roster_source", cfg.Roster.Source,
		"credential_present", cfg.Gemini.APIKey != "",
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}
