package config

import (
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// PERSONACHAT_GEMINI_API_KEY or PERSONACHAT_HTTP_ADDR.
const EnvPrefix = "PERSONACHAT"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultTextModel   = "gemini-flash-latest"
	DefaultImageModel  = "imagen-4.0-generate-001"
	DefaultVideoModel  = "veo-3.1-fast-generate-preview"
	DefaultTemperature = 1.0
	DefaultMaxRetries  = 0 // failures surface to the user, who resends
	DefaultRetryDelay  = 2 * time.Second
	DefaultAITimeout   = 2 * time.Minute

	DefaultOrchestratorMode = "single"
	DefaultMaxResponders    = 5

	DefaultRosterSource      = "./public"
	DefaultRosterConcurrency = 8
	DefaultRosterTimeout     = 30 * time.Second

	DefaultMediaDir          = "./media"
	DefaultMediaDBPath       = "./media/index.db"
	DefaultMediaRetention    = 7 * 24 * time.Hour
	DefaultVideoPollInterval = 10 * time.Second
	DefaultVideoMaxPolls     = 90 // 15 minutes at the default interval
	DefaultVideoResolution   = "1080p"

	DefaultHTTPAddr            = ":8080"
	DefaultHTTPReadTimeout     = 30 * time.Second
	DefaultHTTPShutdownTimeout = 10 * time.Second
	DefaultTurnTimeout         = 5 * time.Minute
)

// TextModels lists the selectable text models.
var TextModels = []string{"gemini-flash-latest", "gemini-2.5-pro"}

// ImageModels lists the selectable image models.
var ImageModels = []string{"imagen-4.0-generate-001"}

// setDefaults registers every key with viper so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.text_model", DefaultTextModel)
	v.SetDefault("gemini.image_model", DefaultImageModel)
	v.SetDefault("gemini.video_model", DefaultVideoModel)
	v.SetDefault("gemini.temperature", DefaultTemperature)
	v.SetDefault("gemini.max_retries", DefaultMaxRetries)
	v.SetDefault("gemini.retry_delay", DefaultRetryDelay)
	v.SetDefault("gemini.timeout", DefaultAITimeout)

	v.SetDefault("orchestrator.mode", DefaultOrchestratorMode)
	v.SetDefault("orchestrator.max_responders", DefaultMaxResponders)

	v.SetDefault("roster.source", DefaultRosterSource)
	v.SetDefault("roster.concurrency", DefaultRosterConcurrency)
	v.SetDefault("roster.timeout", DefaultRosterTimeout)

	v.SetDefault("media.dir", DefaultMediaDir)
	v.SetDefault("media.db_path", DefaultMediaDBPath)
	v.SetDefault("media.retention", DefaultMediaRetention)
	v.SetDefault("media.video.poll_interval", DefaultVideoPollInterval)
	v.SetDefault("media.video.max_polls", DefaultVideoMaxPolls)
	v.SetDefault("media.video.resolution", DefaultVideoResolution)

	v.SetDefault("http.addr", DefaultHTTPAddr)
	v.SetDefault("http.read_timeout", DefaultHTTPReadTimeout)
	v.SetDefault("http.shutdown_timeout", DefaultHTTPShutdownTimeout)
	v.SetDefault("http.turn_timeout", DefaultTurnTimeout)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_id", 0)

	v.SetDefault("scheduler.tasks", map[string]any{
		"media_cleanup":   map[string]any{"enabled": true, "schedule": "0 0 4 * * *"},
		"sql_maintenance": map[string]any{"enabled": true, "schedule": "0 30 4 * * 0"},
	})
}
