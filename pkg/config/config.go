package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "shortreel"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Env var names referenced from tests and tooling.
const (
	EnvAppEnv      = "SHORTREEL_APP_ENV"
	EnvPort        = "SHORTREEL_APP_PORT"
	EnvDBDSN       = "SHORTREEL_DB_DSN"
	EnvRedisURL    = "SHORTREEL_REDIS_URL"
	EnvAdminSecret = "SHORTREEL_ADMIN_JWT_SECRET"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Admin        AdminConfig
	Pipeline     PipelineConfig
	Publishing   PublishingConfig
	Captions     CaptionsConfig
	Media        MediaConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Publishing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHORTREEL_APP_ENV" required:"true"`
	Port         string `envconfig:"SHORTREEL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHORTREEL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHORTREEL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHORTREEL_DB_DSN"`
	Driver string `envconfig:"SHORTREEL_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SHORTREEL_DB_HOST"`
	Port     int    `envconfig:"SHORTREEL_DB_PORT" default:"5432"`
	User     string `envconfig:"SHORTREEL_DB_USER"`
	Password string `envconfig:"SHORTREEL_DB_PASSWORD"`
	Name     string `envconfig:"SHORTREEL_DB_NAME"`
	SSLMode  string `envconfig:"SHORTREEL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHORTREEL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHORTREEL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHORTREEL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHORTREEL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("database DSN or host/user/name parts are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL     string `envconfig:"SHORTREEL_REDIS_URL"`
	Address string `envconfig:"SHORTREEL_REDIS_ADDRESS"`
}

// AdminConfig guards the administrative API surface (config writes, requeue).
type AdminConfig struct {
	JWTSecret string `envconfig:"SHORTREEL_ADMIN_JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"SHORTREEL_ADMIN_JWT_ISSUER" default:"shortreel"`
}

// PipelineConfig carries the operator-tunable thresholds for ingestion,
// selection and the processing state machine. The system_config table can
// override threshold values at runtime; these are the defaults.
type PipelineConfig struct {
	MinPopularity      int           `envconfig:"SHORTREEL_PIPELINE_MIN_POPULARITY" default:"10"`
	MinContentLength   int           `envconfig:"SHORTREEL_PIPELINE_MIN_CONTENT_LENGTH" default:"200"`
	MaxContentLength   int           `envconfig:"SHORTREEL_PIPELINE_MAX_CONTENT_LENGTH" default:"10000"`
	ScoreThreshold     int           `envconfig:"SHORTREEL_PIPELINE_SCORE_THRESHOLD" default:"60"`
	SelectionBatch     int           `envconfig:"SHORTREEL_PIPELINE_SELECTION_BATCH" default:"5"`
	LeaseTimeout       time.Duration `envconfig:"SHORTREEL_PIPELINE_LEASE_TIMEOUT" default:"30m"`
	PollInterval       time.Duration `envconfig:"SHORTREEL_PIPELINE_POLL_INTERVAL" default:"1m"`
	Language           string        `envconfig:"SHORTREEL_PIPELINE_LANGUAGE" default:"es"`
	RetentionDays      int           `envconfig:"SHORTREEL_PIPELINE_RETENTION_DAYS" default:"30"`
	MaxUploadAttempts  int           `envconfig:"SHORTREEL_PIPELINE_MAX_UPLOAD_ATTEMPTS" default:"3"`
}

type PublishingConfig struct {
	Platforms     []string `envconfig:"SHORTREEL_PUBLISHING_PLATFORMS" default:"youtube,tiktok"`
	StartHour     int      `envconfig:"SHORTREEL_PUBLISHING_START_HOUR" default:"9"`
	EndHour       int      `envconfig:"SHORTREEL_PUBLISHING_END_HOUR" default:"23"`
	IntervalHours int      `envconfig:"SHORTREEL_PUBLISHING_INTERVAL_HOURS" default:"3"`

	YouTubeEndpoint string `envconfig:"SHORTREEL_PUBLISHING_YOUTUBE_ENDPOINT"`
	YouTubeAPIKey   string `envconfig:"SHORTREEL_PUBLISHING_YOUTUBE_API_KEY"`
	TikTokEndpoint  string `envconfig:"SHORTREEL_PUBLISHING_TIKTOK_ENDPOINT"`
	TikTokAPIKey    string `envconfig:"SHORTREEL_PUBLISHING_TIKTOK_API_KEY"`
}

func (p PublishingConfig) validate() error {
	if p.StartHour < 0 || p.StartHour > 23 || p.EndHour < 0 || p.EndHour > 23 {
		return fmt.Errorf("publishing hours must be within 0-23")
	}
	if p.StartHour >= p.EndHour {
		return fmt.Errorf("publishing start hour must precede end hour")
	}
	if p.IntervalHours <= 0 {
		return fmt.Errorf("publishing interval must be positive")
	}
	return nil
}

type CaptionsConfig struct {
	CanvasWidth    float64 `envconfig:"SHORTREEL_CAPTIONS_CANVAS_WIDTH" default:"1080"`
	CanvasHeight   float64 `envconfig:"SHORTREEL_CAPTIONS_CANVAS_HEIGHT" default:"1920"`
	FontSize       float64 `envconfig:"SHORTREEL_CAPTIONS_FONT_SIZE" default:"60"`
	WordSpacing    float64 `envconfig:"SHORTREEL_CAPTIONS_WORD_SPACING" default:"18"`
	LineSpacing    float64 `envconfig:"SHORTREEL_CAPTIONS_LINE_SPACING" default:"84"`
	TopOffset      float64 `envconfig:"SHORTREEL_CAPTIONS_TOP_OFFSET" default:"640"`
	WordsPerLine   int     `envconfig:"SHORTREEL_CAPTIONS_WORDS_PER_LINE" default:"4"`
	HighlightSeed  int64   `envconfig:"SHORTREEL_CAPTIONS_HIGHLIGHT_SEED" default:"0"`
	HighlightCount int     `envconfig:"SHORTREEL_CAPTIONS_HIGHLIGHT_COUNT" default:"2"`
}

type MediaConfig struct {
	StorageDir    string `envconfig:"SHORTREEL_MEDIA_STORAGE_DIR" default:"storage"`
	BackgroundDir string `envconfig:"SHORTREEL_MEDIA_BACKGROUND_DIR" default:"storage/backgrounds"`
	TTSVoice      string `envconfig:"SHORTREEL_MEDIA_TTS_VOICE" default:"es-MX-JorgeNeural"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHORTREEL_FEATURE_AUTO_MIGRATE" default:"false"`
}
