// Package config loads service configuration from an optional YAML file and
// RESTO_-prefixed environment variables, with working defaults for local runs.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminUser     string        `mapstructure:"admin_user"`
	AdminPassword string        `mapstructure:"admin_password"`
}

type InferenceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// StockModel names the optional specialized stocked-item model on the
	// sidecar. Empty disables the pass; generic containers act as proxy stock.
	StockModel   string            `mapstructure:"stock_model"`
	StockClasses map[string]string `mapstructure:"stock_classes"`
}

// StockClassMap converts the string-keyed viper map into class-ID keys.
// Entries with non-numeric keys are dropped.
func (c InferenceConfig) StockClassMap() map[int]string {
	if len(c.StockClasses) == 0 {
		return nil
	}
	out := make(map[int]string, len(c.StockClasses))
	for key, name := range c.StockClasses {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out[id] = name
	}
	return out
}

type StaffConfig struct {
	PhotoDir string `mapstructure:"photo_dir"`
}

type AnalysisConfig struct {
	Interval           time.Duration `mapstructure:"interval"`
	FrameMaxAge        time.Duration `mapstructure:"frame_max_age"`
	ObjectConfidence   float64       `mapstructure:"object_confidence"`
	PoseConfidence     float64       `mapstructure:"pose_confidence"`
	ItemConfidence     float64       `mapstructure:"item_confidence"`
	QueueLimit         int           `mapstructure:"queue_limit"`
	DirtyTickThreshold int           `mapstructure:"dirty_tick_threshold"`
	MinStockThreshold  int           `mapstructure:"min_stock_threshold"`
}

type IdentityConfig struct {
	StaffSimilarity       float64       `mapstructure:"staff_similarity"`
	CacheSimilarity       float64       `mapstructure:"cache_similarity"`
	CacheMatchWindow      time.Duration `mapstructure:"cache_match_window"`
	CacheTTL              time.Duration `mapstructure:"cache_ttl"`
	DuplicateWindow       time.Duration `mapstructure:"duplicate_window"`
	LookbackDays          int           `mapstructure:"lookback_days"`
	RetryAttempts         int           `mapstructure:"retry_attempts"`
	RetryBackoff          time.Duration `mapstructure:"retry_backoff"`
	RegularVisitThreshold int           `mapstructure:"regular_visit_threshold"`
}

type PersistenceConfig struct {
	BillingDedupWindow   time.Duration `mapstructure:"billing_dedup_window"`
	AlertSuppressWindow  time.Duration `mapstructure:"alert_suppress_window"`
	QueueSessionMinCount int           `mapstructure:"queue_session_min_count"`
}

type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Inference   InferenceConfig   `mapstructure:"inference"`
	Staff       StaffConfig       `mapstructure:"staff"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allow_origins", []string{})

	v.SetDefault("database.dsn", "host=localhost user=resto password=resto dbname=resto_vision port=5432 sslmode=disable")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("auth.admin_password", "")

	v.SetDefault("inference.base_url", "http://localhost:9000")
	v.SetDefault("inference.timeout", "5s")
	v.SetDefault("inference.stock_model", "")

	v.SetDefault("staff.photo_dir", "./staff_photos")

	v.SetDefault("analysis.interval", "1500ms")
	v.SetDefault("analysis.frame_max_age", "10s")
	v.SetDefault("analysis.object_confidence", 0.35)
	v.SetDefault("analysis.pose_confidence", 0.5)
	v.SetDefault("analysis.item_confidence", 0.4)
	v.SetDefault("analysis.queue_limit", 4)
	v.SetDefault("analysis.dirty_tick_threshold", 3)
	v.SetDefault("analysis.min_stock_threshold", 3)

	v.SetDefault("identity.staff_similarity", 0.45)
	v.SetDefault("identity.cache_similarity", 0.6)
	v.SetDefault("identity.cache_match_window", "60s")
	v.SetDefault("identity.cache_ttl", "300s")
	v.SetDefault("identity.duplicate_window", "10s")
	v.SetDefault("identity.lookback_days", 30)
	v.SetDefault("identity.retry_attempts", 3)
	v.SetDefault("identity.retry_backoff", "200ms")
	v.SetDefault("identity.regular_visit_threshold", 5)

	v.SetDefault("persistence.billing_dedup_window", "2m")
	v.SetDefault("persistence.alert_suppress_window", "1m")
	v.SetDefault("persistence.queue_session_min_count", 4)
}

// Load reads configuration from the given file path (optional, empty skips
// the file) and the environment, e.g. RESTO_DATABASE_DSN or RESTO_AUTH_JWT_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RESTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Auth.AdminPassword == "" {
		return nil, errors.New("auth.admin_password is required")
	}
	return &cfg, nil
}
