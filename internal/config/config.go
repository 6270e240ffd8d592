package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	ClassifierURL   string        `mapstructure:"CLASSIFIER_URL"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`

	// Pipeline thresholds. Defaults follow the business rules; overriding
	// them is mostly useful in tests and staging.
	MatchThreshold         int `mapstructure:"MATCH_THRESHOLD"`
	RefreshCriticalDays    int `mapstructure:"REFRESH_CRITICAL_DAYS"`
	CreditExpiryWindowDays int `mapstructure:"CREDIT_EXPIRY_WINDOW_DAYS"`
	RecommendTopN          int `mapstructure:"RECOMMEND_TOP_N"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("MATCH_THRESHOLD", 85)
	v.SetDefault("REFRESH_CRITICAL_DAYS", 1825)
	v.SetDefault("CREDIT_EXPIRY_WINDOW_DAYS", 90)
	v.SetDefault("RECOMMEND_TOP_N", 5)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
