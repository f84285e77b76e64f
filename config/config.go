// Package config loads gigmatch settings from a YAML file, the environment
// and flags. Missing required values fail fast at startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces every environment override, e.g. GIGMATCH_HTTP_ADDR.
	EnvPrefix = "GIGMATCH"
	// FileName is the config file looked up in the working directory.
	FileName = "gigmatch"
)

// Keys that callers may require explicitly.
const (
	KeyDatabaseURL = "database.url"
	KeyRedisURL    = "redis.url"
	KeyJWTSecret   = "auth.jwt-secret"
)

type Config struct {
	Debug     bool            `mapstructure:"debug"`
	JSON      bool            `mapstructure:"json"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
}

type HTTPConfig struct {
	Addr       string        `mapstructure:"addr"`
	RateLimit  int           `mapstructure:"rate-limit"`
	RateWindow time.Duration `mapstructure:"rate-window"`
	LoginLimit int           `mapstructure:"login-limit"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max-conns"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt-secret"`
	SessionTTL time.Duration `mapstructure:"session-ttl"`
}

// SMSConfig points at the HTTP SMS gateway. An empty BaseURL disables SMS.
type SMSConfig struct {
	BaseURL string        `mapstructure:"base-url"`
	APIKey  string        `mapstructure:"api-key"`
	Sender  string        `mapstructure:"sender"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SchedulerConfig struct {
	RelaySpec    string `mapstructure:"relay-spec"`
	ReminderSpec string `mapstructure:"reminder-spec"`
}

type ReminderConfig struct {
	Window time.Duration `mapstructure:"window"`
}

type OutboxConfig struct {
	BatchSize   int `mapstructure:"batch-size"`
	MaxAttempts int `mapstructure:"max-attempts"`
}

type ScoringConfig struct {
	Shakti ShaktiConfig `mapstructure:"shakti"`
	Match  MatchConfig  `mapstructure:"match"`
}

type ShaktiConfig struct {
	PeakStart        int     `mapstructure:"peak-start"`
	PeakEnd          int     `mapstructure:"peak-end"`
	OldAgeFloor      float64 `mapstructure:"old-age-floor"`
	ExperienceCap    int     `mapstructure:"experience-cap"`
	SkillCap         int     `mapstructure:"skill-cap"`
	LanguageCap      int     `mapstructure:"language-cap"`
	AgeWeight        float64 `mapstructure:"age-weight"`
	ExperienceWeight float64 `mapstructure:"experience-weight"`
	SkillWeight      float64 `mapstructure:"skill-weight"`
	LanguageWeight   float64 `mapstructure:"language-weight"`
}

type MatchConfig struct {
	SkillWeight      float64 `mapstructure:"skill-weight"`
	ExperienceWeight float64 `mapstructure:"experience-weight"`
	LanguageWeight   float64 `mapstructure:"language-weight"`
	LocationWeight   float64 `mapstructure:"location-weight"`
	DistanceScaleKm  float64 `mapstructure:"distance-scale-km"`
}

type AlertsConfig struct {
	Threshold float64 `mapstructure:"threshold"`
	Limit     int     `mapstructure:"limit"`
}

var defaults = map[string]any{
	"debug": false,
	"json":  false,

	"http.addr":        ":8080",
	"http.rate-limit":  120,
	"http.rate-window": time.Minute,
	"http.login-limit": 10,

	KeyDatabaseURL:       "",
	"database.max-conns": 16,
	KeyRedisURL:          "",

	KeyJWTSecret:       "",
	"auth.session-ttl": 24 * time.Hour,

	"sms.base-url": "",
	"sms.api-key":  "",
	"sms.sender":   "GIGMATCH",
	"sms.timeout":  5 * time.Second,

	"scheduler.relay-spec":    "@every 5s",
	"scheduler.reminder-spec": "@every 15m",
	"reminder.window":         24 * time.Hour,

	"outbox.batch-size":   50,
	"outbox.max-attempts": 5,

	"scoring.shakti.peak-start":        30,
	"scoring.shakti.peak-end":          45,
	"scoring.shakti.old-age-floor":     0.4,
	"scoring.shakti.experience-cap":    15,
	"scoring.shakti.skill-cap":         8,
	"scoring.shakti.language-cap":      4,
	"scoring.shakti.age-weight":        25.0,
	"scoring.shakti.experience-weight": 35.0,
	"scoring.shakti.skill-weight":      25.0,
	"scoring.shakti.language-weight":   15.0,

	"scoring.match.skill-weight":      0.5,
	"scoring.match.experience-weight": 0.3,
	"scoring.match.language-weight":   0.1,
	"scoring.match.location-weight":   0.1,
	"scoring.match.distance-scale-km": 10.0,

	"alerts.threshold": 0.6,
	"alerts.limit":     50,
}

// SetDefaults registers every known key on v so that environment overrides
// resolve during Unmarshal.
func SetDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads the config file (explicit path or ./gigmatch.yaml when present),
// applies GIGMATCH_ environment overrides and validates the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// conventional names used by docker-compose files
	_ = v.BindEnv(KeyDatabaseURL, EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv(KeyRedisURL, EnvPrefix+"_REDIS_URL", "REDIS_URL")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. Presence of URLs and secrets is checked by Require.
func (c *Config) Validate() error {
	s := c.Scoring.Shakti
	switch {
	case s.PeakStart <= 18 || s.PeakEnd < s.PeakStart || s.PeakEnd >= 70:
		return fmt.Errorf("config: scoring.shakti peak range must satisfy 18 < peak-start <= peak-end < 70")
	case s.OldAgeFloor < 0 || s.OldAgeFloor > 1:
		return fmt.Errorf("config: scoring.shakti.old-age-floor must be in [0,1]")
	case s.ExperienceCap <= 0 || s.SkillCap <= 0 || s.LanguageCap <= 0:
		return fmt.Errorf("config: scoring.shakti caps must be positive")
	}
	if err := positiveSum("scoring.shakti", s.AgeWeight, s.ExperienceWeight, s.SkillWeight, s.LanguageWeight); err != nil {
		return err
	}

	m := c.Scoring.Match
	if err := positiveSum("scoring.match", m.SkillWeight, m.ExperienceWeight, m.LanguageWeight, m.LocationWeight); err != nil {
		return err
	}
	if m.DistanceScaleKm <= 0 {
		return fmt.Errorf("config: scoring.match.distance-scale-km must be positive")
	}

	if c.Alerts.Threshold < 0 || c.Alerts.Threshold > 1 {
		return fmt.Errorf("config: alerts.threshold must be in [0,1]")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("config: outbox.batch-size and outbox.max-attempts must be positive")
	}
	if c.HTTP.RateLimit <= 0 || c.HTTP.RateWindow <= 0 {
		return fmt.Errorf("config: http rate limit must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("config: auth.session-ttl must be positive")
	}
	return nil
}

// Require fails when any of the given keys resolved to an empty value.
func (c *Config) Require(keys ...string) error {
	for _, k := range keys {
		var val string
		switch k {
		case KeyDatabaseURL:
			val = c.Database.URL
		case KeyRedisURL:
			val = c.Redis.URL
		case KeyJWTSecret:
			val = c.Auth.JWTSecret
		default:
			return fmt.Errorf("config: unknown required key %q", k)
		}
		if strings.TrimSpace(val) == "" {
			envName := EnvPrefix + "_" + strings.NewReplacer(".", "_", "-", "_").Replace(strings.ToUpper(k))
			return fmt.Errorf("config: %s is required (set %s)", k, envName)
		}
	}
	return nil
}

func positiveSum(prefix string, weights ...float64) error {
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("config: %s weights must not be negative", prefix)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("config: %s weights must not all be zero", prefix)
	}
	return nil
}
