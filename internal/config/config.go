package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"shortly/internal/ratelimit"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Safety    SafetyConfig    `mapstructure:"safety"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`     // Backend base URL
	FrontendURL  string        `mapstructure:"frontend_url"` // Frontend base URL (for QR codes and interstitial pages)
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Addr is the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig is optional; an empty URL selects the in-process cache
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret   string `mapstructure:"secret"`    // Secret key for JWT token signing
	TTLHours int    `mapstructure:"ttl_hours"` // JWT token expiration time in hours
}

// TTL is the token lifetime
func (j JWTConfig) TTL() time.Duration {
	return time.Duration(j.TTLHours) * time.Hour
}

type RateLimitConfig struct {
	Disabled     bool          `mapstructure:"disabled"` // Development bypass; logged loudly at startup
	AuthLimit    int           `mapstructure:"auth_limit"`
	AuthWindow   time.Duration `mapstructure:"auth_window"`
	CreateLimit  int           `mapstructure:"create_limit"`
	CreateWindow time.Duration `mapstructure:"create_window"`
	ModifyLimit  int           `mapstructure:"modify_limit"`
	ModifyWindow time.Duration `mapstructure:"modify_window"`
	ClickLimit   int           `mapstructure:"click_limit"`
	ClickWindow  time.Duration `mapstructure:"click_window"`
}

// Policies returns the limiter policies keyed by limiter name
func (r RateLimitConfig) Policies() map[string]ratelimit.Policy {
	return map[string]ratelimit.Policy{
		ratelimit.Auth:   {Limit: r.AuthLimit, Window: r.AuthWindow},
		ratelimit.Create: {Limit: r.CreateLimit, Window: r.CreateWindow},
		ratelimit.Modify: {Limit: r.ModifyLimit, Window: r.ModifyWindow},
		ratelimit.Click:  {Limit: r.ClickLimit, Window: r.ClickWindow},
	}
}

// SafetyConfig configures the classification providers. A provider without a
// key is not called and the pipeline runs degraded.
type SafetyConfig struct {
	SafeBrowsingKey string        `mapstructure:"safe_browsing_key"`
	ThreatRPS       float64       `mapstructure:"threat_rps"`
	ClassifierURL   string        `mapstructure:"classifier_url"`
	ClassifierKey   string        `mapstructure:"classifier_key"`
	ClassifierModel string        `mapstructure:"classifier_model"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type AnalyticsConfig struct {
	BufferSize  int `mapstructure:"buffer_size"`  // Size of the click event queue
	WorkerCount int `mapstructure:"worker_count"` // Number of click insert workers
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl_hours", 24)

	v.SetDefault("rate_limit.disabled", false)
	for name, p := range ratelimit.DefaultPolicies {
		v.SetDefault("rate_limit."+name+"_limit", p.Limit)
		v.SetDefault("rate_limit."+name+"_window", p.Window)
	}

	v.SetDefault("safety.safe_browsing_key", "")
	v.SetDefault("safety.threat_rps", 10.0)
	v.SetDefault("safety.classifier_url", "")
	v.SetDefault("safety.classifier_key", "")
	v.SetDefault("safety.classifier_model", "")
	v.SetDefault("safety.timeout", 5*time.Second)

	v.SetDefault("analytics.buffer_size", 1024)
	v.SetDefault("analytics.worker_count", 4)
}

// Load reads the configuration from the environment. Variables found in the
// given .env files (default ".env") are added first; a missing file is ignored.
// Keys map to variables by upper-casing and replacing dots, e.g. server.port -> SERVER_PORT.
func Load(envFiles ...string) (*Config, error) {
	const op = "config.Load"

	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: failed to read env file: %w", op, err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Variable names used before the config sections existed
	aliases := map[string]string{
		"server.base_url":     "BASE_URL",
		"server.frontend_url": "FRONTEND_URL",
		"database.url":        "DATABASE_URL",
		"redis.url":           "REDIS_URL",
		"jwt.secret":          "JWT_SECRET",
		"jwt.ttl_hours":       "JWT_TTL_HOURS",
	}
	for key, env := range aliases {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.JWT.TTLHours <= 0 {
		errs = append(errs, errors.New("jwt.ttl_hours must be positive"))
	}
	for name, p := range c.RateLimit.Policies() {
		if p.Limit <= 0 || p.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.%s: limit and window must be positive", name))
		}
	}
	if c.Analytics.BufferSize <= 0 || c.Analytics.WorkerCount <= 0 {
		errs = append(errs, errors.New("analytics.buffer_size and analytics.worker_count must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
