package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (FLORA_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:5000" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (FLORA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Auth        AuthConfig
	Mail        MailConfig
	Cache       CacheConfig
	Jobs        JobsConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig controls token signing and password resets.
type AuthConfig struct {
	AccessSecret  string        `usage:"HMAC secret for access tokens" flag:"access-secret"`
	RefreshSecret string        `usage:"HMAC secret for refresh tokens" flag:"refresh-secret"`
	AccessTTL     time.Duration `default:"1h" usage:"Access token lifetime"`
	RefreshTTL    time.Duration `default:"168h" usage:"Refresh token lifetime"`
	ResetTTL      time.Duration `default:"10m" usage:"Password reset token lifetime"`
	BcryptCost    int           `default:"10" usage:"bcrypt cost for password hashes"`
}

// MailConfig controls outgoing email. An empty Host logs emails instead of
// sending them.
type MailConfig struct {
	Host        string `default:"" usage:"SMTP host"`
	Port        int    `default:"587" usage:"SMTP port"`
	Username    string `usage:"SMTP username"`
	Password    string `usage:"SMTP password"`
	From        string `default:"ChezFlora <noreply@chezflora.com>" usage:"Sender address"`
	AdminEmail  string `default:"admin@chezflora.com" usage:"Recipient of shop side alerts"`
	FrontendURL string `default:"http://localhost:3000" usage:"Base URL used in email links" flag:"frontend-url"`
	Workers     int    `default:"2" usage:"Email delivery workers"`
	QueueSize   int    `default:"256" usage:"Pending email buffer size"`
}

// CacheConfig controls the anonymous response cache.
type CacheConfig struct {
	TTL time.Duration `default:"300s" usage:"Response cache TTL, 0 disables caching"`
}

// JobsConfig controls the in-process maintenance scheduler.
type JobsConfig struct {
	Enabled           bool `default:"true" usage:"Run maintenance jobs in process"`
	LowStockThreshold int  `default:"5" usage:"Stock level below which products are reported"`
	LowStockHour      int  `default:"9" usage:"Local hour at which daily jobs run"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"15m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags, YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	cfg, err := load(false)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadToolConfig loads configuration for command line tools. Flags are left
// to the caller and token secrets are not required.
func LoadToolConfig() (*Config, error) {
	return load(true)
}

func load(skipFlags bool) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FLORA",
		SkipFlags: skipFlags,
		Files:     []string{"config.yaml", "/etc/flora/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set FLORA_DATABASE_URL or DATABASE_URL")
	}
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return errors.New("token secrets are required: set FLORA_AUTH_ACCESS_SECRET and FLORA_AUTH_REFRESH_SECRET")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's FLORA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:5000" {
		c.Addr = "0.0.0.0:" + port
	}
}
