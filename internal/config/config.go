// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Platform  PlatformConfig  `koanf:"platform"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Storage   StorageConfig   `koanf:"storage"`
	JWT       JWTConfig       `koanf:"jwt"`
	Identity  IdentityConfig  `koanf:"identity"`
	Mail      MailConfig      `koanf:"mail"`
	Retry     RetryConfig     `koanf:"retry"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

// PlatformConfig holds the two settings every store-touching operation
// depends on: the public endpoint and the public API key.
type PlatformConfig struct {
	URL        string `koanf:"url"`
	APIKey     string `koanf:"api_key"`
	ResetPath  string `koanf:"reset_path"`
	SessionKey string `koanf:"session_key"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type StorageConfig struct {
	Endpoint            string `koanf:"endpoint"`
	AccessKey           string `koanf:"access_key"`
	SecretKey           string `koanf:"secret_key"`
	UseSSL              bool   `koanf:"use_ssl"`
	Region              string `koanf:"region"`
	PublicURL           string `koanf:"public_url"`
	DocumentsBucket     string `koanf:"documents_bucket"`
	ContractsBucket     string `koanf:"contracts_bucket"`
	UserDocumentsBucket string `koanf:"user_documents_bucket"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type IdentityConfig struct {
	OTPTTL          time.Duration `koanf:"otp_ttl"`
	MinPasswordSize int           `koanf:"min_password_size"`

	PasswordMemoryKiB  uint32 `koanf:"password_memory_kib"`
	PasswordIterations uint32 `koanf:"password_iterations"`
	PasswordThreads    uint8  `koanf:"password_threads"`
}

type MailConfig struct {
	SMTPHost string `koanf:"smtp_host"`
	SMTPPort string `koanf:"smtp_port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
}

func (m MailConfig) Enabled() bool {
	return m.SMTPHost != "" && m.From != ""
}

// RetryConfig parameterises the two retry policies of the session layer.
type RetryConfig struct {
	ProviderAttempts  int           `koanf:"provider_attempts"`
	ProviderBaseDelay time.Duration `koanf:"provider_base_delay"`
	ProviderJitter    time.Duration `koanf:"provider_jitter"`
	MirrorAttempts    int           `koanf:"mirror_attempts"`
	MirrorDelay       time.Duration `koanf:"mirror_delay"`
}

type RateLimitConfig struct {
	Requests     int           `koanf:"requests"`
	Window       time.Duration `koanf:"window"`
	Burst        int           `koanf:"burst"`
	AuthRequests int           `koanf:"auth_requests"`
	AuthBurst    int           `koanf:"auth_burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Load builds a fresh Config from defaults, an optional YAML file and the
// environment. Every caller gets its own value; nothing is cached globally.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Planejar Patrimônio",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"platform.reset_path":  "/redefinir-senha",
		"platform.session_key": "planejar:auth-token",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "60s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.max_upload_bytes": 25 << 20,

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"storage.endpoint":              "localhost:9000",
		"storage.use_ssl":               false,
		"storage.region":                "us-east-1",
		"storage.documents_bucket":      "documents",
		"storage.contracts_bucket":      "contracts",
		"storage.user_documents_bucket": "user-documents",

		"jwt.access_token_expire":  "1h",
		"jwt.refresh_token_expire": "720h",
		"jwt.issuer":               "planejar-patrimonio",
		"jwt.audience":             "planejar-patrimonio-app",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"identity.otp_ttl":             "1h",
		"identity.min_password_size":   6,
		"identity.password_memory_kib": 64 * 1024,
		"identity.password_iterations": 1,
		"identity.password_threads":    4,

		"mail.smtp_port": "587",
		"mail.from_name": "Planejar Patrimônio",

		"retry.provider_attempts":   3,
		"retry.provider_base_delay": "1s",
		"retry.provider_jitter":     "2s",
		"retry.mirror_attempts":     3,
		"retry.mirror_delay":        "500ms",

		"rate_limit.requests":      100,
		"rate_limit.window":        "1m",
		"rate_limit.burst":         20,
		"rate_limit.auth_requests": 10,
		"rate_limit.auth_burst":    5,

		"cors.allowed_origins": []string{"http://localhost:5173"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"apikey",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "planejar-patrimonio",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"PLATFORM_URL":                "platform.url",
	"PLATFORM_API_KEY":            "platform.api_key",
	"PLATFORM_RESET_PATH":         "platform.reset_path",
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"STORAGE_ENDPOINT":            "storage.endpoint",
	"STORAGE_ACCESS_KEY":          "storage.access_key",
	"STORAGE_SECRET_KEY":          "storage.secret_key",
	"STORAGE_USE_SSL":             "storage.use_ssl",
	"STORAGE_PUBLIC_URL":          "storage.public_url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"SMTP_HOST":                   "mail.smtp_host",
	"SMTP_PORT":                   "mail.smtp_port",
	"SMTP_USERNAME":               "mail.username",
	"SMTP_PASSWORD":               "mail.password",
	"SMTP_FROM":                   "mail.from",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if err := validatePlatform(c.Platform); err != nil {
		return err
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.Retry.ProviderAttempts < 1 || c.Retry.MirrorAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}

	if c.Identity.MinPasswordSize < 6 {
		return fmt.Errorf("identity.min_password_size must be at least 6")
	}

	if c.Identity.PasswordMemoryKiB < 8*1024 || c.Identity.PasswordIterations < 1 || c.Identity.PasswordThreads < 1 {
		return fmt.Errorf("identity password hashing cost is below the minimum")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func validatePlatform(p PlatformConfig) error {
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("PLATFORM_URL is required")
	}

	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("PLATFORM_API_KEY is required")
	}

	u, err := url.Parse(p.URL)
	if err != nil {
		return fmt.Errorf("PLATFORM_URL is not a valid URL: %w", err)
	}

	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("PLATFORM_URL must be an absolute URL, got %q", p.URL)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ResetRedirectURL is where recovery mails send the user back to.
func (p PlatformConfig) ResetRedirectURL() string {
	return strings.TrimRight(p.URL, "/") + p.ResetPath
}
