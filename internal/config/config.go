package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type BackendMode string

const (
	BackendAuto   BackendMode = "auto"
	BackendMock   BackendMode = "mock"
	BackendRemote BackendMode = "remote"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Security  SecurityConfig  `mapstructure:"security"`
}

type ServerConfig struct {
	Port            int   `mapstructure:"port"`
	TimeoutSeconds  int   `mapstructure:"timeout_seconds"`
	ShutdownSeconds int   `mapstructure:"shutdown_seconds"`
	MaxUploadBytes  int64 `mapstructure:"max_upload_bytes"`
}

func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type BackendConfig struct {
	Mode BackendMode `mapstructure:"mode"`
	// Seed loads demo data into the mock backend.
	Seed bool `mapstructure:"seed"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type StorageConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Bucket        string `mapstructure:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type RedisConfig struct {
	// URL selects the redis broker for change signals; empty keeps them in-process.
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

func (j JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

type AuthConfig struct {
	Users []UserConfig `mapstructure:"users"`
}

// UserConfig is one directory entry. Either PasswordHash (bcrypt) or
// Password must be set.
type UserConfig struct {
	ID           string `mapstructure:"id"`
	Email        string `mapstructure:"email"`
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

type NotifyConfig struct {
	WebhookURL            string     `mapstructure:"webhook_url"`
	WebhookTimeoutSeconds int        `mapstructure:"webhook_timeout_seconds"`
	SMTP                  SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// envOverrides are the well-known deployment variables, applied after the
// file and LABCASES_* values.
type envOverrides struct {
	UseMockData      *bool  `envconfig:"USE_MOCK_DATA"`
	DBHost           string `envconfig:"DB_HOST"`
	DBPort           int    `envconfig:"DB_PORT"`
	DBUser           string `envconfig:"DB_USER"`
	DBPassword       string `envconfig:"DB_PASSWORD"`
	DBName           string `envconfig:"DB_NAME"`
	DBSSLMode        string `envconfig:"DB_SSLMODE"`
	StorageEndpoint  string `envconfig:"STORAGE_ENDPOINT"`
	StorageAccessKey string `envconfig:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `envconfig:"STORAGE_SECRET_KEY"`
	StorageBucket    string `envconfig:"STORAGE_BUCKET"`
	StoragePublicURL string `envconfig:"STORAGE_PUBLIC_URL"`
	RedisURL         string `envconfig:"REDIS_URL"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	WebhookURL       string `envconfig:"WEBHOOK_URL"`
	Port             int    `envconfig:"PORT"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
}

const DefaultWebhookURL = "https://n8n.fixaligner.com/webhook-test/noti-labs"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.shutdown_seconds", 5)
	v.SetDefault("server.max_upload_bytes", 64<<20)

	v.SetDefault("backend.mode", string(BackendAuto))
	v.SetDefault("backend.seed", true)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "lab_cases")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "lab_files")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.public_base_url", "")

	v.SetDefault("redis.url", "")

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("notify.webhook_url", DefaultWebhookURL)
	v.SetDefault("notify.webhook_timeout_seconds", 10)
	v.SetDefault("notify.smtp.host", "")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.from", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("security.allowed_origins", []string{"*"})
}

// LoadConfig reads configFile, or config.yaml from the usual locations when
// configFile is empty. A missing config.yaml is not an error; defaults and
// environment variables still apply.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	v.SetEnvPrefix("LABCASES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.applyEnv(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	if env.UseMockData != nil && *env.UseMockData {
		c.Backend.Mode = BackendMock
	}
	setString(&c.Database.Host, env.DBHost)
	setString(&c.Database.User, env.DBUser)
	setString(&c.Database.Password, env.DBPassword)
	setString(&c.Database.Name, env.DBName)
	setString(&c.Database.SSLMode, env.DBSSLMode)
	if env.DBPort != 0 {
		c.Database.Port = env.DBPort
	}
	setString(&c.Storage.Endpoint, env.StorageEndpoint)
	setString(&c.Storage.AccessKey, env.StorageAccessKey)
	setString(&c.Storage.SecretKey, env.StorageSecretKey)
	setString(&c.Storage.Bucket, env.StorageBucket)
	setString(&c.Storage.PublicBaseURL, env.StoragePublicURL)
	setString(&c.Redis.URL, env.RedisURL)
	setString(&c.JWT.Secret, env.JWTSecret)
	setString(&c.Notify.WebhookURL, env.WebhookURL)
	setString(&c.Log.Level, env.LogLevel)
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case BackendAuto, BackendMock, BackendRemote:
	default:
		return fmt.Errorf("invalid backend.mode %q", c.Backend.Mode)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must not be empty")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.ResolveBackend() == BackendRemote {
		if c.Database.Host == "" {
			return errors.New("remote backend requires database.host")
		}
		if c.Storage.Endpoint == "" {
			return errors.New("remote backend requires storage.endpoint")
		}
	}
	return nil
}

// ResolveBackend turns auto into a concrete mode. Auto picks the remote
// backend only when both the database and the object store are configured.
func (c *Config) ResolveBackend() BackendMode {
	if c.Backend.Mode != BackendAuto {
		return c.Backend.Mode
	}
	if c.Database.Host != "" && c.Storage.Endpoint != "" {
		return BackendRemote
	}
	return BackendMock
}
