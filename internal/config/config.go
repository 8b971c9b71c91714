package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Port           string
	Environment    string   // ENV: production, development, etc.
	PublicURL      string   // base URL used in emailed links
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS
	LogLevel       string
	TrustProxy     bool // take client IPs from X-Forwarded-For

	MongoURI    string
	MongoDB     string
	PostgresURI string // auth audit log; empty disables it
	RedisURI    string // list cache; empty disables it
	CacheTTL    time.Duration

	JWTSecret    string
	JWTExpiresIn time.Duration
	BcryptCost   int

	SMTP SMTPConfig

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// fileConfig is the optional YAML file named by CONFIG_FILE. Environment
// variables override every value it sets.
type fileConfig struct {
	Server struct {
		Port           string   `yaml:"port"`
		Env            string   `yaml:"env"`
		PublicURL      string   `yaml:"public_url"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		LogLevel       string   `yaml:"log_level"`
		TrustProxy     bool     `yaml:"trust_proxy"`
	} `yaml:"server"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Postgres struct {
		URI string `yaml:"uri"`
	} `yaml:"postgres"`
	Redis struct {
		URI      string `yaml:"uri"`
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret    string `yaml:"jwt_secret"`
		JWTExpiresIn string `yaml:"jwt_expires_in"`
		BcryptCost   int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`
	Cloudinary struct {
		CloudName string `yaml:"cloud_name"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"cloudinary"`
}

// Load reads CONFIG_FILE (if set) and then the environment.
func Load() (*Config, error) {
	var fc fileConfig
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	jwtExpires, err := ParseDuration(getEnv("JWT_EXPIRES_IN", or(fc.Auth.JWTExpiresIn, "90d")))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}
	cacheTTL, err := ParseDuration(getEnv("CACHE_TTL", or(fc.Redis.CacheTTL, "5m")))
	if err != nil {
		return nil, fmt.Errorf("CACHE_TTL: %w", err)
	}
	bcryptCost, err := getEnvInt("BCRYPT_COST", orInt(fc.Auth.BcryptCost, 12))
	if err != nil {
		return nil, err
	}
	smtpPort, err := getEnvInt("SMTP_PORT", orInt(fc.SMTP.Port, 587))
	if err != nil {
		return nil, err
	}

	trustProxy := fc.Server.TrustProxy
	if v := strings.TrimSpace(os.Getenv("TRUST_PROXY")); v != "" {
		trustProxy, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TRUST_PROXY: %w", err)
		}
	}

	origins := parseOrigins(os.Getenv("ALLOWED_ORIGINS"))
	if len(origins) == 0 {
		origins = fc.Server.AllowedOrigins
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	port := getEnv("PORT", or(fc.Server.Port, "8080"))
	cfg := &Config{
		Port:           port,
		Environment:    strings.ToLower(strings.TrimSpace(getEnv("ENV", or(fc.Server.Env, "development")))),
		PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", or(fc.Server.PublicURL, "http://localhost:"+port)), "/"),
		AllowedOrigins: origins,
		LogLevel:       getEnv("LOG_LEVEL", or(fc.Server.LogLevel, "info")),
		TrustProxy:     trustProxy,

		MongoURI:    getEnv("MONGODB_URI", or(fc.Mongo.URI, "mongodb://localhost:27017")),
		MongoDB:     getEnv("MONGO_DB", or(fc.Mongo.Database, "storefront")),
		PostgresURI: getEnv("POSTGRES_URI", fc.Postgres.URI),
		RedisURI:    getEnv("REDIS_URI", fc.Redis.URI),
		CacheTTL:    cacheTTL,

		JWTSecret:    getEnv("JWT_SECRET", or(fc.Auth.JWTSecret, defaultJWTSecret)),
		JWTExpiresIn: jwtExpires,
		BcryptCost:   bcryptCost,

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", fc.SMTP.Host),
			Port:     smtpPort,
			Username: getEnv("SMTP_USERNAME", fc.SMTP.Username),
			Password: getEnv("SMTP_PASSWORD", fc.SMTP.Password),
			From:     getEnv("SMTP_FROM", or(fc.SMTP.From, "Storefront <no-reply@storefront.local>")),
		},

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", fc.Cloudinary.CloudName),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", fc.Cloudinary.APIKey),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", fc.Cloudinary.APISecret),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.JWTExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be > 0")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if c.IsProduction() && (c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32) {
		return fmt.Errorf("JWT_SECRET must be set to at least 32 characters in production")
	}
	return nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// CloudinaryConfigured reports whether all upload credentials are present.
func (c *Config) CloudinaryConfigured() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// ParseDuration accepts Go durations plus a day suffix ("90d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}
