package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting read from the environment (or a .env file).
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Security SecurityConfig
	AI       AIConfig
	Email    EmailConfig
}

type ServerConfig struct {
	Port        string
	FrontendURL string
	CORSOrigins []string
	RateLimit   int
	RateWindow  time.Duration
	Location    *time.Location
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type SecurityConfig struct {
	EncryptionKey string
}

type AIConfig struct {
	APIKey string
	Model  string
}

type EmailConfig struct {
	APIKey       string
	From         string
	AlertEmailTo string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("RATE_LIMIT", 100)
	v.SetDefault("RATE_WINDOW", time.Minute)
	v.SetDefault("TIMEZONE", "Europe/Paris")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest")
	v.SetDefault("EMAIL_FROM", "alertes@qwertys.fr")
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("PORT"),
			FrontendURL: v.GetString("FRONTEND_URL"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
			RateLimit:   v.GetInt("RATE_LIMIT"),
			RateWindow:  v.GetDuration("RATE_WINDOW"),
			Location:    loc,
		},
		Database: DatabaseConfig{
			URL:          v.GetString("DATABASE_URL"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    v.GetDuration("JWT_TTL"),
		},
		Security: SecurityConfig{
			EncryptionKey: v.GetString("DATA_ENCRYPTION_KEY"),
		},
		AI: AIConfig{
			APIKey: v.GetString("ANTHROPIC_API_KEY"),
			Model:  v.GetString("ANTHROPIC_MODEL"),
		},
		Email: EmailConfig{
			APIKey:       v.GetString("RESEND_API_KEY"),
			From:         v.GetString("EMAIL_FROM"),
			AlertEmailTo: v.GetString("ALERT_EMAIL_TO"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable is required"))
	}
	if len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if len(c.Security.EncryptionKey) != 32 {
		errs = append(errs, errors.New("DATA_ENCRYPTION_KEY must be exactly 32 characters"))
	}
	if c.Server.RateLimit <= 0 || c.Server.RateWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT and RATE_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

// AllowedOrigins is the frontend URL plus any extra CORS origin.
func (c *Config) AllowedOrigins() []string {
	origins := []string{c.Server.FrontendURL}
	for _, o := range c.Server.CORSOrigins {
		if o != c.Server.FrontendURL {
			origins = append(origins, o)
		}
	}
	return origins
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
