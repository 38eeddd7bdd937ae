package boot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const GoogleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

type Config struct {
	Env         string `env:"ENV,default=dev"`
	BaseURL     string `env:"BASE_URL,default=http://localhost:8080"`
	Database    string `env:"DATABASE,default=instance/bloggr.sqlite"`
	SecretKey   string `env:"SECRET_KEY,default=dev"`
	TemplateDir string `env:"TEMPLATE_DIR"`
	Server      struct {
		Port          string `env:"PORT,default=8080"`
		MetricsPort   string `env:"METRICS_PORT,default=8081"`
		SecureCookies bool   `env:"SESSION_COOKIE_SECURE,default=true"`
	}
	Google struct {
		ClientID     string `env:"GOOGLE_CLIENT_ID"`
		ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
		DiscoveryURL string `env:"GOOGLE_DISCOVERY_URL,default=https://accounts.google.com/.well-known/openid-configuration"`
	}
	Mail struct {
		Server        string `env:"MAIL_SERVER,default=smtp.gmail.com"`
		Port          int    `env:"MAIL_PORT,default=465"`
		UseSSL        bool   `env:"MAIL_USE_SSL,default=true"`
		UseTLS        bool   `env:"MAIL_USE_TLS,default=false"`
		Username      string `env:"MAIL_USERNAME"`
		Password      string `env:"MAIL_PASSWORD"`
		DefaultSender string `env:"MAIL_DEFAULT_SENDER"`
		Workers       int    `env:"MAIL_WORKERS,default=2"`
		QueueSize     int    `env:"MAIL_QUEUE_SIZE,default=64"`
	}
}

// Load reads a .env file when one exists, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return LoadFrom(envconfig.OsLookuper())
}

func LoadFrom(lookuper envconfig.Lookuper) (*Config, error) {
	config := &Config{}
	if err := envconfig.ProcessWith(context.Background(), config, lookuper); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}

func (c *Config) ListenAddr() string {
	return net.JoinHostPort("", c.Server.Port)
}

func (c *Config) MetricsAddr() string {
	return net.JoinHostPort("", c.Server.MetricsPort)
}

// URL joins path onto the externally visible base URL.
func (c *Config) URL(path string) string {
	return c.BaseURL + "/" + strings.TrimLeft(path, "/")
}
