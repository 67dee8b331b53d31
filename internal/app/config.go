package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/trekker/logger"
)

// Duration lets TOML carry values like "12h" or "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Server struct {
		Port            string   `toml:"port"`
		ShutdownTimeout Duration `toml:"shutdown_timeout"`
		// LoginRateLimit is the number of login attempts allowed per IP per minute.
		LoginRateLimit int  `toml:"login_rate_limit"`
		SecureCookies  bool `toml:"secure_cookies"`
	} `toml:"server"`

	Database struct {
		DSN string `toml:"dsn"`
	} `toml:"database"`

	Auth struct {
		RedisURL          string   `toml:"redis_url"`
		SessionTTL        Duration `toml:"session_ttl"`
		CookieName        string   `toml:"cookie_name"`
		BcryptCost        int      `toml:"bcrypt_cost"`
		MinPasswordLength int      `toml:"min_password_length"`
	} `toml:"auth"`

	Admin struct {
		Username string `toml:"username"`
		Password string `toml:"password"`
	} `toml:"admin"`
}

func DefaultConfig() *Config {
	var config Config
	config.Server.Port = ":5000"
	config.Server.ShutdownTimeout = Duration{10 * time.Second}
	config.Server.LoginRateLimit = 10
	config.Database.DSN = "students.db"
	config.Auth.SessionTTL = Duration{12 * time.Hour}
	config.Auth.CookieName = "sis_session"
	config.Auth.BcryptCost = bcrypt.DefaultCost
	config.Auth.MinPasswordLength = 6
	config.Admin.Username = "admin"
	config.Admin.Password = "admin123"
	return &config
}

// LoadConfig reads path over the defaults, then applies .env and SIS_*
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info.Printf("Config file %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf(
				"error reading config file %s\n> Error: %w\n> Content:\n%s",
				path,
				err,
				string(data),
			)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger.Debug.Printf("Loaded config: port=%s dsn=%s redis=%t session_ttl=%s",
		config.Server.Port, config.Database.DSN, config.Auth.RedisURL != "", config.Auth.SessionTTL)

	return config, nil
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"SIS_PORT":           &c.Server.Port,
		"SIS_DATABASE_DSN":   &c.Database.DSN,
		"SIS_REDIS_URL":      &c.Auth.RedisURL,
		"SIS_ADMIN_USERNAME": &c.Admin.Username,
		"SIS_ADMIN_PASSWORD": &c.Admin.Password,
	}
	for name, dst := range overrides {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("SIS_SESSION_TTL"); ok {
		if err := c.Auth.SessionTTL.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid SIS_SESSION_TTL: %w", err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("Server port is not specified in config, use a value like :5000")
	}
	if c.Server.LoginRateLimit < 1 {
		return fmt.Errorf("login_rate_limit must be at least 1")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is not specified in config")
	}
	if c.Auth.SessionTTL.Duration <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %s", c.Auth.SessionTTL)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.MinPasswordLength < 1 || c.Auth.MinPasswordLength > maxPasswordBytes {
		return fmt.Errorf("min_password_length must be within [1, %d]", maxPasswordBytes)
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return fmt.Errorf("admin username and password must be set")
	}
	return nil
}
