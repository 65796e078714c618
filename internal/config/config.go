package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Log         LogConfig         `mapstructure:"log"`
	Publication PublicationConfig `mapstructure:"publication"`
	Seed        SeedConfig        `mapstructure:"seed"`
	JWTSecret   string            `mapstructure:"jwt_secret"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// PublicationConfig controls the publication gate.
type PublicationConfig struct {
	// GatedStatuses are the publication statuses whose entry requires
	// every mandatory field to be filled.
	GatedStatuses         []string      `mapstructure:"gated_statuses"`
	PropertyTypeAttribute string        `mapstructure:"property_type_attribute"`
	LabelSeparator        string        `mapstructure:"label_separator"`
	CacheTTL              time.Duration `mapstructure:"cache_ttl"`
}

type SeedConfig struct {
	Path string `mapstructure:"path"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "estate")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.path", "./data")
	v.SetDefault("jwt_secret", "changeme-secret")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("publication.gated_statuses", []string{"公開", "会員公開"})
	v.SetDefault("publication.property_type_attribute", "property_type")
	v.SetDefault("publication.label_separator", "、")
	v.SetDefault("publication.cache_ttl", 30*time.Second)
}

// Load reads app.yaml from the working directory (or the repository root)
// and overlays environment variables. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../..")
	return load(v)
}

// LoadFile reads the given config file instead of searching for app.yaml.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the publication gate cannot run with.
func (c *Config) Validate() error {
	if len(c.Publication.GatedStatuses) == 0 {
		return fmt.Errorf("config: publication.gated_statuses must not be empty")
	}
	if c.Publication.PropertyTypeAttribute == "" {
		return fmt.Errorf("config: publication.property_type_attribute must not be empty")
	}
	if c.Publication.CacheTTL < 0 {
		return fmt.Errorf("config: publication.cache_ttl must not be negative")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}
