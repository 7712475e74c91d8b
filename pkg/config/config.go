package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TABGRAPH_SERVER_PORT.
const EnvPrefix = "TABGRAPH"

var validate = validator.New()

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Input table configuration
	Input InputConfig `mapstructure:"input"`

	// Output file configuration
	Output OutputConfig `mapstructure:"output"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Conversion record store configuration
	Store StoreConfig `mapstructure:"store"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=color text json"`
}

// InputConfig describes how input tables are read.
type InputConfig struct {
	IdentityColumn    string `mapstructure:"identity_column" validate:"required"`
	ConnectionsColumn string `mapstructure:"connections_column" validate:"required,nefield=IdentityColumn"`
	Sheet             string `mapstructure:"sheet"`
	Workers           int    `mapstructure:"workers" validate:"gte=0,lte=256"` // 0 picks a default
}

// OutputConfig describes where and how graph files are written.
type OutputConfig struct {
	Dir    string `mapstructure:"dir" validate:"required"`
	Format string `mapstructure:"format" validate:"required"` // unknown tokens fall back to gephi
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode          string `mapstructure:"mode" validate:"oneof=debug release test"` // gin mode
	UploadDir     string `mapstructure:"upload_dir" validate:"required"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"omitempty,url"`
	MaxUploadMB   int64  `mapstructure:"max_upload_mb" validate:"min=1"`
}

// StoreConfig holds conversion record store configuration.
type StoreConfig struct {
	Path string        `mapstructure:"path"` // empty keeps records in memory
	TTL  time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration into v from defaults, the optional file and
// TABGRAPH_* environment variables, in increasing order of precedence.
// An empty file searches for config.yaml in the working directory and
// tolerates its absence; a named file must exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "color")

	// Input defaults
	v.SetDefault("input.identity_column", "id")
	v.SetDefault("input.connections_column", "connections")
	v.SetDefault("input.sheet", "")
	v.SetDefault("input.workers", 0)

	// Output defaults
	v.SetDefault("output.dir", "outputs")
	v.SetDefault("output.format", "gephi")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.public_base_url", "")
	v.SetDefault("server.max_upload_mb", 32)

	// Store defaults
	v.SetDefault("store.path", "")
	v.SetDefault("store.ttl", "24h")
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: field is required", field))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s: must be at least %s", field, e.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s: must not exceed %s", field, e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of [%s], got %q", field, e.Param(), e.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
