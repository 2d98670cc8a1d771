// Package config loads envirotrack settings from a TOML file, ENVIROTRACK_*
// environment variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ENVIROTRACK_STORAGE_DRIVER.
const EnvPrefix = "ENVIROTRACK"

// Config is the root configuration.
type Config struct {
	App     AppConfig
	Log     LogConfig
	Storage StorageConfig
	Blob    BlobConfig
	HTTP    HTTPConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Env string `validate:"oneof=development production test"`
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error fatal"`
	Format string `validate:"oneof=json console"`
	Output string `validate:"required"`
}

// StorageConfig selects the key-value backend holding the root document.
type StorageConfig struct {
	Driver       string        `validate:"oneof=memory file sqlite postgres redis"`
	Key          string        `validate:"required"`
	FileDir      string        `validate:"required_if=Driver file"`
	SQLitePath   string        `validate:"required_if=Driver sqlite"`
	PostgresDSN  string        `validate:"required_if=Driver postgres"`
	WriteTimeout time.Duration `validate:"gt=0"`
	Redis        RedisConfig
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
	Prefix   string
}

// BlobConfig selects where exports are archived.
type BlobConfig struct {
	Driver string `validate:"oneof=fs s3 memory"`
	FSRoot string
	S3     S3Config
}

// S3Config holds S3 / MinIO settings.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// HTTPConfig configures the local API.
type HTTPConfig struct {
	Addr            string        `validate:"required"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.key", "etp4-v1")
	v.SetDefault("storage.file_dir", "./envirotrack-data")
	v.SetDefault("storage.sqlite_path", "envirotrack.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.write_timeout", 10*time.Second)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "envirotrack:")
	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.fs_root", "./blobdata")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("http.addr", "127.0.0.1:8087")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
}

// Load reads configuration. path names an explicit TOML file; when empty,
// envirotrack.toml is looked up in the working directory and
// $HOME/.envirotrack, and a missing file is not an error.
//
// Priority (highest to lowest):
// 1. Environment variables with ENVIROTRACK_ prefix
// 2. the TOML file
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("envirotrack")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.envirotrack")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{Env: v.GetString("app.env")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Storage: StorageConfig{
			Driver:       strings.ToLower(v.GetString("storage.driver")),
			Key:          v.GetString("storage.key"),
			FileDir:      v.GetString("storage.file_dir"),
			SQLitePath:   v.GetString("storage.sqlite_path"),
			PostgresDSN:  v.GetString("storage.postgres_dsn"),
			WriteTimeout: v.GetDuration("storage.write_timeout"),
			Redis: RedisConfig{
				Addr:     v.GetString("storage.redis.addr"),
				Password: v.GetString("storage.redis.password"),
				DB:       v.GetInt("storage.redis.db"),
				Prefix:   v.GetString("storage.redis.prefix"),
			},
		},
		Blob: BlobConfig{
			Driver: strings.ToLower(v.GetString("blob.driver")),
			FSRoot: v.GetString("blob.fs_root"),
			S3: S3Config{
				Bucket:    v.GetString("blob.s3.bucket"),
				Region:    v.GetString("blob.s3.region"),
				Endpoint:  v.GetString("blob.s3.endpoint"),
				PathStyle: v.GetBool("blob.s3.path_style"),
			},
		},
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		return fmt.Errorf("invalid configuration: blob.s3.bucket is required for the s3 driver")
	}
	return nil
}
