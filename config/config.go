// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers   = []string{"sqlite", "postgres"}

	ErrNoSecret = errors.New("jwt.secret is not set")
)

// keys bound to environment variables, STORAGE_BUCKET for storage.bucket
var keys = []string{
	"app.log_level",

	"host.port",
	"host.cors",
	"host.rate_limit",
	"host.rate_burst",

	"jwt.secret",

	"database.driver",
	"database.dsn",

	"storage.bucket",
	"storage.region",
	"storage.endpoint",
	"storage.access_key_id",
	"storage.secret_access_key",
	"storage.max_usage",
	"storage.url_lifetime",

	"upload.max_size",
	"upload.allowed_types",
	"upload.grant_lifetime",

	"sync.workers",
	"sync.queue_size",

	"cloud.google_drive.client_id",
	"cloud.google_drive.client_secret",

	"cleanup.interval",

	"client.api_url",
	"client.token",
	"client.project",
	"client.prefs_path",
}

// flagKeys maps command line flags onto config keys
var flagKeys = map[string]string{
	"config":    "config",
	"log-level": "app.log_level",
	"port":      "host.port",
	"api-url":   "client.api_url",
	"token":     "client.token",
	"project":   "client.project",
	"prefs":     "client.prefs_path",
}

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func defaults() {
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors", []string{"http://localhost:5173"})
	v.SetDefault("host.rate_limit", 20)
	v.SetDefault("host.rate_burst", 60)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.max_usage", 10240)
	v.SetDefault("storage.url_lifetime", time.Hour)

	v.SetDefault("upload.max_size", 500)
	v.SetDefault("upload.allowed_types", []string{"image/*", "video/*", "audio/*"})
	v.SetDefault("upload.grant_lifetime", 15*time.Minute)

	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.queue_size", 64)

	v.SetDefault("cleanup.interval", time.Hour)

	v.SetDefault("client.api_url", "http://localhost:8080")
	v.SetDefault("client.project", "default")
	v.SetDefault("client.prefs_path", defaultPrefsPath())
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, "media-library", "prefs.yaml")
}

func load(fs *pflag.FlagSet) error {
	v.Reset()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return fmt.Errorf("failed to bind --%s, %w", name, err)
				}
			}
		}
	}

	if p := v.GetString("config"); p != "" {
		v.SetConfigFile(p)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, k := range keys {
		v.BindEnv(k)
	}

	defaults()

	return v.ReadInConfig()
}

// Setup prepares everything config-related so that the service can
// start working. Function will return an error if something
// is critically wrong and the service can't run because of
// that.
func Setup(fs *pflag.FlagSet) error {
	if err := load(fs); err != nil {
		var notFound v.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetFloat64("host.rate_limit") > 0 && v.GetInt("host.rate_burst") <= 0 {
		return errors.New("host.rate_burst must be bigger than 0 when rate limiting")
	}

	if v.GetString("jwt.secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret. Here is a random one you can paste into config.toml or export as JWT_SECRET:\n\n" + genSecret() + "\n")
		return ErrNoSecret
	}

	if !slices.Contains(validDrivers, v.GetString("database.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("database.dsn") == "" {
		return errors.New("database.dsn can't be empty")
	}

	if v.GetString("storage.bucket") == "" {
		return errors.New("bucket can't be empty")
	}

	if v.GetString("storage.access_key_id") == "" {
		return errors.New("storage access key id can't be empty")
	}

	if v.GetString("storage.secret_access_key") == "" {
		return errors.New("storage secret access key can't be empty")
	}

	if v.GetInt64("storage.max_usage") <= 0 {
		return errors.New("max usage must be bigger than 0")
	}

	if v.GetDuration("storage.url_lifetime") < time.Minute || v.GetDuration("storage.url_lifetime") > 7*24*time.Hour {
		return errors.New("storage.url_lifetime must be between 1m and 168h")
	}

	if v.GetInt64("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if v.GetDuration("upload.grant_lifetime") <= 0 {
		return errors.New("upload.grant_lifetime must be positive")
	}

	if v.GetInt("sync.workers") <= 0 {
		return errors.New("sync.workers must be bigger than 0")
	}

	if v.GetDuration("cleanup.interval") <= 0 {
		return errors.New("cleanup.interval must be positive")
	}

	if len(v.GetStringSlice("upload.allowed_types")) == 0 {
		zap.L().Warn("No upload.allowed_types specified, any file type will be accepted")
	}

	if v.GetString("cloud.google_drive.client_id") == "" {
		zap.L().Warn("No Google Drive client configured, google_drive connections will be refused")
	}

	// Sizes are configured in MiB
	v.Set("storage.max_usage", v.GetInt64("storage.max_usage")<<20)
	v.Set("upload.max_size", v.GetInt64("upload.max_size")<<20)

	return nil
}

// LoadClient reads the settings used by the command line client. A
// missing config file is fine, flags and environment are enough.
func LoadClient(fs *pflag.FlagSet) error {
	if err := load(fs); err != nil {
		var notFound v.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file, %w", err)
		}
	}

	if v.GetString("client.api_url") == "" {
		return errors.New("client.api_url can't be empty")
	}

	return nil
}
