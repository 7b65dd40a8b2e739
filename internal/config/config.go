package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	defaultDBPath      = "./dev.db"
	defaultPort        = "8080"
	defaultEnvFile     = ".env"
	defaultConfigFile  = "shouldcost.yaml"
	defaultSessionIdle = 12 * time.Hour

	envPrefix = "SHOULDCOST_"
)

// Config holds application configuration.
type Config struct {
	DBPath         string        `koanf:"db_path"`
	Port           string        `koanf:"port"`
	SessionSecret  string        `koanf:"session_secret"`
	SessionIdle    time.Duration `koanf:"session_idle"`
	AdminEmail     string        `koanf:"admin_email"`
	AdminPassword  string        `koanf:"admin_password"`
	LogLevel       string        `koanf:"log_level"`
	LogFormat      string        `koanf:"log_format"`
	MigrateOnStart bool          `koanf:"migrate_on_start"`

	// ConfigFile is the YAML file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// Options selects the sources Load reads. Zero values pick the defaults.
type Options struct {
	EnvFile    string
	ConfigFile string
	Flags      *pflag.FlagSet
}

// Load layers defaults, the YAML config file, SHOULDCOST_ environment
// variables and explicitly set flags, in increasing priority. A .env file
// is loaded first without overriding variables already set.
func Load(opts Options) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"db_path":          defaultDBPath,
		"port":             defaultPort,
		"session_secret":   "",
		"session_idle":     defaultSessionIdle.String(),
		"admin_email":      "",
		"admin_password":   "",
		"log_level":        "info",
		"log_format":       "text",
		"migrate_on_start": true,
	}, "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	configFile := opts.ConfigFile
	explicit := configFile != ""
	if !explicit {
		configFile = defaultConfigFile
	}
	loadedFile := ""
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
		loadedFile = configFile
	} else if explicit {
		return Config{}, fmt.Errorf("config file %s: %w", configFile, err)
	}

	// SHOULDCOST_DB_PATH -> db_path
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env vars: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = loadedFile

	return cfg, nil
}

// Warnings lists settings that work but should be fixed before deploying.
func (c Config) Warnings() []string {
	var warnings []string
	if c.SessionSecret == "" {
		warnings = append(warnings, "session_secret is not set; session cookies are signed with an empty key")
	}
	if c.AdminEmail == "" || c.AdminPassword == "" {
		warnings = append(warnings, "admin_email or admin_password is not set; no admin user is provisioned")
	}
	if c.SessionIdle <= 0 {
		warnings = append(warnings, "session_idle is not positive; analysis sessions are never expired")
	}
	return warnings
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}
