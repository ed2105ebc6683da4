// Package config loads serownia settings from an optional config file,
// a .env file and SEROWNIA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SEROWNIA_DATABASE_PATH.
const EnvPrefix = "SEROWNIA"

// Supported SQLite drivers.
const (
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverModernc = "sqlite"  // modernc.org/sqlite (pure Go)
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
	Protocol ProtocolConfig `mapstructure:"protocol" toml:"protocol"`
	Report   ReportConfig   `mapstructure:"report" toml:"report"`
}

type DatabaseConfig struct {
	Path          string `mapstructure:"path" toml:"path" comment:"SQLite database file"`
	Driver        string `mapstructure:"driver" toml:"driver" comment:"SQLite driver: sqlite3 (cgo) or sqlite (pure Go)"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms" toml:"busy_timeout_ms" comment:"wait for a locked database, milliseconds"`
}

type LogConfig struct {
	Level             string `mapstructure:"level" toml:"level" comment:"debug | info | warn | error"`
	Encoding          string `mapstructure:"encoding" toml:"encoding" comment:"console | json"`
	DisableCaller     bool   `mapstructure:"disable_caller" toml:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace" toml:"disable_stacktrace"`
}

type ProtocolConfig struct {
	MaxAdditiveLines int `mapstructure:"max_additive_lines" toml:"max_additive_lines" comment:"additive lines on one protocol"`
	MaxBatchLines    int `mapstructure:"max_batch_lines" toml:"max_batch_lines" comment:"lot lines in the batch ledger of one protocol"`
}

type ReportConfig struct {
	Dir string `mapstructure:"dir" toml:"dir" comment:"directory for generated reports"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Path:          DefaultDatabasePath(),
			Driver:        DriverMattn,
			BusyTimeoutMS: 5000,
		},
		Log: LogConfig{
			Level:             "info",
			Encoding:          "console",
			DisableCaller:     true,
			DisableStacktrace: true,
		},
		Protocol: ProtocolConfig{
			MaxAdditiveLines: 10,
			MaxBatchLines:    15,
		},
		Report: ReportConfig{
			Dir: ".",
		},
	}
}

// DefaultDatabasePath returns <user config dir>/serownia/serownia.db, or
// serownia.db in the working directory when no config dir is available.
func DefaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "serownia.db"
	}
	return filepath.Join(dir, "serownia", "serownia.db")
}

// Load builds the configuration. Precedence, lowest first: defaults, the
// config file (if file is non-empty), environment variables. A .env file in
// the working directory is loaded into the environment first when present.
func Load(file string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.busy_timeout_ms", d.Database.BusyTimeoutMS)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.disable_caller", d.Log.DisableCaller)
	v.SetDefault("log.disable_stacktrace", d.Log.DisableStacktrace)

	v.SetDefault("protocol.max_additive_lines", d.Protocol.MaxAdditiveLines)
	v.SetDefault("protocol.max_batch_lines", d.Protocol.MaxBatchLines)

	v.SetDefault("report.dir", d.Report.Dir)
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is empty"))
	}
	switch c.Database.Driver {
	case DriverMattn, DriverModernc:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: must be %q or %q", c.Database.Driver, DriverMattn, DriverModernc))
	}
	if c.Database.BusyTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("database.busy_timeout_ms must not be negative"))
	}
	if c.Protocol.MaxAdditiveLines <= 0 {
		errs = append(errs, fmt.Errorf("protocol.max_additive_lines must be positive"))
	}
	if c.Protocol.MaxBatchLines <= 0 {
		errs = append(errs, fmt.Errorf("protocol.max_batch_lines must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// WriteDefault writes the default configuration as commented TOML.
// It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("write default config: %s already exists", path)
	}
	b, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
