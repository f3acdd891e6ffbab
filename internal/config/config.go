// Package config loads schemadrift settings.
//
// Values are resolved in increasing order of precedence: built-in defaults,
// a schemadrift.yaml file (working directory, or the file given with
// --config), SCHEMADRIFT_* environment variables, then command line flags.
// Nested keys map to environment names by upper-casing and replacing dots
// with underscores, so database.host is SCHEMADRIFT_DATABASE_HOST.
package config

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tordrt/schemadrift/internal/errs"
	"github.com/tordrt/schemadrift/internal/report"
)

const (
	envPrefix  = "SCHEMADRIFT"
	configName = "schemadrift"
	configType = "yaml"

	// DefaultSnapshotKey is the snapshot written by cache and read by
	// validate when no key is given.
	DefaultSnapshotKey = "schema-snapshot.yaml"
)

// Report formats.
const (
	FormatXLSX     = "xlsx"
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Config is the complete runtime configuration.
type Config struct {
	Database      DatabaseConfig `mapstructure:"database"`
	Snapshot      SnapshotConfig `mapstructure:"snapshot"`
	Report        ReportConfig   `mapstructure:"report"`
	Diff          DiffConfig     `mapstructure:"diff"`
	Tables        []string       `mapstructure:"tables"`
	ExcludeTables []string       `mapstructure:"exclude_tables"`
	Log           LogConfig      `mapstructure:"log"`
}

// DatabaseConfig locates the live MySQL database.
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// SnapshotConfig selects where snapshots are kept.
type SnapshotConfig struct {
	// Store is a store location: file, file://dir, sqlite://path,
	// postgres://..., or minio://bucket.
	Store string      `mapstructure:"store"`
	Path  string      `mapstructure:"path"`
	MinIO MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig holds MinIO connection settings.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// ReportConfig controls the validation report.
type ReportConfig struct {
	Output           string `mapstructure:"output"`
	Format           string `mapstructure:"format"`
	IncludeUnchanged bool   `mapstructure:"include_unchanged"`
	FailOnDrift      bool   `mapstructure:"fail_on_drift"`

	// UnchangedColumns lists every column that still matches the baseline.
	// It implies IncludeUnchanged.
	UnchangedColumns bool `mapstructure:"unchanged_columns"`
}

// DiffConfig tunes the comparison.
type DiffConfig struct {
	CaseInsensitive   bool `mapstructure:"case_insensitive"`
	IgnoreColumnOrder bool `mapstructure:"ignore_column_order"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"database.host":             "localhost",
	"database.port":             3306,
	"database.user":             "root",
	"database.password":         "",
	"database.name":             "",
	"database.connect_timeout":  10 * time.Second,
	"snapshot.store":            "file",
	"snapshot.path":             DefaultSnapshotKey,
	"snapshot.minio.endpoint":   "",
	"snapshot.minio.access_key": "",
	"snapshot.minio.secret_key": "",
	"snapshot.minio.use_ssl":    false,
	"snapshot.minio.region":     "",
	"report.output":             report.DefaultXLSXOutput,
	"report.format":             FormatXLSX,
	"report.include_unchanged":  false,
	"report.fail_on_drift":      false,
	"report.unchanged_columns":  false,
	"diff.case_insensitive":     false,
	"diff.ignore_column_order":  false,
	"tables":                    []string{},
	"exclude_tables":            []string{},
	"log.level":                 "info",
	"log.format":                "console",
}

// Loader resolves a Config from its sources. Each Loader owns its own
// viper instance.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader with defaults and environment lookup in place.
func NewLoader() *Loader {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// BindFlag makes flag override key when it was set on the command line.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return errs.Newf(errs.ErrKindInvalidInput, "no flag to bind for %s", key)
	}
	if err := l.v.BindPFlag(key, flag); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to bind flag "+flag.Name, err)
	}
	return nil
}

// Load reads configFile (or schemadrift.yaml from the working directory when
// configFile is empty) and returns the validated result. A missing default
// config file is not an error; a missing explicit one is.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile != "" {
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(configName)
		l.v.SetConfigType(configType)
		l.v.AddConfigPath(".")
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to unmarshal config", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFileUsed returns the config file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (c *Config) normalize() {
	c.Tables = cleanList(c.Tables)
	c.ExcludeTables = cleanList(c.ExcludeTables)
	c.Report.Format = strings.ToLower(strings.TrimSpace(c.Report.Format))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate checks values that do not depend on the command being run.
func (c *Config) Validate() error {
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return errs.Newf(errs.ErrKindInvalidInput, "database port %d out of range", c.Database.Port)
	}
	if c.Database.ConnectTimeout < 0 {
		return errs.New(errs.ErrKindInvalidInput, "database connect_timeout must not be negative")
	}
	if strings.TrimSpace(c.Snapshot.Path) == "" {
		return errs.New(errs.ErrKindInvalidInput, "snapshot path is required")
	}
	if !slices.Contains([]string{FormatXLSX, FormatText, FormatMarkdown}, c.Report.Format) {
		return errs.Newf(errs.ErrKindInvalidInput, "unknown report format %q (want xlsx, text or markdown)", c.Report.Format)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return errs.Newf(errs.ErrKindInvalidInput, "unknown log format %q (want json or console)", c.Log.Format)
	}
	return nil
}

// RequireDatabase checks the settings needed to reach the live database.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.Name) == "" {
		return errs.New(errs.ErrKindInvalidInput, "database name is required (--database or SCHEMADRIFT_DATABASE_NAME)")
	}
	if strings.TrimSpace(c.Database.Host) == "" {
		return errs.New(errs.ErrKindInvalidInput, "database host is required")
	}
	return nil
}

// cleanList splits comma separated entries and drops blanks, so both
// repeated flags and "a,b" strings work.
func cleanList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
