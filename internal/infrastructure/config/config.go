package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for graypm.
// All configuration is loaded from YAML and can be overridden by environment variables.
//
// A Config is built once at startup and passed by value (or pointer, read-only)
// into the components that need it. Nothing in the module reads ambient state
// such as $HOME after Load returns.
type Config struct {
	// Home is the graypm working directory. Default child log files live in
	// <home>/log and the lock file in <home>.
	Home       string           `yaml:"home"`
	Database   DatabaseConfig   `yaml:"database"`
	Table      TableConfig      `yaml:"table"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	LogCapture LogCaptureConfig `yaml:"log_capture"`
	API        APIConfig        `yaml:"api"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TableConfig contains process table settings.
type TableConfig struct {
	// LockFile is the advisory lock shared by the daemon and every CLI
	// invocation that touches the table. Defaults to <home>/graypm.lock.
	LockFile string `yaml:"lock_file"`
}

// SupervisorConfig contains process lifecycle settings.
type SupervisorConfig struct {
	// StopTimeout is how long (seconds) stop waits for a process tree to exit.
	StopTimeout int `yaml:"stop_timeout"`

	// DefaultMaxRestart is applied to new records that do not set max_restart.
	DefaultMaxRestart int `yaml:"default_max_restart"`

	// ReconcileInterval is the reaper cadence in milliseconds.
	ReconcileInterval int `yaml:"reconcile_interval"`

	// AutorunInterval re-starts stopped autorun_enabled records every N
	// seconds. 0 disables the periodic pass; boot-time autorun still runs.
	AutorunInterval int `yaml:"autorun_interval"`

	Escalation EscalationConfig `yaml:"escalation"`
	Backend    BackendConfig    `yaml:"backend"`
	Watchdog   WatchdogConfig   `yaml:"watchdog"`
}

// EscalationConfig controls what happens when a process tree survives the
// first signal.
type EscalationConfig struct {
	// Enabled sends Signal to the survivors after the stop timeout.
	// Default: false (survivors are reported as still alive).
	Enabled bool `yaml:"enabled"`

	// Signal is the follow-up signal name, e.g. "SIGKILL".
	Signal string `yaml:"signal"`

	// Timeout (seconds) to wait after the follow-up signal.
	Timeout int `yaml:"timeout"`
}

// BackendConfig describes the hidden record representing the daemon itself.
type BackendConfig struct {
	Name string `yaml:"name"`
}

// WatchdogConfig describes an optional hidden helper process started at boot.
type WatchdogConfig struct {
	Name        string `yaml:"name"`
	Cmd         string `yaml:"cmd"`
	Interpreter string `yaml:"interpreter"`
	// FirstID is the lowest id the watchdog may take; it gets the first
	// free id at or above it.
	FirstID int `yaml:"first_id"`
}

// LogCaptureConfig contains child output rotation settings.
type LogCaptureConfig struct {
	RotationEnabled bool `yaml:"rotation_enabled"`

	// RotationWhen is "midnight" or "interval".
	RotationWhen string `yaml:"rotation_when"`

	// RotationInterval (seconds) is used when RotationWhen is "interval".
	RotationInterval int `yaml:"rotation_interval"`

	// MaxSizeMB rotates a segment early once it grows past this size.
	// 0 leaves size rotation at a very large ceiling.
	MaxSizeMB int `yaml:"max_size_mb"`

	// BackupCount is how many rotated segments are retained.
	BackupCount int  `yaml:"backup_count"`
	GzipEnabled bool `yaml:"gzip_enabled"`
}

// APIConfig contains HTTP control surface settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`

	// SampleInterval (seconds) between process metric samples.
	SampleInterval int `yaml:"sample_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded, rooted at home)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYPM_SECTION_KEY
// For example: GRAYPM_DATABASE_PATH, GRAYPM_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//   - home: Default home directory (usually ~/.graypm)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path, home string) (*Config, error) {
	cfg := defaultConfig(home)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// LoadOrDefault behaves like Load but falls back to defaults when the file
// does not exist. The CLI runs with no configuration at all.
func LoadOrDefault(path, home string) (*Config, error) {
	cfg, err := Load(path, home)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return finish(defaultConfig(home))
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// DefaultHome returns ~/.graypm, or ./.graypm if the home directory is unknown.
func DefaultHome() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".graypm"
	}
	return filepath.Join(dir, ".graypm")
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig(home string) *Config {
	return &Config{
		Home: home,
		Database: DatabaseConfig{
			WALMode:     true,
			BusyTimeout: 5,
		},
		Supervisor: SupervisorConfig{
			StopTimeout:       5,
			DefaultMaxRestart: 1000,
			ReconcileInterval: 1000,
			Escalation: EscalationConfig{
				Signal:  "SIGKILL",
				Timeout: 2,
			},
			Backend: BackendConfig{
				Name: "__backend__",
			},
			Watchdog: WatchdogConfig{
				Name:    "__cron_checker__",
				FirstID: 1,
			},
		},
		LogCapture: LogCaptureConfig{
			RotationEnabled: true,
			RotationWhen:    "midnight",
			BackupCount:     30,
			GzipEnabled:     true,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7979,
			Timeouts: APITimeoutConfig{
				Read: 30,
				// stop waits on process trees; keep writes well above stop_timeout
				Write: 120,
				Idle:  60,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graypm",
			},
			QoS:         1,
			TopicPrefix: "graypm",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:         "graypm",
			SampleInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     28,
				Compress:   true,
			},
		},
	}
}

// fillDerived resolves paths that default relative to Home.
func (c *Config) fillDerived() {
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.Home, "graypm.db")
	}
	if c.Table.LockFile == "" {
		c.Table.LockFile = filepath.Join(c.Home, "graypm.lock")
	}
	if c.Logging.File.Path == "" {
		c.Logging.File.Path = filepath.Join(c.Home, "graypm.log")
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYPM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYPM_HOME"); v != "" {
		cfg.Home = v
	}

	// Database
	if v := os.Getenv("GRAYPM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("GRAYPM_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYPM_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("GRAYPM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYPM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYPM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYPM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYPM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Home == "" {
		errs = append(errs, "home is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Table.LockFile == "" {
		errs = append(errs, "table.lock_file is required")
	}

	// Supervisor validation
	if c.Supervisor.StopTimeout <= 0 {
		errs = append(errs, "supervisor.stop_timeout must be positive")
	}
	if c.Supervisor.DefaultMaxRestart <= 0 {
		errs = append(errs, "supervisor.default_max_restart must be positive")
	}
	if c.Supervisor.ReconcileInterval <= 0 {
		errs = append(errs, "supervisor.reconcile_interval must be positive")
	}
	if c.Supervisor.Watchdog.FirstID < 1 {
		errs = append(errs, "supervisor.watchdog.first_id must be at least 1")
	}
	if c.Supervisor.AutorunInterval < 0 {
		errs = append(errs, "supervisor.autorun_interval must not be negative")
	}
	if c.Supervisor.Escalation.Enabled {
		if _, ok := ParseSignal(c.Supervisor.Escalation.Signal); !ok {
			errs = append(errs, fmt.Sprintf("supervisor.escalation.signal %q is not a known signal", c.Supervisor.Escalation.Signal))
		}
		if c.Supervisor.Escalation.Timeout <= 0 {
			errs = append(errs, "supervisor.escalation.timeout must be positive")
		}
	}
	if c.Supervisor.Backend.Name == "" {
		errs = append(errs, "supervisor.backend.name is required")
	}

	// Log capture validation
	switch c.LogCapture.RotationWhen {
	case "midnight":
	case "interval":
		if c.LogCapture.RotationInterval <= 0 {
			errs = append(errs, "log_capture.rotation_interval must be positive when rotation_when is interval")
		}
	default:
		errs = append(errs, "log_capture.rotation_when must be midnight or interval")
	}
	if c.LogCapture.BackupCount < 0 {
		errs = append(errs, "log_capture.backup_count must not be negative")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// LogDir returns the directory holding default child log files.
func (c *Config) LogDir() string {
	return filepath.Join(c.Home, "log")
}

// GetStopTimeout returns the stop timeout as a Duration.
func (c *Config) GetStopTimeout() time.Duration {
	return time.Duration(c.Supervisor.StopTimeout) * time.Second
}

// GetReconcileInterval returns the reaper cadence as a Duration.
func (c *Config) GetReconcileInterval() time.Duration {
	return time.Duration(c.Supervisor.ReconcileInterval) * time.Millisecond
}

// GetAutorunInterval returns the periodic autorun cadence; zero means disabled.
func (c *Config) GetAutorunInterval() time.Duration {
	return time.Duration(c.Supervisor.AutorunInterval) * time.Second
}

// GetRotationInterval returns the explicit rotation interval as a Duration.
func (c *Config) GetRotationInterval() time.Duration {
	return time.Duration(c.LogCapture.RotationInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Address returns the host:port the control surface listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
