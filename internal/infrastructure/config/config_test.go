package config

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
supervisor:
  stop_timeout: 3
  escalation:
    enabled: true
    signal: "SIGKILL"
    timeout: 1
log_capture:
  rotation_when: "interval"
  rotation_interval: 60
  backup_count: 4
api:
  port: 9000
`)

	cfg, err := Load(path, "/srv/graypm")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Table.LockFile != "/srv/graypm/graypm.lock" {
		t.Errorf("Table.LockFile = %q, want %q", cfg.Table.LockFile, "/srv/graypm/graypm.lock")
	}
	if cfg.GetStopTimeout() != 3*time.Second {
		t.Errorf("GetStopTimeout() = %v, want 3s", cfg.GetStopTimeout())
	}
	if cfg.GetRotationInterval() != time.Minute {
		t.Errorf("GetRotationInterval() = %v, want 1m", cfg.GetRotationInterval())
	}
	if cfg.LogCapture.BackupCount != 4 {
		t.Errorf("LogCapture.BackupCount = %d, want 4", cfg.LogCapture.BackupCount)
	}
	if cfg.Address() != "127.0.0.1:9000" {
		t.Errorf("Address() = %q, want %q", cfg.Address(), "127.0.0.1:9000")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml", t.TempDir())
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	home := t.TempDir()
	cfg, err := LoadOrDefault(filepath.Join(home, "missing.yaml"), home)
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Database.Path != filepath.Join(home, "graypm.db") {
		t.Errorf("Database.Path = %q, want default under home", cfg.Database.Path)
	}
	if cfg.LogDir() != filepath.Join(home, "log") {
		t.Errorf("LogDir() = %q", cfg.LogDir())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "database: [unclosed")
	if _, err := Load(path, t.TempDir()); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 0
log_capture:
  rotation_when: "weekly"
`)
	_, err := Load(path, t.TempDir())
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"api.port", "log_capture.rotation_when"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:    "zero stop timeout",
			modify:  func(c *Config) { c.Supervisor.StopTimeout = 0 },
			wantErr: "supervisor.stop_timeout",
		},
		{
			name: "unknown escalation signal",
			modify: func(c *Config) {
				c.Supervisor.Escalation.Enabled = true
				c.Supervisor.Escalation.Signal = "SIGNOPE"
			},
			wantErr: "supervisor.escalation.signal",
		},
		{
			name: "unknown escalation signal ignored when disabled",
			modify: func(c *Config) {
				c.Supervisor.Escalation.Signal = "SIGNOPE"
			},
		},
		{
			name: "interval rotation needs interval",
			modify: func(c *Config) {
				c.LogCapture.RotationWhen = "interval"
				c.LogCapture.RotationInterval = 0
			},
			wantErr: "log_capture.rotation_interval",
		},
		{
			name:    "watchdog id would collide with the backend",
			modify:  func(c *Config) { c.Supervisor.Watchdog.FirstID = 0 },
			wantErr: "supervisor.watchdog.first_id",
		},
		{
			name:    "invalid qos",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "influx enabled without url",
			modify:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig("/tmp/graypm")
			cfg.fillDerived()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GRAYPM_HOME", "/env/home")
	t.Setenv("GRAYPM_API_PORT", "8111")
	t.Setenv("GRAYPM_MQTT_PASSWORD", "secret")
	t.Setenv("GRAYPM_LOG_LEVEL", "debug")

	cfg := defaultConfig("/tmp/graypm")
	applyEnvOverrides(cfg)
	cfg.fillDerived()

	if cfg.Home != "/env/home" {
		t.Errorf("Home = %q, want /env/home", cfg.Home)
	}
	if cfg.API.Port != 8111 {
		t.Errorf("API.Port = %d, want 8111", cfg.API.Port)
	}
	if cfg.MQTT.Auth.Password != "secret" {
		t.Errorf("MQTT.Auth.Password not overridden")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Database.Path != "/env/home/graypm.db" {
		t.Errorf("Database.Path = %q, want derived from env home", cfg.Database.Path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig("/h")

	if cfg.Supervisor.DefaultMaxRestart != 1000 {
		t.Errorf("DefaultMaxRestart = %d, want 1000", cfg.Supervisor.DefaultMaxRestart)
	}
	if cfg.Supervisor.Escalation.Enabled {
		t.Error("escalation should be disabled by default")
	}
	if cfg.LogCapture.RotationWhen != "midnight" || cfg.LogCapture.BackupCount != 30 || !cfg.LogCapture.GzipEnabled {
		t.Errorf("unexpected log capture defaults: %+v", cfg.LogCapture)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("optional integrations should be disabled by default")
	}
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		input  string
		want   syscall.Signal
		wantOK bool
	}{
		{"SIGKILL", syscall.SIGKILL, true},
		{"kill", syscall.SIGKILL, true},
		{"TERM", syscall.SIGTERM, true},
		{"sigint", syscall.SIGINT, true},
		{"", 0, false},
		{"SIGNOPE", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseSignal(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseSignal(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
