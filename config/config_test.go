package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/recordbase/config"
)

func writeAndLoad(t *testing.T, yaml string) (*config.Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recordbase.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return config.Load(path)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := writeAndLoad(t, `
mode: development
session:
  secret: keep-it-quiet
`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8000 {
		t.Errorf("server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Storage.Driver != config.DriverDisk {
		t.Errorf("driver = %q, want disk outside test mode", cfg.Storage.Driver)
	}
	if cfg.Storage.DataDir != "data" || cfg.Uploads.Dir != "uploads" {
		t.Errorf("dirs = %q/%q", cfg.Storage.DataDir, cfg.Uploads.Dir)
	}
	if cfg.Session.ExpiresIn != 60*24*time.Hour {
		t.Errorf("expires_in = %v", cfg.Session.ExpiresIn)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %q/%q", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics path = %q", cfg.Metrics.Path)
	}
}

func TestLoad_TestModeDefaultsToMemory(t *testing.T) {
	cfg, err := writeAndLoad(t, `
mode: test
session:
  secret: s
`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != config.DriverMemory {
		t.Errorf("driver = %q, want memory in test mode", cfg.Storage.Driver)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad mode",
			yaml: "mode: staging\nsession:\n  secret: s\n",
			want: "mode must be",
		},
		{
			name: "bad driver",
			yaml: "mode: test\nstorage:\n  driver: postgres\nsession:\n  secret: s\n",
			want: "storage.driver must be",
		},
		{
			name: "cassandra without hosts",
			yaml: "mode: test\nstorage:\n  driver: cassandra\nsession:\n  secret: s\n",
			want: "storage.cassandra.hosts is required",
		},
		{
			name: "missing secret",
			yaml: "mode: test\n",
			want: "session.secret is required",
		},
		{
			name: "auth bypass outside test mode",
			yaml: "mode: production\nsession:\n  secret: s\ntesting:\n  disable_authentication: true\n",
			want: "only allowed in test mode",
		},
		{
			name: "bad log level",
			yaml: "mode: test\nsession:\n  secret: s\nlogging:\n  level: trace\n",
			want: "logging.level must be",
		},
		{
			name: "port out of range",
			yaml: "mode: test\nsession:\n  secret: s\nserver:\n  port: 70000\n",
			want: "server.port must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoad(t, tt.yaml)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("RECORDBASE_SERVER_PORT", "9001")
	t.Setenv("RECORDBASE_LOG_LEVEL", "debug")

	cfg, err := writeAndLoad(t, `
mode: test
server:
  port: 8000
session:
  secret: s
`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, want env override", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want env override", cfg.Logging.Level)
	}
}

func TestLoad_ExpandsEnvInFile(t *testing.T) {
	t.Setenv("APP_SECRET", "from-the-environment")

	cfg, err := writeAndLoad(t, `
mode: test
session:
  secret: ${APP_SECRET}
`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Secret != "from-the-environment" {
		t.Errorf("secret = %q", cfg.Session.Secret)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECORDBASE_MODE", "test")
	t.Setenv("RECORDBASE_SESSION_SECRET", "env-secret")
	t.Setenv("RECORDBASE_STORAGE_DRIVER", "memory")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Session.Secret != "env-secret" || cfg.Storage.Driver != config.DriverMemory {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadWithFallback_MissingEverything(t *testing.T) {
	t.Setenv("RECORDBASE_SESSION_SECRET", "")

	_, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error with no file and no environment")
	}
}

func TestDefault_IsValidTestConfig(t *testing.T) {
	cfg := config.Default()
	if cfg.Mode != config.ModeTest {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Storage.Driver != config.DriverMemory {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Session.Secret == "" {
		t.Error("default config needs a session secret")
	}
}
