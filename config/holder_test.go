package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/recordbase/config"
)

func writeConfig(t *testing.T, path, yaml string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestHolder_ReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recordbase.yaml")
	writeConfig(t, path, "mode: test\nsession:\n  secret: s\nlogging:\n  level: info\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	var notified *config.Config
	h.OnChange(func(cfg *config.Config) { notified = cfg })

	writeConfig(t, path, "mode: test\nsession:\n  secret: s\nlogging:\n  level: debug\n")
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if h.Get().Logging.Level != "debug" {
		t.Errorf("level = %q after reload", h.Get().Logging.Level)
	}
	if notified == nil || notified.Logging.Level != "debug" {
		t.Error("OnChange should fire with the new configuration")
	}
}

func TestHolder_FailedReloadKeepsOldConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recordbase.yaml")
	writeConfig(t, path, "mode: test\nsession:\n  secret: s\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	var reported error
	h.OnError(func(err error) { reported = err })

	// An invalid mode must not replace the running configuration.
	writeConfig(t, path, "mode: broken\nsession:\n  secret: s\n")
	if err := h.Reload(); err == nil {
		t.Fatal("expected reload to fail")
	}

	if h.Get().Mode != config.ModeTest {
		t.Errorf("mode = %q, old config should survive", h.Get().Mode)
	}
	if reported == nil {
		t.Error("OnError should fire on a failed reload")
	}
}

func TestStaticHolder_HasNoReload(t *testing.T) {
	h := config.NewStaticHolder(config.Default(), zerolog.Nop())
	defer h.Stop()

	if h.Get().Mode != config.ModeTest {
		t.Errorf("mode = %q", h.Get().Mode)
	}
	if err := h.Reload(); err == nil {
		t.Error("static holder should refuse to reload")
	}
	if err := h.WatchFile(); err == nil {
		t.Error("static holder should refuse to watch")
	}
}
