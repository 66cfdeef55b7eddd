package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/five82/tabtime/internal/config"
	"github.com/five82/tabtime/internal/tracker"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_APIOverride(t *testing.T) {
	path := writeConfig(t, "api_bind = \"127.0.0.1:9000\"\n")

	cfg, err := loadConfig(Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.APIBind != "127.0.0.1:9000" {
		t.Fatalf("APIBind = %q, want file value", cfg.APIBind)
	}

	cfg, err = loadConfig(Options{ConfigPath: path, APIBind: "127.0.0.1:9100"})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.APIBind != "127.0.0.1:9100" {
		t.Fatalf("APIBind = %q, want flag value", cfg.APIBind)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := writeConfig(t, "critical_timeout = \"soon\"\n")
	_, err := loadConfig(Options{ConfigPath: path})
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("loadConfig() error = %v, want load config error", err)
	}
}

func TestRequestOptions(t *testing.T) {
	cfg := config.Defaults()
	cfg.CriticalTimeout = time.Second
	cfg.BackgroundTimeout = 4 * time.Second
	cfg.BackgroundAttempts = 2

	critical, background := requestOptions(cfg)
	if critical.Timeout != time.Second || critical.MaxAttempts != 1 {
		t.Fatalf("critical = %+v", critical)
	}
	if background.Timeout != 4*time.Second || background.MaxAttempts != 2 {
		t.Fatalf("background = %+v", background)
	}
}

func TestEmit_WritesToBus(t *testing.T) {
	busDir := filepath.Join(t.TempDir(), "bus")
	path := writeConfig(t, "bus_dir = \""+busDir+"\"\n")

	id, err := Emit(Options{ConfigPath: path}, tracker.PushFocusStateChanged, []byte(`{"isActive":true}`))
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if id == "" {
		t.Fatal("Emit() returned empty id")
	}
	entries, err := os.ReadDir(busDir)
	if err != nil {
		t.Fatalf("read bus dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".event") {
		t.Fatalf("bus dir entries = %v, want one .event file", entries)
	}
}
