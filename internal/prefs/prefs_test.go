package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	p := Load("")
	if p.Theme != defaultTheme || p.View != defaultView {
		t.Fatalf("Load() = %#v, want defaults", p)
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	prefsDir := filepath.Join(home, ".config", "tabtime")
	if err := os.MkdirAll(prefsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	body := "theme = \"Slate\"\nview = \"usage\"\n"
	if err := os.WriteFile(filepath.Join(prefsDir, "prefs.toml"), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := Load("")
	if p.Theme != "Slate" || p.View != "usage" {
		t.Fatalf("Load() = %#v, want Slate/usage", p)
	}
}

func TestSave_CreatesFileAndDirs(t *testing.T) {
	prefsFile := filepath.Join(t.TempDir(), "subdir", "prefs.toml")

	if err := Save(prefsFile, Prefs{Theme: "Kanagawa", View: "usage"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded := Load(prefsFile)
	if loaded.Theme != "Kanagawa" || loaded.View != "usage" {
		t.Fatalf("Load() = %#v, want Kanagawa/usage", loaded)
	}
}

func TestUpdate_PreservesOtherFields(t *testing.T) {
	prefsFile := filepath.Join(t.TempDir(), "prefs.toml")
	if err := Save(prefsFile, Prefs{Theme: "Slate", View: "focus"}); err != nil {
		t.Fatal(err)
	}

	if err := Update(prefsFile, func(p *Prefs) { p.View = "usage" }); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	p := Load(prefsFile)
	if p.Theme != "Slate" || p.View != "usage" {
		t.Fatalf("Load() = %#v, want Slate/usage", p)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	cases := map[string]string{
		"empty theme":  "theme = \"\"\n",
		"unknown view": "view = \"settings\"\n",
		"bad toml":     "not valid toml {{{\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			prefsFile := filepath.Join(t.TempDir(), "prefs.toml")
			if err := os.WriteFile(prefsFile, []byte(body), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			p := Load(prefsFile)
			if p.Theme != defaultTheme || p.View != defaultView {
				t.Fatalf("Load() = %#v, want defaults", p)
			}
		})
	}
}
