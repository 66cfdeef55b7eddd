package popup

import "testing"

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 {
		t.Fatalf("ThemeNames() returned %d names, want 3", len(names))
	}
	if names[0] != "Nightfox" {
		t.Fatalf("ThemeNames()[0] = %q, want Nightfox", names[0])
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Nightfox"); got != "Kanagawa" {
		t.Fatalf("NextTheme(Nightfox) = %q, want Kanagawa", got)
	}
	if got := NextTheme("Slate"); got != "Nightfox" {
		t.Fatalf("NextTheme(Slate) = %q, want Nightfox", got)
	}
	if got := NextTheme("Unknown"); got != "Nightfox" {
		t.Fatalf("NextTheme(Unknown) = %q, want Nightfox", got)
	}
}

func TestGetTheme(t *testing.T) {
	for _, name := range ThemeNames() {
		if got := GetTheme(name); got.Name != name {
			t.Fatalf("GetTheme(%s).Name = %q", name, got.Name)
		}
	}
	if got := GetTheme("Unknown"); got.Name != "Nightfox" {
		t.Fatalf("GetTheme(Unknown).Name = %q, want Nightfox", got.Name)
	}
}

func TestThemeColorsComplete(t *testing.T) {
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for field, value := range map[string]string{
			"Background": th.Background,
			"Surface":    th.Surface,
			"Text":       th.Text,
			"Accent":     th.Accent,
			"Success":    th.Success,
			"Danger":     th.Danger,
		} {
			if value == "" {
				t.Fatalf("%s.%s is empty", name, field)
			}
		}
	}
}
