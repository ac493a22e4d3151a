package ui

import "testing"

func TestThemeLookups(t *testing.T) {
	th := GetTheme("Midnight")

	if got := th.StatusColor("  RUNNING "); got != th.StatusColors["running"] {
		t.Fatalf("StatusColor = %q, want %q", got, th.StatusColors["running"])
	}
	if got := th.StatusColor("error"); got != th.Danger {
		t.Fatalf("StatusColor(error) = %q, want danger %q", got, th.Danger)
	}
	if got := th.StatusColor("unknown"); got != th.Muted {
		t.Fatalf("StatusColor unknown = %q, want %q", got, th.Muted)
	}
}

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 2 {
		t.Fatalf("ThemeNames() returned %d names, want 2", len(names))
	}
	if names[0] != "Midnight" || names[1] != "Daylight" {
		t.Fatalf("ThemeNames() = %v, want [Midnight Daylight]", names)
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Midnight"); got != "Daylight" {
		t.Fatalf("NextTheme(Midnight) = %q, want Daylight", got)
	}
	if got := NextTheme("Daylight"); got != "Midnight" {
		t.Fatalf("NextTheme(Daylight) = %q, want Midnight", got)
	}
	if got := NextTheme("Unknown"); got != "Midnight" {
		t.Fatalf("NextTheme(Unknown) = %q, want Midnight", got)
	}
}

func TestGetTheme(t *testing.T) {
	if got := GetTheme("Daylight").Name; got != "Daylight" {
		t.Fatalf("GetTheme(Daylight).Name = %q, want Daylight", got)
	}
	if got := GetTheme("Unknown").Name; got != "Midnight" {
		t.Fatalf("GetTheme(Unknown).Name = %q, want Midnight (fallback)", got)
	}
}

func TestEveryThemeColorsEveryState(t *testing.T) {
	states := []string{
		"starting", "running", "stopping", "restarting", "stopped", "crashed",
		"queued", "paused", "success", "error", "canceled",
	}
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, s := range states {
			if _, ok := th.StatusColors[s]; !ok {
				t.Errorf("theme %s has no color for %q", name, s)
			}
		}
	}
}
