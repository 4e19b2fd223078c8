package cli

import (
	"path/filepath"
	"testing"
)

func TestNewPaths(t *testing.T) {
	paths, err := NewPaths(AppName)
	if err != nil {
		t.Fatalf("NewPaths error: %v", err)
	}
	if paths.AppName != AppName {
		t.Errorf("AppName = %q, want %q", paths.AppName, AppName)
	}
	if paths.HomeDir == "" {
		t.Error("HomeDir should not be empty")
	}
}

func TestPaths_Layout(t *testing.T) {
	home := t.TempDir()
	paths := &Paths{AppName: "speechio", HomeDir: home}
	app := filepath.Join(home, ".giztoy", "speechio")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BaseDir", paths.BaseDir(), filepath.Join(home, ".giztoy")},
		{"AppDir", paths.AppDir(), app},
		{"ConfigFile", paths.ConfigFile(), filepath.Join(app, "config.yaml")},
		{"CacheDir", paths.CacheDir(), filepath.Join(app, "cache")},
		{"IndexDir", paths.IndexDir(), filepath.Join(app, "data", "index")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestPaths_CacheLocations(t *testing.T) {
	paths := &Paths{AppName: "speechio", HomeDir: "/home/u"}

	dir, index := paths.CacheLocations(nil)
	if dir != paths.CacheDir() || index != paths.IndexDir() {
		t.Errorf("defaults = %q, %q", dir, index)
	}

	dir, index = paths.CacheLocations(&CacheConfig{Dir: "/data/tts", Index: "memory"})
	if dir != "/data/tts" || index != "memory" {
		t.Errorf("overrides = %q, %q", dir, index)
	}
}
