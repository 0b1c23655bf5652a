package config

import (
	"path/filepath"
	"testing"
)

func TestStateDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvHome, dir)

	if got := StateDir(); got != dir {
		t.Errorf("StateDir() = %q, want %q", got, dir)
	}
	if got, want := DebugDir(), filepath.Join(dir, "debug"); got != want {
		t.Errorf("DebugDir() = %q, want %q", got, want)
	}
}

func TestStateDir_Home(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, "")
	t.Setenv("HOME", home)

	if got, want := StateDir(), filepath.Join(home, ".superset-import"); got != want {
		t.Errorf("StateDir() = %q, want %q", got, want)
	}
}
