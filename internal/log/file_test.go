package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileWriter_Write(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWriter(tmpDir)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	defer fw.Close()

	if _, err := fw.Write([]byte(`{"msg":"test"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	today := time.Now().Format("2006-01-02")
	logFile := filepath.Join(tmpDir, "superset-import-"+today+".jsonl")
	if fw.Path() != logFile {
		t.Errorf("Path() = %q, want %q", fw.Path(), logFile)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(content), `{"msg":"test"}`) {
		t.Errorf("expected content to contain test message, got: %s", content)
	}

	info, err := os.Stat(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("log file permissions = %04o, want 0600", perm)
	}
}

func TestFileWriter_LatestSymlink(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWriter(tmpDir)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	defer fw.Close()

	target, err := os.Readlink(filepath.Join(tmpDir, "latest"))
	if err != nil {
		t.Fatalf("reading symlink: %v", err)
	}

	expected := "superset-import-" + time.Now().Format("2006-01-02") + ".jsonl"
	if target != expected {
		t.Errorf("expected symlink to point to %s, got %s", expected, target)
	}
}

func TestFileWriter_CloseTwice(t *testing.T) {
	fw, err := NewFileWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestCleanup(t *testing.T) {
	tmpDir := t.TempDir()

	old := "superset-import-" + time.Now().AddDate(0, 0, -20).Format("2006-01-02") + ".jsonl"
	recent := "superset-import-" + time.Now().AddDate(0, 0, -2).Format("2006-01-02") + ".jsonl"
	unrelated := "notes.txt"
	for _, name := range []string{old, recent, unrelated} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	Cleanup(tmpDir, 14)

	if _, err := os.Stat(filepath.Join(tmpDir, old)); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed", old)
	}
	for _, name := range []string{recent, unrelated} {
		if _, err := os.Stat(filepath.Join(tmpDir, name)); err != nil {
			t.Errorf("expected %s to be kept: %v", name, err)
		}
	}
}

func TestCleanup_MissingDir(t *testing.T) {
	// Must not panic.
	Cleanup(filepath.Join(t.TempDir(), "missing"), 7)
}
