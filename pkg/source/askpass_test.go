package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAskpassHelperRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteAskpassHelper(dir, "p@ss'word")
	if err != nil {
		t.Fatalf("WriteAskpassHelper: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat helper: %v", err)
	}
	if info.Mode().Perm()&0111 == 0 {
		t.Error("expected helper script to be executable")
	}
	if filepath.Dir(path) != dir {
		t.Errorf("expected helper under %q, got %q", dir, path)
	}

	if err := RemoveAskpassHelper(path); err != nil {
		t.Fatalf("RemoveAskpassHelper: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected helper to be removed")
	}
}

func TestRemoveAskpassHelperIdempotent(t *testing.T) {
	if err := RemoveAskpassHelper(""); err != nil {
		t.Errorf("expected no error for empty path, got %v", err)
	}
	if err := RemoveAskpassHelper(filepath.Join(t.TempDir(), "missing.sh")); err != nil {
		t.Errorf("expected no error for already-missing helper, got %v", err)
	}
}
