package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_SetThenGet(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := s.Set("cat_reservations", `{"2026-07-25":"1"}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := s.Get("cat_reservations")
	if err != nil || !ok {
		t.Fatalf("Get() = %q, %v, %v", got, ok, err)
	}
	if got != `{"2026-07-25":"1"}` {
		t.Errorf("Get() = %q", got)
	}
}

func TestFileStore_GetMissingFile(t *testing.T) {
	s, _ := NewFileStore(t.TempDir(), "http://localhost:8080")

	_, ok, err := s.Get("cat_reservations")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing file")
	}
}

func TestFileStore_OriginsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	a, _ := NewFileStore(dir, "http://localhost:8080")
	b, _ := NewFileStore(dir, "https://cats.example.com")

	if err := a.Set("k", "from-a"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok, _ := b.Get("k"); ok {
		t.Error("value leaked across origins")
	}
	if a.Path() == b.Path() {
		t.Errorf("both origins map to %s", a.Path())
	}
}

func TestFileStore_FilePermissions(t *testing.T) {
	s, _ := NewFileStore(t.TempDir(), "http://localhost:8080")
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir, "http://localhost:8080")
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Get("k"); err == nil {
		t.Error("expected error reading corrupt file")
	}

	// 壊れたファイルでも書き込みで復旧できる
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, ok, err := s.Get("k"); err != nil || !ok || got != "v" {
		t.Errorf("Get() after recovery = %q, %v, %v", got, ok, err)
	}
}

func TestNewFileStore_Validation(t *testing.T) {
	if _, err := NewFileStore("", "http://localhost"); err == nil {
		t.Error("expected error for empty dir")
	}
	if _, err := NewFileStore(t.TempDir(), ""); err == nil {
		t.Error("expected error for empty origin")
	}
}

func TestOriginFileName(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{"http://localhost:8080", "http_localhost_8080.json"},
		{"https://Cats.Example.com", "https_cats.example.com.json"},
		{"///", "default.json"},
	}
	for _, tt := range tests {
		if got := originFileName(tt.origin); got != tt.want {
			t.Errorf("originFileName(%q) = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestWriteFileAtomic_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "file.yaml")
	if err := WriteFileAtomic(path, []byte("x")); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "x" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	if _, ok, _ := s.Get("k"); ok {
		t.Error("expected empty store")
	}
	_ = s.Set("k", "v1")
	_ = s.Set("k", "v2")
	if got, ok, _ := s.Get("k"); !ok || got != "v2" {
		t.Errorf("Get() = %q, %v, want v2", got, ok)
	}
}
