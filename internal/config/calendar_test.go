package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/catsit/internal/model"
)

func TestLoadCalendar_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catsit.yaml")

	cal, created, err := LoadCalendar(path)
	if err != nil {
		t.Fatalf("LoadCalendar returned error: %v", err)
	}
	if !created {
		t.Error("created = false, want true for a missing file")
	}
	if cal.TotalDays() != 12 || len(cal.Roster) != 3 {
		t.Errorf("cal = %+v, want the default calendar", cal)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("calendar file was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	// 2回目は既存ファイルを読む
	again, created, err := LoadCalendar(path)
	if err != nil {
		t.Fatalf("LoadCalendar returned error: %v", err)
	}
	if created {
		t.Error("created = true, want false for an existing file")
	}
	if again.Window != cal.Window || again.Roster[0] != cal.Roster[0] {
		t.Errorf("reloaded calendar differs: %+v", again)
	}
}

func TestLoadCalendar_CustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catsit.yaml")
	content := `roster:
  - id: a
    name: Ana Bell
    emoji: "🐈"
    color: violet
  - id: b
    name: Ben
  - id: c
    name: Cleo
window:
  start: "2026-12-20"
  end: "2027-01-02"
cats: [Tom]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cal, created, err := LoadCalendar(path)
	if err != nil {
		t.Fatalf("LoadCalendar returned error: %v", err)
	}
	if created {
		t.Error("created = true, want false")
	}
	if cal.TotalDays() != 14 {
		t.Errorf("TotalDays = %d, want 14", cal.TotalDays())
	}
	if p, ok := cal.Participant("a"); !ok || p.ShortName() != "Ana" || p.Color != "violet" {
		t.Errorf("participant a = %+v", p)
	}
	if len(cal.Cats) != 1 || cal.Cats[0] != "Tom" {
		t.Errorf("Cats = %v", cal.Cats)
	}
}

func TestLoadCalendar_InvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "malformed yaml",
			content: "roster: [",
			wantMsg: "failed to parse",
		},
		{
			name:    "unknown field",
			content: "roster: []\nwindow: {start: \"2026-07-25\", end: \"2026-08-05\"}\nextra: 1\n",
			wantMsg: "failed to parse",
		},
		{
			name: "end before start",
			content: `roster:
  - {id: "1", name: A}
  - {id: "2", name: B}
  - {id: "3", name: C}
window: {start: "2026-08-05", end: "2026-07-25"}
`,
			wantMsg: "invalid calendar",
		},
		{
			name: "duplicate ids",
			content: `roster:
  - {id: "1", name: A}
  - {id: "1", name: B}
  - {id: "3", name: C}
window: {start: "2026-07-25", end: "2026-08-05"}
`,
			wantMsg: "invalid calendar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catsit.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, _, err := LoadCalendar(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestSaveCalendar_RejectsInvalid(t *testing.T) {
	cal := model.DefaultCalendar()
	cal.Roster = cal.Roster[:2]

	path := filepath.Join(t.TempDir(), "catsit.yaml")
	if err := SaveCalendar(path, cal); err == nil {
		t.Fatal("expected error for an invalid calendar")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid calendar should not be written")
	}
}
