package filter

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsSwear(t *testing.T) {
	f, err := New([]string{"darn", "heck(ing)?"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		msg  string
		want bool
	}{
		{"hello there", false},
		{"oh DARN it", true},
		{"what the hecking", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := f.IsSwear(tt.msg); got != tt.want {
			t.Fatalf("IsSwear(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestEmptyListNeverMatches(t *testing.T) {
	f, err := New([]string{"", "  "})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.IsSwear("anything") {
		t.Fatalf("empty filter matched")
	}
	var nilFilter *Filter
	if nilFilter.IsSwear("anything") {
		t.Fatalf("nil filter matched")
	}
}

func TestInvalidPattern(t *testing.T) {
	if _, err := New([]string{"ok", "(broken"}); err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.yaml")
	if err := os.WriteFile(path, []byte("words:\n  - gosh\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !f.IsSwear("oh my GOSH") || len(f.Words()) != 1 {
		t.Fatalf("loaded filter = %v", f.Words())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultList(t *testing.T) {
	f, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Words()) == 0 {
		t.Fatalf("built-in list is empty")
	}
	if f.IsSwear("have a nice day") {
		t.Fatalf("clean message filtered")
	}
}
