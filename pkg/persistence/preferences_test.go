package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPreferences(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		p := NewPreferences(filepath.Join(t.TempDir(), "nonexistent.json"))
		if err := p.Load(); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if keys := p.Keys(); len(keys) != 0 {
			t.Errorf("Keys() = %v, want empty", keys)
		}
		if got := p.Float("min", 15); got != 15 {
			t.Errorf("Float() = %v, want default 15", got)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prefs", "barberfish.json")
		p := NewPreferences(path)
		p.SetFloat("randonneur.min", 18.5)
		p.SetString("triple.field0", "TYPE_SPEED_ID")
		p.SetBool("triple.header", true)

		if err := p.Save(); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if p.SavedAt().IsZero() {
			t.Error("SavedAt() is zero after Save")
		}

		q := NewPreferences(path)
		if err := q.Load(); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got := q.Float("randonneur.min", 0); got != 18.5 {
			t.Errorf("Float() = %v, want 18.5", got)
		}
		if got := q.String("triple.field0", ""); got != "TYPE_SPEED_ID" {
			t.Errorf("String() = %q", got)
		}
		if !q.Bool("triple.header", false) {
			t.Error("Bool() = false, want true")
		}
		if q.SavedAt().IsZero() {
			t.Error("SavedAt() not restored")
		}
	})

	t.Run("TypeMismatchUsesDefault", func(t *testing.T) {
		p := NewPreferences("")
		p.SetString("max", "thirty")
		if got := p.Float("max", 30); got != 30 {
			t.Errorf("Float() = %v, want default 30", got)
		}
		if got := p.String("missing", "x"); got != "x" {
			t.Errorf("String() = %q, want default", got)
		}
	})

	t.Run("InMemory", func(t *testing.T) {
		p := NewPreferences("")
		p.SetFloat("a", 1)
		if err := p.Save(); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := p.Load(); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got := p.Float("a", 0); got != 1 {
			t.Errorf("Float() = %v, want 1", got)
		}
	})

	t.Run("DeleteAndClear", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prefs.json")
		p := NewPreferences(path)
		p.SetFloat("a", 1)
		p.SetFloat("b", 2)
		p.Delete("a")
		if got := p.Keys(); len(got) != 1 || got[0] != "b" {
			t.Errorf("Keys() = %v, want [b]", got)
		}
		if err := p.Save(); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		if err := p.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("file still present after Clear: %v", err)
		}
		if err := p.Clear(); err != nil {
			t.Errorf("second Clear() error = %v", err)
		}
		if len(p.Keys()) != 0 {
			t.Error("values kept after Clear")
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prefs.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := NewPreferences(path).Load(); err == nil {
			t.Error("Load() of corrupt file succeeded")
		}
	})

	t.Run("FutureVersion", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prefs.json")
		if err := os.WriteFile(path, []byte(`{"version": 99, "values": {}}`), 0644); err != nil {
			t.Fatal(err)
		}
		if err := NewPreferences(path).Load(); err == nil {
			t.Error("Load() of a newer format succeeded")
		}
	})
}
