package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// PreferencesVersion is the current version of the preferences file format.
const PreferencesVersion = 1

// preferencesFile is the on-disk layout.
type preferencesFile struct {
	// Version is the file format version.
	Version int `json:"version"`

	// SavedAt is when the preferences were last saved.
	SavedAt time.Time `json:"saved_at"`

	Values map[string]any `json:"values"`
}

// Preferences is a key-value store backed by a JSON file. An empty path
// keeps the values in memory only.
type Preferences struct {
	mu      sync.Mutex
	path    string
	values  map[string]any
	savedAt time.Time
}

// NewPreferences returns empty preferences stored at path. Call Load to
// read existing values.
func NewPreferences(path string) *Preferences {
	return &Preferences{path: path, values: make(map[string]any)}
}

// Path returns the backing file.
func (p *Preferences) Path() string { return p.path }

// Load replaces the in-memory values with the file contents. A missing file
// leaves the preferences empty.
func (p *Preferences) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.path == "" {
		return nil
	}
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		p.values = make(map[string]any)
		return nil
	}
	if err != nil {
		return err
	}

	var f preferencesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse preferences %s: %w", p.path, err)
	}
	if f.Version > PreferencesVersion {
		return fmt.Errorf("preferences %s: unsupported version %d", p.path, f.Version)
	}
	if f.Values == nil {
		f.Values = make(map[string]any)
	}
	p.values = f.Values
	p.savedAt = f.SavedAt
	return nil
}

// Save writes the values to disk.
func (p *Preferences) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return err
	}

	p.savedAt = time.Now()
	data, err := json.MarshalIndent(preferencesFile{
		Version: PreferencesVersion,
		SavedAt: p.savedAt,
		Values:  p.values,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0644)
}

// SavedAt returns when the preferences were last saved or loaded from a
// save, or the zero time.
func (p *Preferences) SavedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.savedAt
}

// Clear removes every value and the file.
func (p *Preferences) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.values = make(map[string]any)
	if p.path == "" {
		return nil
	}
	err := os.Remove(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Keys returns the stored keys, sorted.
func (p *Preferences) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns the number stored under key, or def.
func (p *Preferences) Float(key string, def float64) float64 {
	if v, ok := p.get(key).(float64); ok {
		return v
	}
	return def
}

// SetFloat stores a number.
func (p *Preferences) SetFloat(key string, v float64) { p.set(key, v) }

// String returns the string stored under key, or def.
func (p *Preferences) String(key, def string) string {
	if v, ok := p.get(key).(string); ok {
		return v
	}
	return def
}

// SetString stores a string.
func (p *Preferences) SetString(key, v string) { p.set(key, v) }

// Bool returns the flag stored under key, or def.
func (p *Preferences) Bool(key string, def bool) bool {
	if v, ok := p.get(key).(bool); ok {
		return v
	}
	return def
}

// SetBool stores a flag.
func (p *Preferences) SetBool(key string, v bool) { p.set(key, v) }

// Delete removes key.
func (p *Preferences) Delete(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
}

func (p *Preferences) get(key string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[key]
}

func (p *Preferences) set(key string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = v
}
