package extension

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest is returned for manifests that fail validation.
var ErrInvalidManifest = errors.New("invalid extension manifest")

// Manifest describes an extension to the host.
type Manifest struct {
	ID           string             `yaml:"id"`
	DisplayName  string             `yaml:"displayName"`
	Version      string             `yaml:"version"`
	ScansDevices bool               `yaml:"scansDevices"`
	DataTypes    []ManifestDataType `yaml:"dataTypes"`
}

// ManifestDataType lists one data field.
type ManifestDataType struct {
	TypeID      string `yaml:"typeId"`
	DisplayName string `yaml:"displayName"`
	Description string `yaml:"description"`
	Graphical   bool   `yaml:"graphical"`
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks required fields and duplicate type ids.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidManifest)
	}
	seen := make(map[string]bool, len(m.DataTypes))
	for i, dt := range m.DataTypes {
		if dt.TypeID == "" {
			return fmt.Errorf("%w: data type %d has no typeId", ErrInvalidManifest, i)
		}
		if seen[dt.TypeID] {
			return fmt.Errorf("%w: duplicate typeId %q", ErrInvalidManifest, dt.TypeID)
		}
		seen[dt.TypeID] = true
	}
	return nil
}

// TypeIDs returns the declared type ids in manifest order.
func (m *Manifest) TypeIDs() []string {
	ids := make([]string, len(m.DataTypes))
	for i, dt := range m.DataTypes {
		ids[i] = dt.TypeID
	}
	return ids
}

// Check verifies that svc implements exactly the declared data types and
// matches the manifest id and scanner flag.
func (m *Manifest) Check(svc *Service) error {
	var problems []string
	if svc.ID() != m.ID {
		problems = append(problems, fmt.Sprintf("service id %q, manifest id %q", svc.ID(), m.ID))
	}
	if svc.ScansDevices() != m.ScansDevices {
		problems = append(problems, fmt.Sprintf("scansDevices %v, service scanner %v", m.ScansDevices, svc.ScansDevices()))
	}

	implemented := make(map[string]bool)
	for _, dt := range svc.Types() {
		implemented[dt.TypeID()] = true
	}
	for _, id := range m.TypeIDs() {
		if !implemented[id] {
			problems = append(problems, fmt.Sprintf("data type %q not implemented", id))
		}
		delete(implemented, id)
	}
	for id := range implemented {
		problems = append(problems, fmt.Sprintf("data type %q not declared", id))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(problems, "; "))
	}
	return nil
}
