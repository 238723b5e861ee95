package model

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// ValueFormat selects how a data type value is rendered.
type ValueFormat string

const (
	FormatSpeed    ValueFormat = "speed"
	FormatInteger  ValueFormat = "integer"
	FormatDistance ValueFormat = "distance"
	FormatTime     ValueFormat = "time"
	FormatDecimal  ValueFormat = "decimal"
)

// DataTypeInfo describes a built-in data type.
type DataTypeInfo struct {
	ID        string            `yaml:"id"`
	Label     string            `yaml:"label"`
	Field     string            `yaml:"field"`
	Format    ValueFormat       `yaml:"format"`
	ZoneField string            `yaml:"zone_field"`
	Smoothed  map[string]string `yaml:"smoothed"`
}

// HasZones reports whether the data type carries a training zone field.
func (d DataTypeInfo) HasZones() bool {
	return d.ZoneField != ""
}

// SmoothedID returns the smoothed data type for an averaging window such
// as "3s", or the data type itself when no such variant exists.
func (d DataTypeInfo) SmoothedID(window string) string {
	if id, ok := d.Smoothed[window]; ok {
		return id
	}
	return d.ID
}

// Windows returns the smoothing windows available for the data type, sorted
// by duration.
func (d DataTypeInfo) Windows() []string {
	out := make([]string, 0, len(d.Smoothed))
	for w := range d.Smoothed {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// Catalog indexes the built-in data types.
type Catalog struct {
	Types []DataTypeInfo `yaml:"types"`

	byID map[string]DataTypeInfo
}

// ParseCatalog parses a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing data type catalog: %w", err)
	}

	c.byID = make(map[string]DataTypeInfo, len(c.Types))
	for _, t := range c.Types {
		if t.ID == "" || t.Field == "" {
			return nil, fmt.Errorf("data type catalog: entry %q missing id or field", t.ID)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("data type catalog: duplicate id %q", t.ID)
		}
		c.byID[t.ID] = t
	}
	return &c, nil
}

// Lookup returns the entry for a data type id.
func (c *Catalog) Lookup(id string) (DataTypeInfo, bool) {
	t, ok := c.byID[id]
	return t, ok
}

var loadCatalog = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
})

// LoadCatalog returns the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return loadCatalog()
}

// LookupDataType returns the embedded catalog entry for id.
func LookupDataType(id string) (DataTypeInfo, bool) {
	c, err := loadCatalog()
	if err != nil {
		return DataTypeInfo{}, false
	}
	return c.Lookup(id)
}

// Label returns the short display label for a data type. Unknown ids
// fall back to their first six characters upper-cased.
func Label(id string) string {
	if t, ok := LookupDataType(id); ok {
		return t.Label
	}
	if len(id) > 6 {
		id = id[:6]
	}
	return strings.ToUpper(id)
}
