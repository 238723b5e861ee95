package barberfish

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/karoo"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/persistence"
)

// Smoothing selects the raw stream of a data type or one of its averaged
// variants.
type Smoothing uint8

const (
	SmoothRaw Smoothing = iota
	Smooth3s
	Smooth5s
	Smooth10s
	Smooth30s
)

// String returns the smoothing name.
func (s Smoothing) String() string {
	switch s {
	case SmoothRaw:
		return "RAW"
	case Smooth3s:
		return "SMOOTH_3S"
	case Smooth5s:
		return "SMOOTH_5S"
	case Smooth10s:
		return "SMOOTH_10S"
	case Smooth30s:
		return "SMOOTH_30S"
	default:
		return "UNKNOWN"
	}
}

// window is the catalog averaging window of the smoothing.
func (s Smoothing) window() string {
	switch s {
	case Smooth3s:
		return "3s"
	case Smooth5s:
		return "5s"
	case Smooth10s:
		return "10s"
	case Smooth30s:
		return "30s"
	default:
		return ""
	}
}

// ParseSmoothing parses a smoothing name, case-insensitively.
func ParseSmoothing(s string) (Smoothing, bool) {
	for v := SmoothRaw; v <= Smooth30s; v++ {
		if strings.EqualFold(s, v.String()) {
			return v, true
		}
	}
	return SmoothRaw, false
}

// ZoneDisplay selects how training zones are shown.
type ZoneDisplay uint8

const (
	ZoneNone ZoneDisplay = iota
	ZoneColor
	ZoneNumber
	ZoneBoth
)

// String returns the zone display name.
func (z ZoneDisplay) String() string {
	switch z {
	case ZoneNone:
		return "NONE"
	case ZoneColor:
		return "COLOR"
	case ZoneNumber:
		return "NUMBER"
	case ZoneBoth:
		return "BOTH"
	default:
		return "UNKNOWN"
	}
}

// ParseZoneDisplay parses a zone display name, case-insensitively.
func ParseZoneDisplay(s string) (ZoneDisplay, bool) {
	for v := ZoneNone; v <= ZoneBoth; v++ {
		if strings.EqualFold(s, v.String()) {
			return v, true
		}
	}
	return ZoneNone, false
}

func (z ZoneDisplay) color() bool  { return z == ZoneColor || z == ZoneBoth }
func (z ZoneDisplay) number() bool { return z == ZoneNumber || z == ZoneBoth }

// FieldConfig configures one column of the triple field.
type FieldConfig struct {
	DataType  string
	Smoothing Smoothing
	Zones     ZoneDisplay
}

// StreamID is the data type the column subscribes to.
func (c FieldConfig) StreamID() string {
	info, ok := model.LookupDataType(c.DataType)
	if !ok || c.Smoothing == SmoothRaw {
		return c.DataType
	}
	return info.SmoothedID(c.Smoothing.window())
}

// DefaultTripleConfig is speed, heart rate and power, raw, without zones.
func DefaultTripleConfig() [3]FieldConfig {
	return [3]FieldConfig{
		{DataType: model.TypeSpeed},
		{DataType: model.TypeHeartRate},
		{DataType: model.TypePower},
	}
}

func fieldKey(i int, suffix string) string {
	return fmt.Sprintf("triple.field_%d%s", i+1, suffix)
}

// LoadTripleConfig reads the column configuration from prefs. Missing or
// unparsable values keep their defaults.
func LoadTripleConfig(prefs *persistence.Preferences) [3]FieldConfig {
	cfg := DefaultTripleConfig()
	for i := range cfg {
		cfg[i].DataType = prefs.String(fieldKey(i, ""), cfg[i].DataType)
		if s, ok := ParseSmoothing(prefs.String(fieldKey(i, "_variant"), "")); ok {
			cfg[i].Smoothing = s
		}
		if z, ok := ParseZoneDisplay(prefs.String(fieldKey(i, "_zone_display"), "")); ok {
			cfg[i].Zones = z
		}
	}
	return cfg
}

// SaveTripleConfig writes the column configuration to prefs.
func SaveTripleConfig(prefs *persistence.Preferences, cfg [3]FieldConfig) error {
	for i, c := range cfg {
		prefs.SetString(fieldKey(i, ""), c.DataType)
		prefs.SetString(fieldKey(i, "_variant"), strings.ToLower(c.Smoothing.String()))
		prefs.SetString(fieldKey(i, "_zone_display"), strings.ToLower(c.Zones.String()))
	}
	return prefs.Save()
}

// AvailableSmoothing lists the smoothing choices of a data type.
func AvailableSmoothing(dataType string) []Smoothing {
	out := []Smoothing{SmoothRaw}
	info, ok := model.LookupDataType(dataType)
	if !ok {
		return out
	}
	for _, w := range info.Windows() {
		for v := Smooth3s; v <= Smooth30s; v++ {
			if v.window() == w {
				out = append(out, v)
			}
		}
	}
	return out
}

// AvailableZoneDisplays lists the zone choices of a data type.
func AvailableZoneDisplays(dataType string) []ZoneDisplay {
	if info, ok := model.LookupDataType(dataType); ok && info.HasZones() {
		return []ZoneDisplay{ZoneNone, ZoneColor, ZoneNumber, ZoneBoth}
	}
	return []ZoneDisplay{ZoneNone}
}

// zoneColors are indexed by zone number.
var zoneColors = []string{
	1: "#808080",
	2: "#0080FF",
	3: "#00FF00",
	4: "#FFFF00",
	5: "#FF8000",
	6: "#FF0000",
	7: "#FF00FF",
}

// zoneBackground returns the background of a zone, or "" for no zone.
func zoneBackground(zone int) string {
	if zone <= 0 || zone >= len(zoneColors) {
		return ""
	}
	return zoneColors[zone]
}

// FormatValue renders value the way the host renders dataType. NaN renders
// as "--".
func FormatValue(dataType string, value float64) string {
	if math.IsNaN(value) {
		return "--"
	}
	info, _ := model.LookupDataType(dataType)
	switch info.Format {
	case model.FormatInteger:
		return fmt.Sprintf("%.0f", value)
	case model.FormatDistance:
		return fmt.Sprintf("%.2f", value/1000)
	case model.FormatTime:
		return formatClock(value)
	default:
		return fmt.Sprintf("%.1f", value)
	}
}

func formatClock(seconds float64) string {
	h := int(seconds / 3600)
	m := int(math.Mod(seconds, 3600) / 60)
	if h > 0 {
		return fmt.Sprintf("%d:%02d", h, m)
	}
	return fmt.Sprintf("%d:%02d", m, int(math.Mod(seconds, 60)))
}

// column is the live state of one field.
type column struct {
	config FieldConfig
	value  float64
	zone   int
}

func (c *column) observe(s model.StreamState) bool {
	st, ok := s.(model.StreamStreaming)
	if !ok {
		return false
	}
	info, known := model.LookupDataType(c.config.DataType)
	field := ""
	if known {
		field = info.Field
	}
	v, ok := fieldValue(st, field)
	if !ok {
		v = math.NaN()
	}
	c.value = v
	c.zone = 0
	if known && info.HasZones() {
		if z, ok := st.DataPoint.Value(info.ZoneField); ok {
			c.zone = int(z)
		}
	}
	return true
}

func (c *column) cell(profileKnown bool) extension.Cell {
	text := FormatValue(c.config.DataType, c.value)
	if c.config.Zones.number() && c.zone > 0 && !math.IsNaN(c.value) {
		text += fmt.Sprintf(" Z%d", c.zone)
	}
	cell := extension.Cell{
		Label:     model.Label(c.config.DataType),
		Text:      text,
		Color:     extension.ColorWhite,
		Alignment: extension.AlignCenter,
	}
	if c.config.Zones.color() && profileKnown {
		cell.Background = zoneBackground(c.zone)
	}
	return cell
}

// Triple shows three configurable data fields in equal-width columns.
type Triple struct {
	extension.BaseDataType
	sys    *karoo.System
	prefs  *persistence.Preferences
	logger *slog.Logger

	mu     sync.Mutex
	fields [3]FieldConfig
}

// NewTriple returns the triple data type configured from prefs.
func NewTriple(sys *karoo.System, prefs *persistence.Preferences, logger *slog.Logger) *Triple {
	if logger == nil {
		logger = slog.Default()
	}
	return &Triple{
		BaseDataType: extension.NewBaseDataType(ID, "triple"),
		sys:          sys,
		prefs:        prefs,
		logger:       logger,
		fields:       LoadTripleConfig(prefs),
	}
}

// Fields returns the column configuration.
func (t *Triple) Fields() [3]FieldConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fields
}

// SetFields sets and saves the column configuration. Views started
// afterwards use it.
func (t *Triple) SetFields(cfg [3]FieldConfig) error {
	t.mu.Lock()
	t.fields = cfg
	t.mu.Unlock()
	return SaveTripleConfig(t.prefs, cfg)
}

func (t *Triple) StartView(config model.ViewConfig, e *extension.ViewEmitter) {
	fields := t.Fields()
	cols := make([]*column, len(fields))
	ids := make([]string, 0, len(fields))
	for i, f := range fields {
		cols[i] = &column{config: f, value: math.NaN()}
		ids = append(ids, f.StreamID())
	}
	render := func(profileKnown bool) extension.View {
		v := extension.View{TextSize: config.TextSize}
		for _, c := range cols {
			v.Cells = append(v.Cells, c.cell(profileKnown))
		}
		return v
	}

	e.OnNext(model.UpdateGraphicConfig{ShowHeader: false})
	e.UpdateView(render(false))

	go func() {
		ctx := e.Context()
		profiles, err := karoo.Subscribe[model.UserProfile](ctx, t.sys, model.UserProfileParams{}, 1)
		if err != nil {
			e.OnError(err)
			return
		}
		defer profiles.Cancel()
		updates, err := follow(ctx, t.sys, ids...)
		if err != nil {
			e.OnError(err)
			return
		}

		profileKnown := false
		profileC := profiles.C()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-profileC:
				if !ok {
					profileC = nil
					continue
				}
				profileKnown = true
			case u := <-updates:
				if !cols[u.index].observe(u.state) {
					continue
				}
			}
			e.UpdateView(render(profileKnown))
		}
	}()
}
