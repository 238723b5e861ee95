package barberfish

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/karoo"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/persistence"
)

// Preference keys and defaults of the randonneur speed range, in km/h.
const (
	KeyMinSpeed     = "randonneur.min_speed"
	KeyMaxSpeed     = "randonneur.max_speed"
	DefaultMinSpeed = 15.0
	DefaultMaxSpeed = 30.0
)

// RandonneurState holds the inputs of the average speed.
type RandonneurState struct {
	// Distance in meters.
	Distance float64

	// RideTime in seconds, including paused time.
	RideTime float64
}

// AverageSpeed returns distance over ride time in km/h, or NaN before any
// ride time has elapsed.
func (s RandonneurState) AverageSpeed() float64 {
	if s.RideTime <= 0 {
		return math.NaN()
	}
	return s.Distance / s.RideTime * 3.6
}

// Format renders the state as "25 km/h avg (12.3km in 1h 5m)".
func (s RandonneurState) Format() string {
	return fmt.Sprintf("%s km/h avg (%.1fkm in %s)",
		formatWhole(s.AverageSpeed()), s.Distance/1000, formatDuration(s.RideTime))
}

func formatWhole(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%d", int(v))
}

func formatDuration(seconds float64) string {
	h := int(seconds / 3600)
	m := int(math.Mod(seconds, 3600) / 60)
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// Randonneur is the average speed including paused time, colored red when
// outside the configured range.
type Randonneur struct {
	extension.BaseDataType
	sys    *karoo.System
	prefs  *persistence.Preferences
	logger *slog.Logger

	mu       sync.Mutex
	min, max float64
}

// NewRandonneur returns the randonneur data type with thresholds loaded
// from prefs.
func NewRandonneur(sys *karoo.System, prefs *persistence.Preferences, logger *slog.Logger) *Randonneur {
	if logger == nil {
		logger = slog.Default()
	}
	return &Randonneur{
		BaseDataType: extension.NewBaseDataType(ID, "randonneur"),
		sys:          sys,
		prefs:        prefs,
		logger:       logger,
		min:          prefs.Float(KeyMinSpeed, DefaultMinSpeed),
		max:          prefs.Float(KeyMaxSpeed, DefaultMaxSpeed),
	}
}

// Thresholds returns the speed range in km/h.
func (r *Randonneur) Thresholds() (minSpeed, maxSpeed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.min, r.max
}

// SetThresholds sets and saves the speed range.
func (r *Randonneur) SetThresholds(minSpeed, maxSpeed float64) error {
	if minSpeed > maxSpeed {
		return fmt.Errorf("min speed %.1f above max speed %.1f", minSpeed, maxSpeed)
	}
	r.mu.Lock()
	r.min, r.max = minSpeed, maxSpeed
	r.mu.Unlock()

	r.prefs.SetFloat(KeyMinSpeed, minSpeed)
	r.prefs.SetFloat(KeyMaxSpeed, maxSpeed)
	return r.prefs.Save()
}

// Color is white while the speed is unknown or within range, red outside.
func (r *Randonneur) Color(speed float64) string {
	minSpeed, maxSpeed := r.Thresholds()
	if math.IsNaN(speed) || (speed >= minSpeed && speed <= maxSpeed) {
		return extension.ColorWhite
	}
	return extension.ColorRed
}

// Render returns the view of s.
func (r *Randonneur) Render(s RandonneurState, textSize int) extension.View {
	return extension.View{
		TextSize: textSize,
		Cells: []extension.Cell{{
			Text:  s.Format(),
			Color: r.Color(s.AverageSpeed()),
		}},
	}
}

func (r *Randonneur) StartStream(e *extension.Emitter[model.StreamState]) {
	e.OnNext(model.StreamSearching{})
	r.run(e.Context(), e.OnError, func(s RandonneurState) {
		if speed := s.AverageSpeed(); !math.IsNaN(speed) {
			e.OnNext(model.Streaming(r.DataTypeID(), speed))
		}
	})
}

func (r *Randonneur) StartView(config model.ViewConfig, e *extension.ViewEmitter) {
	e.OnNext(model.UpdateGraphicConfig{ShowHeader: true})
	e.UpdateView(r.Render(RandonneurState{}, config.TextSize))
	r.run(e.Context(), e.OnError, func(s RandonneurState) {
		e.UpdateView(r.Render(s, config.TextSize))
	})
}

// run follows distance and ride time and calls update on every change.
func (r *Randonneur) run(ctx context.Context, onError func(error), update func(RandonneurState)) {
	go func() {
		updates, err := follow(ctx, r.sys, model.TypeDistance, model.TypeRideTime)
		if err != nil {
			onError(err)
			return
		}
		var s RandonneurState
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-updates:
				switch u.index {
				case 0:
					v, ok := fieldValue(u.state, model.FieldDistance)
					if !ok {
						continue
					}
					s.Distance = v
				case 1:
					v, ok := fieldValue(u.state, model.FieldRideTime)
					if !ok {
						continue
					}
					s.RideTime = v
				}
				update(s)
			}
		}
	}()
}
