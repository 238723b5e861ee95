package sampleext

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpweytjens/karoo-ext/pkg/karoo"
	"github.com/jpweytjens/karoo-ext/pkg/model"
)

// MarkerAlertID is the id of the in-ride alert shown at each milestone.
const MarkerAlertID = "distance-marker"

// DistanceMarker converts distances in meters to whole units of the rider's
// preferred system and reports each new unit once.
type DistanceMarker struct {
	metersPerUnit float64
	last          int
	started       bool
}

// NewDistanceMarker returns a marker for profile's distance unit.
func NewDistanceMarker(profile model.UserProfile) *DistanceMarker {
	return &DistanceMarker{metersPerUnit: profile.MetersPerUnit()}
}

// Observe returns the new unit count when meters crosses into a new whole
// unit. The first observation only sets the baseline.
func (m *DistanceMarker) Observe(meters float64) (int, bool) {
	unit := int(meters / m.metersPerUnit)
	if !m.started {
		m.started, m.last = true, unit
		return 0, false
	}
	if unit == m.last {
		return 0, false
	}
	m.last = unit
	return unit, true
}

// MarkerAlert is the alert shown when unit is reached.
func MarkerAlert(unit int, profile model.UserProfile) model.InRideAlert {
	name := "km"
	if profile.PreferredUnit.Distance == model.UnitImperial {
		name = "mi"
	}
	return model.InRideAlert{
		ID:              MarkerAlertID,
		Icon:            "ic_sample",
		Title:           "Distance marker",
		Detail:          ptr(fmt.Sprintf("%d %s ridden", unit, name)),
		AutoDismissMs:   ptr(int64(10_000)),
		BackgroundColor: "#43A047",
		TextColor:       "#C8E6C9",
	}
}

// RunDistanceMarkers waits for the rider profile, then dispatches an alert
// and a lap mark at every new whole km or mi until ctx is done.
func RunDistanceMarkers(ctx context.Context, sys *karoo.System, logger *slog.Logger) error {
	profiles, err := karoo.Subscribe[model.UserProfile](ctx, sys, model.UserProfileParams{}, 1)
	if err != nil {
		return err
	}
	var profile model.UserProfile
	select {
	case <-ctx.Done():
		profiles.Cancel()
		return nil
	case p, ok := <-profiles.C():
		profiles.Cancel()
		if !ok {
			return profiles.Err()
		}
		profile = p
	}

	distance, err := karoo.StreamData(ctx, sys, model.TypeDistance)
	if err != nil {
		return err
	}
	defer distance.Cancel()

	marker := NewDistanceMarker(profile)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-distance.C():
			if !ok {
				return distance.Err()
			}
			s, ok := ev.State.(model.StreamStreaming)
			if !ok {
				continue
			}
			meters, ok := s.DataPoint.SingleValue()
			if !ok {
				continue
			}
			if unit, ok := marker.Observe(meters); ok {
				logger.Info("distance marker", "unit", unit)
				sys.Dispatch(MarkerAlert(unit, profile))
				sys.Dispatch(model.MarkLap{})
			}
		}
	}
}
