package sampleext

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/model"
)

// StaticHRSource is a simulated heart rate sensor that always reports the
// same rate.
type StaticHRSource struct {
	extension string
	hr        int
}

// NewStaticHRSource returns a sensor reporting hr beats per minute.
func NewStaticHRSource(extension string, hr int) *StaticHRSource {
	return &StaticHRSource{extension: extension, hr: hr}
}

// StaticHRSourceFromUID parses a uid produced by Device.
func StaticHRSourceFromUID(extension, uid string) (*StaticHRSource, bool) {
	prefix := extension + "-hr-"
	if !strings.HasPrefix(uid, prefix) {
		return nil, false
	}
	hr, err := strconv.Atoi(strings.TrimPrefix(uid, prefix))
	if err != nil || hr <= 0 {
		return nil, false
	}
	return NewStaticHRSource(extension, hr), true
}

// UID is unique per extension and rate.
func (s *StaticHRSource) UID() string {
	return fmt.Sprintf("%s-hr-%d", s.extension, s.hr)
}

// Device describes the sensor for scan results.
func (s *StaticHRSource) Device() model.Device {
	return model.Device{
		Extension:   s.extension,
		UID:         s.UID(),
		DataTypes:   []string{model.TypeHeartRate},
		DisplayName: fmt.Sprintf("Static HR %d", s.hr),
	}
}

// Connect reports the sensor as connected and then emits a heart rate data
// point every interval until the emitter is cancelled.
func (s *StaticHRSource) Connect(e *extension.Emitter[model.DeviceEvent], interval time.Duration) {
	e.OnNext(model.OnConnectionStatus{Status: model.ConnectionConnected})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.Context().Done():
			return
		case <-ticker.C:
			e.OnNext(model.OnDataPoint{DataPoint: model.DataPoint{
				DataTypeID: model.TypeHeartRate,
				Values:     map[string]float64{model.FieldHeartRate: float64(s.hr)},
				SourceID:   s.UID(),
			}})
		}
	}
}
