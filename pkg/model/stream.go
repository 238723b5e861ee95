package model

import (
	"bytes"
	"encoding/json"

	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// StreamState is the state of a data type stream.
type StreamState interface {
	wire.Variant
	isStreamState()
}

// StreamSearching means the source is looking for a sensor.
type StreamSearching struct{}

// StreamIdle means the stream has no current value.
type StreamIdle struct{}

// StreamNotAvailable means the data type cannot be produced right now.
type StreamNotAvailable struct{}

// StreamStreaming carries the current data point.
type StreamStreaming struct {
	DataPoint DataPoint `json:"dataPoint"`
}

func (StreamSearching) VariantTag() string    { return tagPrefix + "StreamState.Searching" }
func (StreamIdle) VariantTag() string         { return tagPrefix + "StreamState.Idle" }
func (StreamNotAvailable) VariantTag() string { return tagPrefix + "StreamState.NotAvailable" }
func (StreamStreaming) VariantTag() string    { return tagPrefix + "StreamState.Streaming" }

func (StreamSearching) isStreamState()    {}
func (StreamIdle) isStreamState()         {}
func (StreamNotAvailable) isStreamState() {}
func (StreamStreaming) isStreamState()    {}

// DataPoint is one sample of a data type, keyed by field id.
type DataPoint struct {
	DataTypeID string             `json:"dataTypeId"`
	Values     map[string]float64 `json:"values"`
	SourceID   string             `json:"sourceId,omitempty"`
}

// SingleValue returns FieldSingle, or the only value when the point has
// exactly one field.
func (d DataPoint) SingleValue() (float64, bool) {
	if v, ok := d.Values[FieldSingle]; ok {
		return v, true
	}
	if len(d.Values) == 1 {
		for _, v := range d.Values {
			return v, true
		}
	}
	return 0, false
}

// Value returns the value of one field.
func (d DataPoint) Value(field string) (float64, bool) {
	v, ok := d.Values[field]
	return v, ok
}

// Streaming wraps a single value for dataTypeID as a StreamStreaming state.
func Streaming(dataTypeID string, value float64) StreamStreaming {
	return StreamStreaming{DataPoint: DataPoint{
		DataTypeID: dataTypeID,
		Values:     map[string]float64{FieldSingle: value},
	}}
}

type onStreamStateJSON struct {
	State json.RawMessage `json:"state"`
}

// MarshalJSON encodes State with its variant tag.
func (o OnStreamState) MarshalJSON() ([]byte, error) {
	state := o.State
	if state == nil {
		state = StreamIdle{}
	}
	raw, err := wire.MarshalVariant(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(onStreamStateJSON{State: raw})
}

// UnmarshalJSON decodes State by its variant tag. A missing or null state
// decodes as StreamIdle.
func (o *OnStreamState) UnmarshalJSON(data []byte) error {
	var raw onStreamStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.State) == 0 || bytes.Equal(raw.State, []byte("null")) {
		o.State = StreamIdle{}
		return nil
	}
	state, err := wire.UnmarshalVariant[StreamState](raw.State)
	if err != nil {
		return err
	}
	o.State = state
	return nil
}
