package sampleext

import (
	"log/slog"

	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/karoo"
	"github.com/jpweytjens/karoo-ext/pkg/model"
)

// PowerHR streams heart rate times power divided by 100. It is not
// available unless both source streams are streaming.
type PowerHR struct {
	extension.BaseDataType
	sys    *karoo.System
	logger *slog.Logger
}

// NewPowerHR returns the power-hr data type.
func NewPowerHR(sys *karoo.System, logger *slog.Logger) *PowerHR {
	if logger == nil {
		logger = slog.Default()
	}
	return &PowerHR{
		BaseDataType: extension.NewBaseDataType(ID, "power-hr"),
		sys:          sys,
		logger:       logger,
	}
}

// PowerHRValue combines the latest heart rate and power states.
func PowerHRValue(dataTypeID string, hr, power model.StreamState) model.StreamState {
	h, ok := hr.(model.StreamStreaming)
	if !ok {
		return model.StreamNotAvailable{}
	}
	p, ok := power.(model.StreamStreaming)
	if !ok {
		return model.StreamNotAvailable{}
	}
	hv, ok := h.DataPoint.SingleValue()
	if !ok {
		return model.StreamNotAvailable{}
	}
	pv, ok := p.DataPoint.SingleValue()
	if !ok {
		return model.StreamNotAvailable{}
	}
	return model.Streaming(dataTypeID, hv*pv/100)
}

func (d *PowerHR) StartStream(e *extension.Emitter[model.StreamState]) {
	go d.stream(e)
}

func (d *PowerHR) stream(e *extension.Emitter[model.StreamState]) {
	ctx := e.Context()
	hrSub, err := karoo.StreamData(ctx, d.sys, model.TypeHeartRate)
	if err != nil {
		e.OnError(err)
		return
	}
	defer hrSub.Cancel()
	powerSub, err := karoo.StreamData(ctx, d.sys, model.TypePower)
	if err != nil {
		e.OnError(err)
		return
	}
	defer powerSub.Cancel()
	d.logger.Debug("power-hr stream started", "emitter", e.ID())

	var hr, power model.StreamState = model.StreamSearching{}, model.StreamSearching{}
	hrC, powerC := hrSub.C(), powerSub.C()
	for hrC != nil || powerC != nil {
		select {
		case <-ctx.Done():
			d.logger.Debug("power-hr stream stopped", "emitter", e.ID())
			return
		case ev, ok := <-hrC:
			if !ok {
				hrC = nil
				continue
			}
			hr = ev.State
		case ev, ok := <-powerC:
			if !ok {
				powerC = nil
				continue
			}
			power = ev.State
		}
		e.OnNext(PowerHRValue(d.DataTypeID(), hr, power))
	}
}
