package extension

import (
	"github.com/jpweytjens/karoo-ext/pkg/model"
)

// DataType is a data field the extension provides. StartStream and
// StartView are called on the link's dispatch goroutine and must not block;
// long-running work belongs in goroutines bound to the emitter's context.
type DataType interface {
	// TypeID is the id within the extension, as listed in the manifest.
	TypeID() string

	// StartStream produces values for the field.
	StartStream(e *Emitter[model.StreamState])

	// StartView renders the field for a graphical slot.
	StartView(config model.ViewConfig, e *ViewEmitter)
}

// BaseDataType carries the ids of a data type and provides no-op starts.
// Embed it and override what the data type supports.
type BaseDataType struct {
	Extension string
	ID        string
}

// NewBaseDataType returns a base for typeID in extension.
func NewBaseDataType(extension, typeID string) BaseDataType {
	return BaseDataType{Extension: extension, ID: typeID}
}

func (d BaseDataType) TypeID() string { return d.ID }

// DataTypeID is the host-wide id of the data type.
func (d BaseDataType) DataTypeID() string {
	return model.DataTypeID(d.Extension, d.ID)
}

func (BaseDataType) StartStream(*Emitter[model.StreamState]) {}

func (BaseDataType) StartView(model.ViewConfig, *ViewEmitter) {}

// DeviceScanner is implemented by extensions that provide sensors.
type DeviceScanner interface {
	// StartScan emits devices as they are found.
	StartScan(e *Emitter[model.Device])

	// ConnectDevice connects to a device emitted by StartScan and reports
	// its events.
	ConnectDevice(uid string, e *Emitter[model.DeviceEvent])
}

var _ DataType = BaseDataType{}
