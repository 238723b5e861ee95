package model

import (
	"encoding/json"

	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// Size is an ordered pair of integers.
type Size struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

// ViewConfig describes the slot a graphical data type is rendered into.
type ViewConfig struct {
	GridSize Size `json:"gridSize"`
	ViewSize Size `json:"viewSize"`
	TextSize int  `json:"textSize"`
	Preview  bool `json:"preview,omitempty"`
}

// ViewEvent configures how the host frames a view.
type ViewEvent interface {
	wire.Variant
	isViewEvent()
}

// UpdateGraphicConfig switches the view to graphical mode.
type UpdateGraphicConfig struct {
	ShowHeader       bool    `json:"showHeader"`
	FormatDataTypeID *string `json:"formatDataTypeId,omitempty"`
}

// UpdateNumericConfig switches the view to numeric mode, formatted like
// FormatDataTypeID.
type UpdateNumericConfig struct {
	FormatDataTypeID string `json:"formatDataTypeId"`
}

func (UpdateGraphicConfig) VariantTag() string { return tagPrefix + "UpdateGraphicConfig" }
func (UpdateNumericConfig) VariantTag() string { return tagPrefix + "UpdateNumericConfig" }

func (UpdateGraphicConfig) isViewEvent() {}
func (UpdateNumericConfig) isViewEvent() {}

// UnmarshalJSON defaults ShowHeader to true when absent.
func (u *UpdateGraphicConfig) UnmarshalJSON(data []byte) error {
	type alias UpdateGraphicConfig
	v := alias{ShowHeader: true}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*u = UpdateGraphicConfig(v)
	return nil
}
