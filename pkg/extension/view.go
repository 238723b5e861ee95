package extension

import (
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// Colors used by the bundled views.
const (
	ColorWhite  = "#FFFFFF"
	ColorBlack  = "#000000"
	ColorRed    = "#E53935"
	ColorOrange = "#FB8C00"
	ColorYellow = "#FDD835"
	ColorGreen  = "#43A047"
	ColorBlue   = "#1E88E5"
	ColorPurple = "#8E24AA"
	ColorGrey   = "#9E9E9E"
)

// Alignment of a cell's text.
type Alignment string

const (
	AlignLeft   Alignment = "LEFT"
	AlignCenter Alignment = "CENTER"
	AlignRight  Alignment = "RIGHT"
)

// Cell is one text element of a View. Color is the text color.
type Cell struct {
	Label      string    `json:"label,omitempty"`
	Text       string    `json:"text"`
	Color      string    `json:"color,omitempty"`
	Background string    `json:"background,omitempty"`
	Alignment  Alignment `json:"alignment,omitempty"`
}

// View is a rendered data field: cells laid out left to right over an
// optional background.
type View struct {
	Background string `json:"background,omitempty"`
	TextSize   int    `json:"textSize,omitempty"`
	Cells      []Cell `json:"cells"`
}

// DecodeView reads a view sent with ViewEmitter.UpdateView.
func DecodeView(b wire.Bundle) (View, bool) {
	raw, ok := b[wire.KeyView]
	if !ok {
		return View{}, false
	}
	v, err := wire.DecodeJSON[View]([]byte(raw))
	if err != nil {
		return View{}, false
	}
	return v, true
}

// Text returns the cell texts joined by " | ", for logs and consoles.
func (v View) Text() string {
	s := ""
	for i, c := range v.Cells {
		if i > 0 {
			s += " | "
		}
		if c.Label != "" {
			s += c.Label + " "
		}
		s += c.Text
	}
	return s
}
