// Package commands implements the karoo-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

// match reports whether e passes every set criterion.
func (f ViewFilter) match(e log.Event) bool {
	switch {
	case f.Layer != nil && e.Layer != *f.Layer:
		return false
	case f.Direction != nil && e.Direction != *f.Direction:
		return false
	case f.Category != nil && e.Category != *f.Category:
		return false
	}
	return true
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] SIDE DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Message != nil:
		typeLabel = event.Message.Label()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.ControlMsg != nil:
		typeLabel = event.ControlMsg.Type.String()
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	layerStr := event.Layer.String()
	if event.Category == log.CategoryControl {
		layerStr = "CTRL"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-9s %-3s %s %s\n",
		ts, connID, event.Side.String(), event.Direction.String(), layerStr, typeLabel)
	if event.Package != "" {
		fmt.Fprintf(w, "  Package: %s\n", event.Package)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.ControlMsg != nil:
		if event.ControlMsg.Sequence != 0 {
			fmt.Fprintf(w, "  Sequence: %d\n", event.ControlMsg.Sequence)
		}
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatFrameDetails writes frame size and truncation.
func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// formatMessageDetails writes the RPC message fields that are set.
func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  Kind: %s\n", msg.Kind.String())
	if msg.MessageID != 0 {
		fmt.Fprintf(w, "  MessageID: %d\n", msg.MessageID)
	}
	if msg.Target != "" {
		fmt.Fprintf(w, "  Target: %s\n", msg.Target)
	}
	if msg.HandlerID != "" {
		fmt.Fprintf(w, "  Handler: %s\n", msg.HandlerID)
	}
	if msg.Status != nil {
		fmt.Fprintf(w, "  Status: %s (%d)\n", msg.Status.String(), *msg.Status)
	}
	if msg.Tag != "" {
		fmt.Fprintf(w, "  Tag: %s\n", msg.Tag)
	}
	if msg.Latency != nil {
		fmt.Fprintf(w, "  Latency: %s\n", formatDuration(*msg.Latency))
	}
}

// formatStateChangeDetails writes the entity and its transition.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s", sc.Entity.String())
	if sc.ID != "" {
		fmt.Fprintf(w, " %s", sc.ID)
	}
	fmt.Fprintln(w)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes the error and where it happened.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "bridge":
		return log.LayerBridge, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or bridge)", s)
	}
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
	}
}

// RunView writes every event of the trace at path that matches filter.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if filter.match(event) {
			formatEvent(output, event)
		}
	}
	return nil
}
