package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jpweytjens/karoo-ext/pkg/log"
)

// exportedEvent is the JSON form of an event, with enum names spelled out.
type exportedEvent struct {
	Timestamp    string `json:"timestamp"`
	ConnectionID string `json:"connectionId"`
	Side         string `json:"side"`
	Direction    string `json:"direction"`
	Layer        string `json:"layer"`
	Category     string `json:"category"`
	RemoteAddr   string `json:"remoteAddr,omitempty"`
	Package      string `json:"package,omitempty"`
	Type         string `json:"type"`
	Target       string `json:"target,omitempty"`

	Frame       *log.FrameEvent       `json:"frame,omitempty"`
	Message     *exportedMessage      `json:"message,omitempty"`
	StateChange *log.StateChangeEvent `json:"stateChange,omitempty"`
	ControlMsg  *log.ControlMsgEvent  `json:"control,omitempty"`
	Error       *log.ErrorEventData   `json:"error,omitempty"`
}

type exportedMessage struct {
	Kind      string `json:"kind"`
	MessageID uint32 `json:"messageId,omitempty"`
	Op        string `json:"op"`
	Tag       string `json:"tag,omitempty"`
	LatencyUs int64  `json:"latencyUs,omitempty"`
}

// export converts an event to its JSON form.
func export(e log.Event) exportedEvent {
	out := exportedEvent{
		Timestamp:    e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		ConnectionID: e.ConnectionID,
		Side:         e.Side.String(),
		Direction:    e.Direction.String(),
		Layer:        e.Layer.String(),
		Category:     e.Category.String(),
		RemoteAddr:   e.RemoteAddr,
		Package:      e.Package,
		Type:         eventType(e),
		Target:       e.Target(),
		Frame:        e.Frame,
		StateChange:  e.StateChange,
		ControlMsg:   e.ControlMsg,
		Error:        e.Error,
	}
	if m := e.Message; m != nil {
		out.Message = &exportedMessage{
			Kind:      m.Kind.String(),
			MessageID: m.MessageID,
			Op:        m.Label(),
			Tag:       m.Tag,
		}
		if m.Latency != nil {
			out.Message.LatencyUs = m.Latency.Microseconds()
		}
	}
	return out
}

// eventType names the payload of the event.
func eventType(e log.Event) string {
	switch {
	case e.Frame != nil:
		return "frame"
	case e.Message != nil:
		return e.Message.Label()
	case e.StateChange != nil:
		return "state"
	case e.ControlMsg != nil:
		return e.ControlMsg.Type.String()
	case e.Error != nil:
		return "error"
	}
	return "unknown"
}

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// exportJSONL writes one JSON object per line.
func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(export(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

// exportCSV writes a header row and one row per event.
func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "connection_id", "side", "direction", "layer", "category", "package", "type", "target", "message_id"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		msgID := ""
		if event.Message != nil && event.Message.MessageID != 0 {
			msgID = fmt.Sprintf("%d", event.Message.MessageID)
		}
		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.ConnectionID,
			event.Side.String(),
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.Package,
			eventType(event),
			event.Target(),
			msgID,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
