package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jpweytjens/karoo-ext/pkg/log"
)

const (
	// LengthPrefixSize is the size of the big-endian length prefix.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize bounds a single frame payload (64 KiB).
	DefaultMaxMessageSize = 65536

	// MaxLogFrameDataSize bounds the frame bytes copied into a trace event.
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrMessageEmpty    = errors.New("message is empty")
	ErrFrameTruncated  = errors.New("frame truncated")
)

// frameEvent builds the TRANSPORT trace event for one frame payload.
func frameEvent(payload []byte, dir log.Direction) log.Event {
	data, truncated := payload, false
	if len(data) > MaxLogFrameDataSize {
		data, truncated = data[:MaxLogFrameDataSize], true
	}
	return log.Event{
		Direction: dir,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      FrameSize(len(payload)),
			Data:      data,
			Truncated: truncated,
		},
	}
}

// FrameWriter writes length-prefixed frames. It is safe for concurrent use.
type FrameWriter struct {
	mu     sync.Mutex
	w      io.Writer
	max    uint32
	tracer log.Tracer
}

// NewFrameWriter returns a writer with DefaultMaxMessageSize.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, max: DefaultMaxMessageSize}
}

// WriteFrame writes the length prefix and payload as one unit.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if uint32(len(data)) > fw.max {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), fw.max)
	}

	buf := make([]byte, LengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[LengthPrefixSize:], data)

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	fw.tracer.Emit(frameEvent(data, log.DirectionOut))
	return nil
}

// FrameReader reads length-prefixed frames. It is not safe for concurrent
// use; a connection has a single read loop.
type FrameReader struct {
	r      io.Reader
	max    uint32
	prefix [LengthPrefixSize]byte
	tracer log.Tracer
}

// NewFrameReader returns a reader with DefaultMaxMessageSize.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, max: DefaultMaxMessageSize}
}

// ReadFrame returns the next frame payload. io.EOF is returned unwrapped
// when the stream ends cleanly between frames.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.prefix[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint32(fr.prefix[:])
	if n == 0 {
		return nil, ErrMessageEmpty
	}
	if n > fr.max {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, fr.max)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}

	fr.tracer.Emit(frameEvent(payload, log.DirectionIn))
	return payload, nil
}

// Framer reads and writes frames over one stream.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer returns a framer limited to maxSize bytes per payload; zero
// selects DefaultMaxMessageSize.
func NewFramer(rw io.ReadWriter, maxSize uint32) *Framer {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	f := &Framer{FrameReader: NewFrameReader(rw), FrameWriter: NewFrameWriter(rw)}
	f.FrameReader.max = maxSize
	f.FrameWriter.max = maxSize
	return f
}

// SetTracer records frames in both directions. Call before the framer is
// shared between goroutines.
func (f *Framer) SetTracer(t log.Tracer) {
	f.FrameReader.tracer = t
	f.FrameWriter.tracer = t
}

// FrameSize returns the on-wire size of a payload.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}
