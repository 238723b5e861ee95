package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/log"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output    string
	ConnID    string
	Target    string
	Package   string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Filter builds the log filter of the options.
func (o FilterOptions) Filter() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		Target:       o.Target,
		Package:      o.Package,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := ParseLayerFlag(o.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirectionFlag(o.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	return filter, nil
}

// RunFilter copies the events of path that match opts to opts.Output and
// reports the count on w.
func RunFilter(path string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, opts.Output)
	return nil
}
