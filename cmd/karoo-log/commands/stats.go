package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	EventsBySide      map[log.Side]int
	Operations        map[string]int
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Package    string
	RemoteAddr string

	// MaxLatency is the slowest call round trip seen on the link.
	MaxLatency time.Duration
}

// Collect reads every event of path.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		EventsBySide:      make(map[log.Side]int),
		Operations:        make(map[string]int),
		Connections:       make(map[string]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++
		stats.EventsBySide[event.Side]++
		if event.Message != nil {
			stats.Operations[event.Message.Label()]++
		}

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		conn, ok := stats.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if event.Package != "" && conn.Package == "" {
			conn.Package = event.Package
		}
		if event.RemoteAddr != "" && conn.RemoteAddr == "" {
			conn.RemoteAddr = event.RemoteAddr
		}
		if event.Message != nil && event.Message.Latency != nil && *event.Message.Latency > conn.MaxLatency {
			conn.MaxLatency = *event.Message.Latency
		}

		if event.Error != nil {
			stats.Errors++
		}
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

// printStats writes the totals, then one block per connection.
func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Karoo Extension Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerBridge} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Side:")
	for _, side := range []log.Side{log.SideExtension, log.SideHost} {
		if count := stats.EventsBySide[side]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", side.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Operations) > 0 {
		ops := make([]string, 0, len(stats.Operations))
		for op := range stats.Operations {
			ops = append(ops, op)
		}
		sort.Slice(ops, func(i, j int) bool {
			if stats.Operations[ops[i]] != stats.Operations[ops[j]] {
				return stats.Operations[ops[i]] > stats.Operations[ops[j]]
			}
			return ops[i] < ops[j]
		})
		fmt.Fprintln(w, "Operations:")
		for _, op := range ops {
			fmt.Fprintf(w, "  %-22s %d\n", op+":", stats.Operations[op])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.Package != "" {
				fmt.Fprintf(w, "           Package: %s\n", c.stats.Package)
			}
			if c.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Remote: %s\n", c.stats.RemoteAddr)
			}
			if c.stats.MaxLatency > 0 {
				fmt.Fprintf(w, "           Max latency: %s\n", formatDuration(c.stats.MaxLatency))
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
