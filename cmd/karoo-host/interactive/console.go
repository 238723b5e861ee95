// Package interactive provides the interactive console of karoo-host.
package interactive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/jpweytjens/karoo-ext/internal/hostsim"
	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
)

// Options configures how the console reaches extensions.
type Options struct {
	// Peer configures links to extensions driven with "ext".
	Peer transport.Config

	Logger *slog.Logger
}

// Console reads commands and applies them to a simulated host.
type Console struct {
	rl   *readline.Instance
	out  io.Writer
	host *hostsim.Host
	opts Options

	lap     int
	lapMark time.Time
	driver  *hostsim.ExtensionDriver
}

// New creates the console. Attach must be called before Run.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "karoo> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that does not interfere with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Attach sets the host the console drives.
func (c *Console) Attach(h *hostsim.Host, opts Options) {
	c.host = h
	c.opts = opts
	c.lapMark = time.Now()
}

// Run reads commands until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer c.closeDriver()

	c.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
		if c.exec(ctx, line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// exec runs one command line and reports whether the console should quit.
func (c *Console) exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "ride":
		c.cmdRide(args)
	case "lap":
		c.cmdLap()
	case "stream", "s":
		c.cmdStream(args)
	case "profile":
		c.cmdProfile(args)
	case "effects":
		c.cmdEffects()
	case "consumers", "c":
		c.cmdConsumers()
	case "drop":
		fmt.Fprintf(c.out, "Dropped %d link(s)\n", c.host.Drop())
	case "status":
		c.cmdStatus()
	case "ext":
		c.cmdExt(ctx, args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Karoo Host Commands:
  Ride:
    ride idle|record|pause|autopause - Set the ride state
    lap                              - Mark a lap
    stream <type> <value>            - Stream a value (type: power, TYPE_POWER_ID, ...)
    stream <type> searching|idle|na  - Set a stream state
    profile metric|imperial          - Switch the rider's units

  Inspection:
    effects                          - List dispatched effects
    consumers                        - List registered consumers
    status                           - Show host status
    drop                             - Drop every extension link

  Extensions:
    ext <addr> <id>                  - Drive the extension listening on addr
    ext stream|view <type>           - Start a stream or view of the driven extension
    ext scan                         - Scan for devices
    ext connect <uid>                - Connect a device
    ext stop <id>                    - Stop a started stream, view, scan or device
    ext list                         - List what was started
    ext close                        - Stop driving the extension

  General:
    help                             - Show this help
    quit                             - Exit`)
}

func (c *Console) cmdRide(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: ride idle|record|pause|autopause")
		return
	}
	s, ok := ParseRideState(args[0])
	if !ok {
		fmt.Fprintf(c.out, "Unknown ride state: %s\n", args[0])
		return
	}
	c.host.PublishRideState(s)
	fmt.Fprintf(c.out, "Ride state: %s\n", args[0])
}

func (c *Console) cmdLap() {
	now := time.Now()
	c.lap++
	c.host.PublishLap(model.Lap{
		Number:     c.lap,
		DurationMs: now.Sub(c.lapMark).Milliseconds(),
		Trigger:    "MANUAL",
	})
	c.lapMark = now
	fmt.Fprintf(c.out, "Lap %d\n", c.lap)
}

func (c *Console) cmdStream(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: stream <type> <value>|searching|idle|na")
		return
	}
	id := DataTypeID(args[0])
	switch strings.ToLower(args[1]) {
	case "searching":
		c.host.PublishStream(id, model.StreamSearching{})
	case "idle":
		c.host.PublishStream(id, model.StreamIdle{})
	case "na":
		c.host.PublishStream(id, model.StreamNotAvailable{})
	default:
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(c.out, "Invalid value: %s\n", args[1])
			return
		}
		if info, ok := model.LookupDataType(id); ok {
			c.host.PublishValues(id, map[string]float64{info.Field: v})
		} else {
			c.host.PublishValue(id, v)
		}
	}
	fmt.Fprintf(c.out, "%s = %s\n", id, args[1])
}

func (c *Console) cmdProfile(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: profile metric|imperial")
		return
	}
	var unit model.UnitType
	switch strings.ToLower(args[0]) {
	case "metric":
		unit = model.UnitMetric
	case "imperial":
		unit = model.UnitImperial
	default:
		fmt.Fprintf(c.out, "Unknown units: %s\n", args[0])
		return
	}
	profile := WithUnits(hostsim.DefaultConfig().Profile, unit)
	c.host.PublishUserProfile(profile)
	fmt.Fprintf(c.out, "Profile units: %s\n", unit)
}

func (c *Console) cmdEffects() {
	effects := c.host.Effects()
	if len(effects) == 0 {
		fmt.Fprintln(c.out, "No effects")
		return
	}
	for i, e := range effects {
		fmt.Fprintf(c.out, "  %3d  %s\n", i+1, DescribeEffect(e))
	}
}

func (c *Console) cmdConsumers() {
	consumers := c.host.Consumers()
	if len(consumers) == 0 {
		fmt.Fprintln(c.out, "No consumers")
		return
	}
	for _, ci := range consumers {
		fmt.Fprintf(c.out, "  %-36s  %s\n", ci.ID, ci.Topic)
	}
}

func (c *Console) cmdStatus() {
	info, _ := c.host.Info()
	fmt.Fprintf(c.out, "Serial:    %s\n", info.Serial)
	fmt.Fprintf(c.out, "Hardware:  %s\n", info.HardwareType)
	fmt.Fprintf(c.out, "Links:     %s\n", strings.Join(c.host.Links(), ", "))
	fmt.Fprintf(c.out, "Consumers: %d\n", len(c.host.Consumers()))
	if c.driver != nil {
		fmt.Fprintf(c.out, "Driving:   %d active\n", len(c.driver.Active()))
	}
}

func (c *Console) cmdExt(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "Usage: ext <addr> <id> | ext stream|view|scan|connect|stop|list|close")
		return
	}

	switch strings.ToLower(args[0]) {
	case "stream", "view", "connect", "stop":
		if len(args) != 2 {
			fmt.Fprintf(c.out, "Usage: ext %s <arg>\n", args[0])
			return
		}
	}

	sub := strings.ToLower(args[0])
	if len(args) == 2 && strings.Contains(args[0], ":") {
		c.closeDriver()
		c.dialExt(ctx, args[0], args[1])
		return
	}
	if c.driver == nil {
		fmt.Fprintln(c.out, "No extension driven (use: ext <addr> <id>)")
		return
	}

	switch sub {
	case "stream":
		fmt.Fprintf(c.out, "Started stream %s\n", c.driver.StartStream(args[1]))
	case "view":
		id, err := c.driver.StartView(args[1], model.ViewConfig{
			GridSize: model.Size{First: 60, Second: 15},
			ViewSize: model.Size{First: 480, Second: 200},
			TextSize: 24,
		})
		if err != nil {
			fmt.Fprintf(c.out, "View failed: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "Started view %s\n", id)
	case "scan":
		fmt.Fprintf(c.out, "Started scan %s\n", c.driver.StartScan())
	case "connect":
		fmt.Fprintf(c.out, "Connecting %s as %s\n", args[1], c.driver.ConnectDevice(args[1]))
	case "stop":
		if err := c.driver.Stop(args[1]); err != nil {
			fmt.Fprintf(c.out, "Stop failed: %v\n", err)
		}
	case "list":
		for _, s := range c.driver.Active() {
			fmt.Fprintf(c.out, "  %-36s  %-7s %s\n", s.ID, s.Kind, s.TypeID)
		}
	case "close":
		c.closeDriver()
		fmt.Fprintln(c.out, "Extension released")
	default:
		fmt.Fprintf(c.out, "Unknown ext command: %s\n", args[0])
	}
}

func (c *Console) dialExt(ctx context.Context, addr, id string) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	d, err := hostsim.DialExtension(dialCtx, c.host, hostsim.DriverConfig{
		Extension: id,
		Address:   addr,
		Peer:      c.opts.Peer,
		Logger:    c.opts.Logger,
		OnView: func(emitter string, v extension.View) {
			fmt.Fprintf(c.out, "[VIEW %s] %s\n", emitter, v.Text())
		},
		OnDevice: func(dev model.Device) {
			fmt.Fprintf(c.out, "[DEVICE] %s %s %v\n", dev.UID, dev.DisplayName, dev.DataTypes)
		},
	})
	if err != nil {
		fmt.Fprintf(c.out, "Extension not reached: %v\n", err)
		return
	}
	c.driver = d
	fmt.Fprintf(c.out, "Driving %s at %s (lib %s)\n", id, addr, d.LibVersion())
}

func (c *Console) closeDriver() {
	if c.driver != nil {
		_ = c.driver.Close()
		c.driver = nil
	}
}

// ParseRideState maps a console word to a ride state.
func ParseRideState(s string) (model.RideState, bool) {
	switch strings.ToLower(s) {
	case "idle":
		return model.RideStateIdle{}, true
	case "record", "recording":
		return model.RideStateRecording{}, true
	case "pause", "paused":
		return model.RideStatePaused{}, true
	case "autopause":
		return model.RideStatePaused{Auto: true}, true
	default:
		return nil, false
	}
}

// DataTypeID expands a short name such as "power" or "sample::power-hr" to
// its data type id. Full ids pass through.
func DataTypeID(name string) string {
	if ext, typeID, ok := model.ParseDataTypeID(name); ok {
		return model.DataTypeID(ext, typeID)
	}
	if strings.HasPrefix(name, "TYPE_") {
		return name
	}
	short := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	switch short {
	case "HR":
		short = "HEART_RATE"
	case "CAD":
		short = "CADENCE"
	}
	return "TYPE_" + short + "_ID"
}

// WithUnits returns p with every preferred unit set to unit.
func WithUnits(p model.UserProfile, unit model.UnitType) model.UserProfile {
	p.PreferredUnit = model.PreferredUnit{
		Distance:    unit,
		Elevation:   unit,
		Temperature: unit,
		Weight:      unit,
	}
	return p
}

// DescribeEffect renders an effect on one line.
func DescribeEffect(e model.Effect) string {
	switch v := e.(type) {
	case model.SystemNotification:
		return fmt.Sprintf("notification %s: %s", v.ID, v.Message)
	case model.InRideAlert:
		detail := ""
		if v.Detail != nil {
			detail = " - " + *v.Detail
		}
		return fmt.Sprintf("alert %s: %s%s", v.ID, v.Title, detail)
	case model.PlayBeepPattern:
		return fmt.Sprintf("beep (%d tones)", len(v.Tones))
	default:
		return strings.TrimPrefix(fmt.Sprintf("%T", e), "model.")
	}
}
