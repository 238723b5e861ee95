// Command karoo-host is a simulated ride computer.
//
// It serves the host side of the extension protocol: extensions bind to it,
// subscribe to ride state, laps, the rider profile and data streams, and
// dispatch effects. Data is driven from the interactive console.
//
// Usage:
//
//	karoo-host [flags]
//
// Flags:
//
//	-listen string        Listen address (default ":7311")
//	-serial string        Serial number reported to extensions (default "SIM-0001")
//	-hardware string      Hardware type: K2, KAROO (default "K2")
//	-advertise            Advertise the host over mDNS
//	-config string        YAML configuration file
//	-protocol-log string  Write protocol events to this file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-interactive          Enable the interactive console
//
// Examples:
//
//	# Start an interactive K2 host
//	karoo-host -interactive
//
//	# Advertise a Karoo 3 host and record the protocol
//	karoo-host -hardware KAROO -advertise -protocol-log host.log
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/jpweytjens/karoo-ext/cmd/karoo-host/interactive"
	"github.com/jpweytjens/karoo-ext/internal/hostsim"
	"github.com/jpweytjens/karoo-ext/pkg/discovery"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
	"github.com/jpweytjens/karoo-ext/pkg/version"
)

// Config holds the host configuration. Fields are read from the YAML file
// first and then overridden by flags given on the command line.
type Config struct {
	Listen      string `yaml:"listen"`
	Serial      string `yaml:"serial"`
	Hardware    string `yaml:"hardware"`
	Advertise   bool   `yaml:"advertise"`
	ProtocolLog string `yaml:"protocolLog"`
	LogLevel    string `yaml:"logLevel"`
	Interactive bool   `yaml:"interactive"`
	Units       string `yaml:"units"`
	FTP         int    `yaml:"ftp"`
	MaxHR       int    `yaml:"maxHr"`
}

var (
	config     = Config{Units: "metric"}
	configFile string
)

func init() {
	flag.StringVar(&config.Listen, "listen", fmt.Sprintf(":%d", discovery.DefaultSystemPort), "Listen address")
	flag.StringVar(&config.Serial, "serial", "SIM-0001", "Serial number reported to extensions")
	flag.StringVar(&config.Hardware, "hardware", string(model.HardwareK2), "Hardware type: K2, KAROO")
	flag.BoolVar(&config.Advertise, "advertise", false, "Advertise the host over mDNS")
	flag.StringVar(&configFile, "config", "", "YAML configuration file")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Write protocol events to this file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable the interactive console")
}

func main() {
	flag.Parse()
	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out io.Writer = os.Stderr
	var console *interactive.Console
	if config.Interactive {
		var err error
		console, err = interactive.New()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start console: %v\n", err)
			os.Exit(1)
		}
		out = console.Stdout()
	}
	logger := setupLogging(out, config.LogLevel)

	var sinks []log.Logger
	if config.ProtocolLog != "" {
		fl, err := log.NewFileLogger(config.ProtocolLog)
		if err != nil {
			logger.Error("protocol log not opened", "path", config.ProtocolLog, "error", err)
			os.Exit(1)
		}
		defer fl.Close()
		sinks = append(sinks, fl)
		logger.Info("recording protocol", "path", fl.Path())
	}
	if strings.EqualFold(config.LogLevel, "debug") {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	var trace log.Logger
	if len(sinks) > 0 {
		trace = log.NewMultiLogger(sinks...)
	}

	hostCfg := hostsim.DefaultConfig()
	hostCfg.Info = model.KarooInfo{Serial: config.Serial, HardwareType: model.ParseHardwareType(config.Hardware)}
	if strings.EqualFold(config.Units, "imperial") {
		hostCfg.Profile = interactive.WithUnits(hostCfg.Profile, model.UnitImperial)
	}
	if config.FTP > 0 {
		hostCfg.Profile.FTP = config.FTP
	}
	if config.MaxHR > 0 {
		hostCfg.Profile.MaxHR = config.MaxHR
	}
	hostCfg.Logger = logger
	hostCfg.Trace = trace
	hostCfg.OnEffect = func(e model.Effect) {
		logger.Info("effect", "type", fmt.Sprintf("%T", e))
	}
	host := hostsim.New(hostCfg)

	peer := transport.DefaultConfig()
	peer.Side = log.SideHost
	peer.Trace = trace
	peer.Logger = logger
	ln, err := transport.Listen("tcp", config.Listen, peer)
	if err != nil {
		logger.Error("listen failed", "address", config.Listen, "error", err)
		os.Exit(1)
	}
	logger.Info("host listening",
		"address", ln.Addr().String(),
		"serial", hostCfg.Info.Serial,
		"hardware", hostCfg.Info.HardwareType,
		"lib", version.Lib,
	)

	serveErr := make(chan error, 1)
	go func() { serveErr <- host.Serve(ctx, ln) }()

	if config.Advertise {
		adv := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		defer adv.StopAll()
		err := adv.AdvertiseSystem(ctx, &discovery.SystemInfo{
			Serial:     hostCfg.Info.Serial,
			Hardware:   hostCfg.Info.HardwareType,
			LibVersion: version.Lib,
			Port:       listenPort(ln),
		})
		if err != nil {
			logger.Warn("advertising failed", "error", err)
		} else {
			logger.Info("advertising host", "service", discovery.ServiceTypeSystem)
		}
	}

	if console != nil {
		console.Attach(host, interactive.Options{Peer: peer, Logger: logger})
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("host stopped", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()
	_ = ln.Close()
}

// loadConfig reads the YAML file, if any, and reapplies the flags that were
// set explicitly so they take precedence.
func loadConfig() error {
	if configFile != "" {
		explicit := map[string]string{}
		flag.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })

		data, err := os.ReadFile(configFile)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("%s: %w", configFile, err)
		}
		for name, v := range explicit {
			_ = flag.Set(name, v)
		}
	}

	if model.ParseHardwareType(config.Hardware) == model.HardwareUnknown {
		return fmt.Errorf("unknown hardware type: %s (use: K2, KAROO)", config.Hardware)
	}
	if config.Serial == "" {
		return fmt.Errorf("serial must not be empty")
	}
	return nil
}

func setupLogging(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger
}

func listenPort(ln *transport.Listener) uint16 {
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	return 0
}
