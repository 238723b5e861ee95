// Command karoo-ext runs a bundled extension against a host.
//
// The extension binds to the host for ride data and effects, and listens
// for the host to start its data types and device scans.
//
// Usage:
//
//	karoo-ext [flags]
//
// Flags:
//
//	-ext string           Extension: sample, barberfish (default "sample")
//	-host string          Host address; empty browses for one over mDNS
//	-listen string        Listen address for the host (default ":7312")
//	-advertise            Advertise the extension over mDNS (default true)
//	-prefs string         Preferences file (barberfish settings)
//	-manifest string      Manifest to check the extension against
//	-rebind string        Rebind policy: fixed, backoff (default "fixed")
//	-dispatch string      Effect to dispatch each time the host binds
//	-config string        YAML configuration file
//	-protocol-log string  Write protocol events to this file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Run the sample extension against a local host
//	karoo-ext -ext sample -host 127.0.0.1:7311
//
//	# Run barberfish, finding the host over mDNS
//	karoo-ext -ext barberfish -prefs ~/.config/barberfish.json
//
//	# Mark a lap whenever the host binds
//	karoo-ext -host 127.0.0.1:7311 -dispatch MarkLap
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/connection"
	"github.com/jpweytjens/karoo-ext/pkg/discovery"
	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/karoo"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
)

// Config holds the runner configuration. Fields are read from the YAML file
// first and then overridden by flags given on the command line.
type Config struct {
	Extension   string `yaml:"extension"`
	Host        string `yaml:"host"`
	Listen      string `yaml:"listen"`
	Advertise   bool   `yaml:"advertise"`
	Prefs       string `yaml:"prefs"`
	Manifest    string `yaml:"manifest"`
	Rebind      string `yaml:"rebind"`
	Dispatch    string `yaml:"dispatch"`
	ProtocolLog string `yaml:"protocolLog"`
	LogLevel    string `yaml:"logLevel"`
}

var (
	config     Config
	configFile string
)

func init() {
	flag.StringVar(&config.Extension, "ext", "sample", "Extension: "+strings.Join(bundledNames(), ", "))
	flag.StringVar(&config.Host, "host", "", "Host address; empty browses for one over mDNS")
	flag.StringVar(&config.Listen, "listen", fmt.Sprintf(":%d", discovery.DefaultExtensionPort), "Listen address for the host")
	flag.BoolVar(&config.Advertise, "advertise", true, "Advertise the extension over mDNS")
	flag.StringVar(&config.Prefs, "prefs", "", "Preferences file (barberfish settings)")
	flag.StringVar(&config.Manifest, "manifest", "", "Manifest to check the extension against")
	flag.StringVar(&config.Rebind, "rebind", "fixed", "Rebind policy: fixed, backoff")
	flag.StringVar(&config.Dispatch, "dispatch", "", "Effect to dispatch each time the host binds: "+strings.Join(model.EffectKeys(), ", "))
	flag.StringVar(&configFile, "config", "", "YAML configuration file")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Write protocol events to this file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()
	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := setupLogging(os.Stderr, config.LogLevel)

	if err := run(logger); err != nil {
		logger.Error("extension stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	trace, closeTrace, err := openTrace(config.ProtocolLog, config.LogLevel, logger)
	if err != nil {
		return err
	}
	defer closeTrace()

	policy, err := rebindPolicy(config.Rebind)
	if err != nil {
		return err
	}
	var effect model.Effect
	if config.Dispatch != "" {
		if effect, err = resolveEffect(config.Dispatch); err != nil {
			return err
		}
	}

	open, ok := bundled[config.Extension]
	if !ok {
		return fmt.Errorf("unknown extension: %s", config.Extension)
	}
	pkg := "io.karoo-ext." + config.Extension

	peer := transport.DefaultConfig()
	peer.Trace = trace
	peer.Logger = logger

	socket := binder.SocketConfig{
		Address: config.Host,
		Package: pkg,
		Peer:    peer,
		Logger:  logger,
	}
	if config.Host == "" {
		browser := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
		defer browser.Stop()
		socket.Browser = browser
		logger.Info("browsing for host", "service", discovery.ServiceTypeSystem)
	}

	sysCfg := karoo.DefaultConfig()
	sysCfg.Package = pkg
	sysCfg.Logger = logger
	sysCfg.Trace = trace
	sysCfg.Policy = policy
	sys := karoo.New(binder.NewSocketBinder(socket), sysCfg)
	defer sys.Close()

	ext, err := open(sys, options{Prefs: config.Prefs, Logger: logger, Trace: trace})
	if err != nil {
		return err
	}
	svc := ext.Service()

	manifest, err := ext.Manifest()
	if config.Manifest != "" {
		manifest, err = extension.LoadManifest(config.Manifest)
	}
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if err := manifest.Check(svc); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	listenerID := sys.RegisterConnectionListener(func(connected bool) {
		if connected {
			info, _ := sys.Info()
			logger.Info("host bound", "serial", info.Serial, "hardware", info.HardwareType, "lib", sys.LibVersion())
			if effect != nil && !sys.Dispatch(effect) {
				logger.Warn("effect not dispatched", "effect", config.Dispatch)
			}
		} else {
			logger.Warn("host lost")
		}
	})
	defer sys.RemoveConsumer(listenerID)

	serve := extension.ServeConfig{
		Address: config.Listen,
		Peer:    peer,
		Logger:  logger,
	}
	if config.Advertise {
		adv := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		defer adv.StopAll()
		serve.Advertiser = adv
	}

	errCh := make(chan error, 2)
	go func() { errCh <- extension.Serve(ctx, svc, serve) }()
	go func() { errCh <- ext.Run(ctx) }()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			cancel()
			return err
		}
	}
	logger.Info("shutting down")
	return nil
}

// openTrace returns the protocol event sink: the trace file when path is
// set, and debug log records when level is debug. The logger is nil when
// neither applies.
func openTrace(path, level string, logger *slog.Logger) (log.Logger, func(), error) {
	var sinks []log.Logger
	closer := func() {}
	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, nil, fmt.Errorf("protocol log: %w", err)
		}
		sinks = append(sinks, fl)
		closer = func() { _ = fl.Close() }
	}
	if strings.EqualFold(level, "debug") {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	if len(sinks) == 0 {
		return nil, closer, nil
	}
	return log.NewMultiLogger(sinks...), closer, nil
}

func rebindPolicy(name string) (connection.RebindPolicy, error) {
	switch strings.ToLower(name) {
	case "", "fixed":
		return connection.FixedDelay(connection.DefaultRebindDelay), nil
	case "backoff":
		return connection.NewBackoff(), nil
	}
	return nil, fmt.Errorf("unknown rebind policy: %s", name)
}

func resolveEffect(key string) (model.Effect, error) {
	effect, ok := model.EffectByKey(key)
	if !ok {
		return nil, fmt.Errorf("unknown effect %q, want one of: %s", key, strings.Join(model.EffectKeys(), ", "))
	}
	return effect, nil
}

// loadConfig reads the YAML file, if any, and reapplies the flags that were
// set explicitly so they take precedence.
func loadConfig() error {
	if configFile == "" {
		return nil
	}
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
