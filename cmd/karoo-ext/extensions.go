package main

import (
	"context"
	"log/slog"
	"sort"

	"github.com/jpweytjens/karoo-ext/internal/barberfish"
	"github.com/jpweytjens/karoo-ext/internal/sampleext"
	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/karoo"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/persistence"
)

// options are passed to every bundled extension.
type options struct {
	Prefs  string
	Logger *slog.Logger
	Trace  log.Logger
}

// runnable is a bundled extension ready to serve.
type runnable interface {
	Service() *extension.Service
	Manifest() (*extension.Manifest, error)

	// Run does the extension's background work until ctx is done.
	Run(ctx context.Context) error
}

var bundled = map[string]func(*karoo.System, options) (runnable, error){
	sampleext.ID:  openSample,
	barberfish.ID: openBarberfish,
}

func bundledNames() []string {
	names := make([]string, 0, len(bundled))
	for name := range bundled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type sample struct{ *sampleext.Extension }

func (sample) Manifest() (*extension.Manifest, error) { return sampleext.Manifest() }

func openSample(sys *karoo.System, opts options) (runnable, error) {
	return sample{sampleext.New(sys, sampleext.Config{Logger: opts.Logger, Trace: opts.Trace})}, nil
}

type fish struct {
	*barberfish.Extension
	prefs  *persistence.Preferences
	logger *slog.Logger
}

func (fish) Manifest() (*extension.Manifest, error) { return barberfish.Manifest() }

// Run keeps the preferences on disk until ctx is done.
func (f fish) Run(ctx context.Context) error {
	<-ctx.Done()
	if err := f.prefs.Save(); err != nil {
		f.logger.Warn("preferences not saved", "path", f.prefs.Path(), "error", err)
	}
	return nil
}

func openBarberfish(sys *karoo.System, opts options) (runnable, error) {
	prefs := persistence.NewPreferences(opts.Prefs)
	if err := prefs.Load(); err != nil {
		return nil, err
	}
	x := barberfish.New(sys, prefs, barberfish.Config{Logger: opts.Logger, Trace: opts.Trace})
	return fish{Extension: x, prefs: prefs, logger: opts.Logger}, nil
}
