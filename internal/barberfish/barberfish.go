package barberfish

import (
	"context"
	_ "embed"
	"log/slog"

	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/karoo"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/persistence"
)

// Extension identity, matching extension_info.yaml.
const (
	ID      = "barberfish"
	Version = "1.0"
)

//go:embed extension_info.yaml
var manifestYAML []byte

// Manifest returns the embedded extension manifest.
func Manifest() (*extension.Manifest, error) {
	return extension.ParseManifest(manifestYAML)
}

// Config configures the extension.
type Config struct {
	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// Trace receives emitter lifecycle events. Nil disables tracing.
	Trace log.Logger
}

// Extension is the barberfish extension.
type Extension struct {
	config     Config
	randonneur *Randonneur
	triple     *Triple
}

// New returns the extension reading host data through sys and settings
// from prefs.
func New(sys *karoo.System, prefs *persistence.Preferences, config Config) *Extension {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("extension", ID)
	return &Extension{
		config:     config,
		randonneur: NewRandonneur(sys, prefs, logger),
		triple:     NewTriple(sys, prefs, logger),
	}
}

// Randonneur returns the randonneur data type.
func (x *Extension) Randonneur() *Randonneur { return x.randonneur }

// Triple returns the triple data type.
func (x *Extension) Triple() *Triple { return x.triple }

// Service returns the host-facing service of the extension.
func (x *Extension) Service() *extension.Service {
	return extension.NewService(extension.ServiceConfig{
		ID:      ID,
		Version: Version,
		Types:   []extension.DataType{x.randonneur, x.triple},
		Logger:  x.config.Logger,
		Trace:   x.config.Trace,
	})
}

// slot is one followed stream.
type slot struct {
	index int
	state model.StreamState
}

// follow subscribes to every data type in ids and merges their states into
// one channel tagged with the index of the id. Subscriptions end with ctx.
func follow(ctx context.Context, sys *karoo.System, ids ...string) (<-chan slot, error) {
	subs := make([]*karoo.Subscription[model.OnStreamState], 0, len(ids))
	for _, id := range ids {
		sub, err := karoo.StreamData(ctx, sys, id)
		if err != nil {
			for _, s := range subs {
				s.Cancel()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}

	out := make(chan slot, len(ids))
	for i, sub := range subs {
		go func() {
			for ev := range sub.C() {
				select {
				case out <- slot{index: i, state: ev.State}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	return out, nil
}

// fieldValue reads field from a streaming state, falling back to the single
// value of the data point.
func fieldValue(s model.StreamState, field string) (float64, bool) {
	st, ok := s.(model.StreamStreaming)
	if !ok {
		return 0, false
	}
	if v, ok := st.DataPoint.Value(field); ok {
		return v, true
	}
	return st.DataPoint.SingleValue()
}
