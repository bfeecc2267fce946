// Package dashboard owns one resource loader per report shown on the back
// office dashboards.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"concesionario/internal/core"
	"concesionario/internal/loader"
	applog "concesionario/internal/log"
	"concesionario/internal/remote"
)

// maxParallelRefresh bounds concurrent fetches during RefreshAll.
const maxParallelRefresh = 4

// SourceFactory returns the source backing a resource kind.
type SourceFactory func(kind core.ResourceKind) loader.Source[core.Report]

// RemoteSources fetches each kind from /api/<kind> on c.
func RemoteSources(c *remote.Client) SourceFactory {
	return func(kind core.ResourceKind) loader.Source[core.Report] {
		return remote.Resource[core.Report](c, "/api/"+kind.String())
	}
}

// Panel is the state of one dashboard report.
type Panel struct {
	Kind  core.ResourceKind
	State loader.State[core.Report]
}

// Board holds a loader per resource kind. Background loads run under the
// context given to NewBoard so they outlive the request that triggered them.
type Board struct {
	ctx      context.Context
	kinds    []core.ResourceKind
	loaders  map[core.ResourceKind]*loader.Loader[core.Report]
	messages Messages
	logger   *slog.Logger
}

// BoardOption configures a Board.
type BoardOption func(*boardConfig)

type boardConfig struct {
	logger *slog.Logger
	policy loader.Policy
	lazy   bool
	kinds  []core.ResourceKind
}

// WithBoardLogger sets the logger handed to every loader.
func WithBoardLogger(l *slog.Logger) BoardOption {
	return func(c *boardConfig) { c.logger = l }
}

// WithLoadPolicy sets the overlapping-load policy of every loader.
func WithLoadPolicy(p loader.Policy) BoardOption {
	return func(c *boardConfig) { c.policy = p }
}

// WithKinds restricts the board to the given kinds.
func WithKinds(kinds ...core.ResourceKind) BoardOption {
	return func(c *boardConfig) { c.kinds = kinds }
}

// Lazy skips the initial load of every panel.
func Lazy() BoardOption {
	return func(c *boardConfig) { c.lazy = true }
}

// NewBoard creates the loaders. Unless Lazy is given each one starts its
// initial load immediately.
func NewBoard(ctx context.Context, sources SourceFactory, msgs Messages, opts ...BoardOption) *Board {
	cfg := boardConfig{logger: slog.Default(), kinds: core.ResourceKinds()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if msgs == nil {
		msgs = DefaultMessages()
	}

	b := &Board{
		ctx:      ctx,
		kinds:    cfg.kinds,
		loaders:  make(map[core.ResourceKind]*loader.Loader[core.Report], len(cfg.kinds)),
		messages: msgs,
		logger:   cfg.logger.With(applog.FieldComponent, applog.ComponentDashboard),
	}
	for _, kind := range cfg.kinds {
		lopts := []loader.Option[core.Report]{
			loader.WithLogger[core.Report](cfg.logger),
			loader.WithName[core.Report](kind.String()),
			loader.WithPolicy[core.Report](cfg.policy),
		}
		if cfg.lazy {
			lopts = append(lopts, loader.WithoutInitialLoad[core.Report]())
		}
		b.loaders[kind] = loader.New(ctx, sources(kind), msgs.For(kind), lopts...)
	}
	return b
}

func (b *Board) loader(kind core.ResourceKind) (*loader.Loader[core.Report], error) {
	l, ok := b.loaders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownResource, kind)
	}
	return l, nil
}

// Kinds returns the kinds on the board in display order.
func (b *Board) Kinds() []core.ResourceKind {
	return append([]core.ResourceKind(nil), b.kinds...)
}

// Get returns the current state of kind.
func (b *Board) Get(kind core.ResourceKind) (Panel, error) {
	l, err := b.loader(kind)
	if err != nil {
		return Panel{}, err
	}
	return Panel{Kind: kind, State: l.State()}, nil
}

// Refresh reloads kind and waits for the result.
func (b *Board) Refresh(ctx context.Context, kind core.ResourceKind) (Panel, error) {
	l, err := b.loader(kind)
	if err != nil {
		return Panel{}, err
	}
	return Panel{Kind: kind, State: l.Refresh(ctx)}, nil
}

// Trigger starts a background reload of kind and returns at once.
func (b *Board) Trigger(kind core.ResourceKind) (Panel, error) {
	l, err := b.loader(kind)
	if err != nil {
		return Panel{}, err
	}
	l.Go(b.ctx)
	return Panel{Kind: kind, State: l.State()}, nil
}

// RefreshAll reloads every kind concurrently. Individual failures end up in
// the panels, so the call itself never fails.
func (b *Board) RefreshAll(ctx context.Context) []Panel {
	var g errgroup.Group
	g.SetLimit(maxParallelRefresh)
	for _, kind := range b.kinds {
		l := b.loaders[kind]
		g.Go(func() error {
			l.Refresh(ctx)
			return nil
		})
	}
	_ = g.Wait()

	panels := b.Snapshot()
	failed := 0
	for _, p := range panels {
		if p.State.Status == loader.StatusError {
			failed++
		}
	}
	b.logger.InfoContext(ctx, "Dashboards refreshed", "panels", len(panels), "failed", failed)
	return panels
}

// Snapshot returns every panel in display order.
func (b *Board) Snapshot() []Panel {
	out := make([]Panel, 0, len(b.kinds))
	for _, kind := range b.kinds {
		out = append(out, Panel{Kind: kind, State: b.loaders[kind].State()})
	}
	return out
}

// Ready reports whether every panel has something to show: data or a
// settled error.
func (b *Board) Ready() bool {
	for _, kind := range b.kinds {
		st := b.loaders[kind].State()
		if st.Status == loader.StatusNotLoaded || (st.Loading() && !st.HasData) {
			return false
		}
	}
	return true
}

// Close waits for in-flight loads.
func (b *Board) Close() {
	for _, l := range b.loaders {
		l.Wait()
	}
}
