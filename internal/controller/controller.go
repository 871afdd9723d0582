// Package controller owns the client-side view of a dashboard. Every mutation
// is applied locally first and then persisted through the sync API as a full
// snapshot; persistence failures are logged and never rolled back.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gridboard/internal/dataset"
	"gridboard/pkg/dashboard"
)

// SyncAPI is the server surface the controller persists through.
type SyncAPI interface {
	Get(ctx context.Context) (dashboard.State, error)
	Replace(ctx context.Context, r dashboard.Replacement) (dashboard.State, error)
	DeleteWidget(ctx context.Context, id string) (dashboard.State, error)
	GetWidget(ctx context.Context, id string) (dashboard.WidgetConfig, error)
}

const defaultLabel = "Series"

// CreateRequest describes a new widget. Explicit W and H win over Layout.
type CreateRequest struct {
	Type   dashboard.ChartType
	Label  string
	Size   dashboard.SizeCategory
	Layout dashboard.LayoutSize
	W, H   int
}

// WidgetPatch carries the fields to merge into an existing widget; nil
// fields are left alone.
type WidgetPatch struct {
	Type  *dashboard.ChartType
	Label *string
	Size  *dashboard.SizeCategory
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for swallowed persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithGenerator sets the dataset generator.
func WithGenerator(g *dataset.Generator) Option {
	return func(c *Controller) {
		if g != nil {
			c.gen = g
		}
	}
}

// WithClock sets the clock used to mint widget ids.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller is safe for concurrent use.
type Controller struct {
	api    SyncAPI
	gen    *dataset.Generator
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	layout  []dashboard.LayoutItem
	widgets map[string]dashboard.WidgetConfig
	loading bool
	saving  int
	dirty   bool
	lastID  int64
	// rev counts local mutations; a load whose fetch overlapped one is stale.
	rev uint64

	changes chan struct{}
}

// New returns a controller in the loading state with an empty dashboard.
func New(api SyncAPI, opts ...Option) *Controller {
	c := &Controller{
		api:     api,
		gen:     dataset.Default(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		layout:  []dashboard.LayoutItem{},
		widgets: map[string]dashboard.WidgetConfig{},
		loading: true,
		changes: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load adopts the server state. A failure is logged and leaves the
// dashboard as it was; either way loading ends. The fetched state is dropped
// when a local mutation started or a save was in flight while it was being
// fetched, since it may predate that mutation.
func (c *Controller) Load(ctx context.Context) {
	c.mu.Lock()
	start := c.rev
	c.mu.Unlock()

	state, err := c.api.Get(ctx)
	defer c.notify()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.logger.ErrorContext(ctx, "load dashboard", slog.Any("error", err))
		return
	}
	if c.rev != start || c.saving > 0 {
		c.logger.DebugContext(ctx, "discard stale load", slog.Uint64("revision", c.rev))
		return
	}
	c.adoptLocked(state)
}

// OnLayoutChange replaces the local geometry and persists the snapshot.
func (c *Controller) OnLayoutChange(ctx context.Context, layout []dashboard.LayoutItem) {
	c.mu.Lock()
	c.rev++
	c.layout = dashboard.NormalizeLayout(layout)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.persist(ctx, "layout change", snap)
}

// CreateWidget adds a layout item and its config under a fresh id and
// returns that id.
func (c *Controller) CreateWidget(ctx context.Context, req CreateRequest) (string, error) {
	chart, err := dashboard.ParseChartType(string(req.Type))
	if err != nil {
		return "", err
	}
	size, err := dataset.ParseSize(string(req.Size))
	if err != nil {
		return "", err
	}
	w, h, err := c.footprint(req)
	if err != nil {
		return "", err
	}
	series, err := c.gen.Generate(size)
	if err != nil {
		return "", err
	}
	label := req.Label
	if label == "" {
		label = defaultLabel
	}

	c.mu.Lock()
	c.rev++
	id := c.nextIDLocked()
	item := dashboard.LayoutItem{ID: id, X: 0, Y: dashboard.State{Layout: c.layout}.Bottom(), W: w, H: h}
	c.layout = append(c.layout, item)
	cfg := dashboard.WidgetConfig{Type: chart, Label: label, Data: series.Data, Labels: series.Labels, Size: size}
	if req.W <= 0 || req.H <= 0 {
		if key := req.Layout; key != "" && key != dashboard.LayoutRandom {
			cfg.LayoutSizeKey = key
		}
	}
	c.widgets[id] = cfg
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(ctx, "create widget", snap)
	return id, nil
}

func (c *Controller) footprint(req CreateRequest) (int, int, error) {
	if req.W > 0 && req.H > 0 {
		return req.W, req.H, nil
	}
	key, err := dashboard.ParseLayoutSize(string(req.Layout))
	if err != nil {
		return 0, 0, err
	}
	if key == dashboard.LayoutRandom {
		return c.gen.IntN(2, 8), c.gen.IntN(2, 6), nil
	}
	d := dashboard.DefaultSizeMap[key]
	return d.W, d.H, nil
}

// UpdateWidget merges patch into the widget's config. The series is
// regenerated only when the size category changes, and only for this widget.
// A layout placeholder without a config gets a fresh one.
func (c *Controller) UpdateWidget(ctx context.Context, id string, patch WidgetPatch) error {
	if id == "" {
		return dashboard.ErrMissingID
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return fmt.Errorf("update widget %s: unknown chart type %q", id, *patch.Type)
	}
	if patch.Size != nil {
		if _, err := dataset.BoundsFor(*patch.Size); err != nil {
			return err
		}
	}

	c.mu.Lock()
	cfg, ok := c.widgets[id]
	if !ok {
		if _, placed := (dashboard.State{Layout: c.layout}).Find(id); !placed {
			c.mu.Unlock()
			return fmt.Errorf("update widget %s: %w", id, dashboard.ErrNotFound)
		}
		cfg = dashboard.WidgetConfig{Type: dashboard.ChartLine, Label: defaultLabel}
	}
	if patch.Type != nil {
		cfg.Type = *patch.Type
	}
	if patch.Label != nil {
		cfg.Label = *patch.Label
	}
	c.rev++
	if !ok || (patch.Size != nil && *patch.Size != cfg.Size) {
		size := dashboard.SizeSmall
		if patch.Size != nil {
			size = *patch.Size
		}
		s, err := c.gen.Generate(size)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		cfg.Data, cfg.Labels, cfg.Size = s.Data, s.Labels, size
	}
	c.widgets[id] = cfg
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(ctx, "update widget", snap)
	return nil
}

// RemoveWidget deletes through the server's delete-by-id operation and adopts
// the state it returns. On failure the local state is kept.
func (c *Controller) RemoveWidget(ctx context.Context, id string) error {
	if id == "" {
		return dashboard.ErrMissingID
	}
	c.mu.Lock()
	c.rev++
	c.mu.Unlock()
	c.beginSave()
	state, err := c.api.DeleteWidget(ctx, id)
	c.endSave(err)
	if err != nil {
		c.logger.WarnContext(ctx, "remove widget", slog.String("id", id), slog.Any("error", err))
		return nil
	}
	c.mu.Lock()
	c.adoptLocked(state)
	c.mu.Unlock()
	c.notify()
	return nil
}

// ResizeWidget sets the item's footprint from sizeMap (DefaultSizeMap when
// nil, FallbackDimensions for unknown keys) and records the key on the config.
func (c *Controller) ResizeWidget(ctx context.Context, id string, key dashboard.LayoutSize, sizeMap map[dashboard.LayoutSize]dashboard.Dimensions) error {
	if id == "" {
		return dashboard.ErrMissingID
	}
	if sizeMap == nil {
		sizeMap = dashboard.DefaultSizeMap
	}
	d, ok := sizeMap[key]
	if !ok {
		d = dashboard.FallbackDimensions
	}

	c.mu.Lock()
	found := false
	for i := range c.layout {
		if c.layout[i].ID == id {
			c.layout[i].W, c.layout[i].H = d.W, d.H
			found = true
		}
	}
	if !found {
		c.mu.Unlock()
		return fmt.Errorf("resize widget %s: %w", id, dashboard.ErrNotFound)
	}
	c.rev++
	if cfg, ok := c.widgets[id]; ok {
		cfg.LayoutSizeKey = key
		c.widgets[id] = cfg
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(ctx, "resize widget", snap)
	return nil
}

// RegenerateAll redraws every widget's series at size and persists once.
func (c *Controller) RegenerateAll(ctx context.Context, size dashboard.SizeCategory) error {
	if _, err := dataset.BoundsFor(size); err != nil {
		return err
	}
	c.mu.Lock()
	ids := make([]string, 0, len(c.widgets))
	for id := range c.widgets {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	fresh := make(map[string]dataset.Series, len(ids))
	for _, id := range ids {
		s, err := c.gen.Generate(size)
		if err != nil {
			return err
		}
		fresh[id] = s
	}

	c.mu.Lock()
	c.rev++
	for id, s := range fresh {
		cfg, ok := c.widgets[id]
		if !ok {
			continue
		}
		cfg.Data, cfg.Labels, cfg.Size = s.Data, s.Labels, size
		c.widgets[id] = cfg
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(ctx, "regenerate", snap)
	return nil
}

// State returns a deep copy of the local dashboard.
func (c *Controller) State() dashboard.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Loading reports whether the initial load is still outstanding.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Saving reports whether any persistence call is in flight.
func (c *Controller) Saving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving > 0
}

// Dirty reports whether the most recent persistence call failed, meaning the
// server may hold an older snapshot than the one on screen.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Widget returns a data cell for id, seeded with the local config when one
// exists.
func (c *Controller) Widget(id string) *WidgetData {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg, ok := c.widgets[id]; ok {
		initial := cfg.Clone()
		return NewWidgetData(id, &initial)
	}
	return NewWidgetData(id, nil)
}

// Changes signals after the local state or the save flags change. Signals
// coalesce: a receiver sees at least one after any burst of changes.
func (c *Controller) Changes() <-chan struct{} { return c.changes }

// API exposes the sync API, for collaborators that fetch on their own.
func (c *Controller) API() SyncAPI { return c.api }

func (c *Controller) persist(ctx context.Context, op string, snap dashboard.State) {
	c.beginSave()
	_, err := c.api.Replace(ctx, dashboard.ReplaceAll(snap))
	c.endSave(err)
	if err != nil {
		c.logger.WarnContext(ctx, "persist snapshot", slog.String("op", op), slog.Any("error", err))
	}
}

// beginSave runs after the local mutation and before the network call, so
// its signal lets the view show the optimistic state while the save runs.
func (c *Controller) beginSave() {
	c.mu.Lock()
	c.saving++
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) endSave(err error) {
	c.mu.Lock()
	c.saving--
	c.dirty = err != nil && !errors.Is(err, context.Canceled)
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func (c *Controller) adoptLocked(state dashboard.State) {
	c.layout = dashboard.NormalizeLayout(state.Layout)
	c.widgets = dashboard.CloneWidgets(state.Widgets)
}

func (c *Controller) snapshotLocked() dashboard.State {
	return dashboard.State{Layout: dashboard.CloneLayout(c.layout), Widgets: dashboard.CloneWidgets(c.widgets)}
}

// nextIDLocked mints a millisecond timestamp id, bumping past the previous id
// and any id already on the board when the clock has not advanced.
func (c *Controller) nextIDLocked() string {
	n := c.now().UnixMilli()
	if n <= c.lastID {
		n = c.lastID + 1
	}
	for {
		id := dashboard.FormatID(n)
		_, taken := c.widgets[id]
		if _, placed := (dashboard.State{Layout: c.layout}).Find(id); !taken && !placed {
			c.lastID = n
			return id
		}
		n++
	}
}
