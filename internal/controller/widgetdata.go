package controller

import (
	"context"
	"sync"

	"gridboard/pkg/dashboard"
)

// WidgetFetcher loads the authoritative config of one widget.
type WidgetFetcher interface {
	GetWidget(ctx context.Context, id string) (dashboard.WidgetConfig, error)
}

// WidgetData is a single observable cell for one widget. Optimistic writes
// (Offer) show immediately; a confirmed fetch overrides them whatever the
// arrival order, and among fetches only the most recently issued one that
// has completed is kept.
type WidgetData struct {
	id      string
	initial *dashboard.WidgetConfig

	mu        sync.Mutex
	current   *dashboard.WidgetConfig
	confirmed bool
	offered   bool
	issued    uint64
	applied   uint64
	inflight  int
}

// NewWidgetData returns a cell showing initial until a fetch confirms.
func NewWidgetData(id string, initial *dashboard.WidgetConfig) *WidgetData {
	d := &WidgetData{id: id}
	if initial != nil {
		cfg := initial.Clone()
		d.initial = &cfg
		shown := cfg.Clone()
		d.current = &shown
	}
	return d
}

// ID returns the widget id the cell tracks.
func (d *WidgetData) ID() string { return d.id }

// Offer writes optimistic data. It is dropped once a fetch has confirmed.
func (d *WidgetData) Offer(cfg dashboard.WidgetConfig) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.confirmed {
		return false
	}
	c := cfg.Clone()
	d.current = &c
	d.offered = true
	return true
}

// Refresh fetches the widget. A result is applied when it was issued after
// the last applied one. On failure the cell falls back to the initial config
// unless fetched or offered data is already showing.
func (d *WidgetData) Refresh(ctx context.Context, f WidgetFetcher) error {
	d.mu.Lock()
	d.issued++
	seq := d.issued
	d.inflight++
	d.mu.Unlock()

	cfg, err := f.GetWidget(ctx, d.id)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight--
	if err != nil {
		if !d.confirmed && !d.offered && d.initial != nil {
			c := d.initial.Clone()
			d.current = &c
		}
		return err
	}
	if seq > d.applied {
		c := cfg.Clone()
		d.current = &c
		d.applied = seq
		d.confirmed = true
	}
	return nil
}

// Value returns the config on display, whether one exists, and whether it
// came from the server.
func (d *WidgetData) Value() (dashboard.WidgetConfig, bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return dashboard.WidgetConfig{}, false, false
	}
	return d.current.Clone(), true, d.confirmed
}

// Loading reports whether a fetch is in flight.
func (d *WidgetData) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight > 0
}
