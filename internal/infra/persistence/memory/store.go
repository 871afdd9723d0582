// Package memory provides the process-lifetime dashboard store. State starts
// empty and is lost on restart; durable drivers wrap it and snapshot after
// each successful mutation.
package memory

import (
	"context"
	"fmt"
	"sync"

	"gridboard/pkg/dashboard"
)

// Compile-time contract assertion.
var _ dashboard.Store = (*Store)(nil)

// Snapshot is a point-in-time copy of store state used by durable drivers.
type Snapshot = dashboard.State

// Store keeps the layout list and widget map behind a single RWMutex so each
// operation is atomic relative to concurrent handlers.
type Store struct {
	mu      sync.RWMutex
	layout  []dashboard.LayoutItem
	widgets map[string]dashboard.WidgetConfig
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		layout:  []dashboard.LayoutItem{},
		widgets: make(map[string]dashboard.WidgetConfig),
	}
}

func (s *Store) stateLocked() dashboard.State {
	return dashboard.State{
		Layout:  dashboard.CloneLayout(s.layout),
		Widgets: dashboard.CloneWidgets(s.widgets),
	}
}

// Read returns a deep copy of the current state.
func (s *Store) Read(_ context.Context) (dashboard.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked(), nil
}

// Replace applies each half present in r wholesale. The call fails with
// ErrInvalidPayload and leaves state untouched when no half is present or
// when any present half does not validate.
func (s *Store) Replace(_ context.Context, r dashboard.Replacement) (dashboard.State, error) {
	if err := CheckReplacement(r); err != nil {
		return dashboard.State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(r)
	return s.stateLocked(), nil
}

// Preview returns the state Replace would produce without applying it.
func (s *Store) Preview(r dashboard.Replacement) (dashboard.State, error) {
	if err := CheckReplacement(r); err != nil {
		return dashboard.State{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	next := s.stateLocked()
	if r.HasLayout {
		next.Layout = dashboard.CloneLayout(r.Layout)
	}
	if r.HasWidgets {
		next.Widgets = dashboard.CloneWidgets(r.Widgets)
	}
	return next, nil
}

// CheckReplacement validates every present half of r.
func CheckReplacement(r dashboard.Replacement) error {
	if !r.HasLayout && !r.HasWidgets {
		return fmt.Errorf("replace: %w", dashboard.ErrInvalidPayload)
	}
	if r.HasLayout {
		if err := dashboard.ValidateLayout(r.Layout); err != nil {
			return fmt.Errorf("replace: %w: %v", dashboard.ErrInvalidPayload, err)
		}
	}
	if r.HasWidgets {
		if r.Widgets == nil {
			return fmt.Errorf("replace: %w: widgets missing", dashboard.ErrInvalidPayload)
		}
		if err := dashboard.ValidateWidgets(r.Widgets); err != nil {
			return fmt.Errorf("replace: %w: %v", dashboard.ErrInvalidPayload, err)
		}
	}
	return nil
}

func (s *Store) applyLocked(r dashboard.Replacement) {
	if r.HasLayout {
		s.layout = dashboard.CloneLayout(r.Layout)
	}
	if r.HasWidgets {
		s.widgets = dashboard.CloneWidgets(r.Widgets)
	}
}

// DeleteWidget drops the widget config and every layout item with the same id.
func (s *Store) DeleteWidget(_ context.Context, id string) (dashboard.State, error) {
	if id == "" {
		return dashboard.State{}, fmt.Errorf("delete widget: %w", dashboard.ErrMissingID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.widgets, id)
	s.layout = withoutItem(s.layout, id)
	return s.stateLocked(), nil
}

// PreviewDelete returns the state DeleteWidget would produce without
// applying it.
func (s *Store) PreviewDelete(id string) (dashboard.State, error) {
	if id == "" {
		return dashboard.State{}, fmt.Errorf("delete widget: %w", dashboard.ErrMissingID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	next := s.stateLocked()
	delete(next.Widgets, id)
	next.Layout = withoutItem(next.Layout, id)
	return next, nil
}

func withoutItem(layout []dashboard.LayoutItem, id string) []dashboard.LayoutItem {
	kept := layout[:0:0]
	for _, item := range layout {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	return kept
}

// GetWidget returns a copy of one widget config.
func (s *Store) GetWidget(_ context.Context, id string) (dashboard.WidgetConfig, error) {
	if id == "" {
		return dashboard.WidgetConfig{}, fmt.Errorf("get widget: %w", dashboard.ErrMissingID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.widgets[id]
	if !ok {
		return dashboard.WidgetConfig{}, fmt.Errorf("widget %s: %w", id, dashboard.ErrNotFound)
	}
	return cfg.Clone(), nil
}

// ExportState returns a deep copy of the full state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// ImportState replaces all state without validation; used when hydrating
// from a durable backend.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = dashboard.CloneLayout(snapshot.Layout)
	s.widgets = dashboard.CloneWidgets(snapshot.Widgets)
}
