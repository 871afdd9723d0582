package dashboard

import (
	"context"
	"errors"
)

var (
	// ErrInvalidPayload is returned when a replace carries no well-typed half.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrMissingID is returned when an operation requires a widget id.
	ErrMissingID = errors.New("missing id")
	// ErrNotFound is returned for unknown widget ids.
	ErrNotFound = errors.New("not found")
)

// Replacement carries the optional halves of a snapshot write. A half is
// applied only when its Has flag is set.
type Replacement struct {
	Layout     []LayoutItem
	Widgets    map[string]WidgetConfig
	HasLayout  bool
	HasWidgets bool
}

// ReplaceAll builds a replacement covering both halves of a state.
func ReplaceAll(s State) Replacement {
	return Replacement{Layout: s.Layout, Widgets: s.Widgets, HasLayout: true, HasWidgets: true}
}

// ReplaceLayout builds a layout-only replacement.
func ReplaceLayout(layout []LayoutItem) Replacement {
	return Replacement{Layout: layout, HasLayout: true}
}

// ReplaceWidgets builds a widgets-only replacement.
func ReplaceWidgets(widgets map[string]WidgetConfig) Replacement {
	return Replacement{Widgets: widgets, HasWidgets: true}
}

// Store is the server-side authority for dashboard state. Implementations
// must serialize mutations so read-modify-write sequences are atomic.
type Store interface {
	// Read returns a deep copy of the current state.
	Read(ctx context.Context) (State, error)
	// Replace swaps the supplied halves wholesale and returns the new state.
	Replace(ctx context.Context, r Replacement) (State, error)
	// DeleteWidget removes the widget and all layout items sharing its id.
	// Deleting an unknown id is not an error.
	DeleteWidget(ctx context.Context, id string) (State, error)
	// GetWidget returns one widget config.
	GetWidget(ctx context.Context, id string) (WidgetConfig, error)
}
