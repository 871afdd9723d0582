// Package dashboard defines the shared model of a grid dashboard: layout
// geometry, widget configuration and the store contract used by both the
// HTTP API and the client-side controller.
package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ChartType identifies how a widget series is drawn.
type ChartType string

const (
	ChartLine ChartType = "line"
	ChartBar  ChartType = "bar"
	ChartArea ChartType = "area"
)

// ChartTypes lists the supported chart types in display order.
var ChartTypes = []ChartType{ChartLine, ChartBar, ChartArea}

// Valid reports whether t is a known chart type.
func (t ChartType) Valid() bool {
	switch t {
	case ChartLine, ChartBar, ChartArea:
		return true
	}
	return false
}

// SizeCategory names a bucket controlling the length of a generated series.
type SizeCategory string

const (
	SizeTiny   SizeCategory = "tiny"
	SizeSmall  SizeCategory = "small"
	SizeMedium SizeCategory = "medium"
	SizeLarge  SizeCategory = "large"
)

// SizeCategories lists the canonical dataset partition, smallest first.
var SizeCategories = []SizeCategory{SizeTiny, SizeSmall, SizeMedium, SizeLarge}

// LayoutSize is a named grid footprint for a widget.
type LayoutSize string

const (
	LayoutSM     LayoutSize = "sm"
	LayoutMD     LayoutSize = "md"
	LayoutLG     LayoutSize = "lg"
	LayoutXL     LayoutSize = "xl"
	LayoutRandom LayoutSize = "random"
)

// Dimensions is a width/height pair in grid units.
type Dimensions struct {
	W int `json:"w"`
	H int `json:"h"`
}

// DefaultSizeMap is the footprint table used when creating or resizing widgets.
var DefaultSizeMap = map[LayoutSize]Dimensions{
	LayoutSM: {W: 2, H: 2},
	LayoutMD: {W: 4, H: 3},
	LayoutLG: {W: 6, H: 4},
	LayoutXL: {W: 8, H: 6},
}

// FallbackDimensions applies when a size key is missing from a size map.
var FallbackDimensions = Dimensions{W: 4, H: 3}

// LayoutItem is the grid position and size of one widget, keyed by widget id.
type LayoutItem struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
	W  int    `json:"w"`
	H  int    `json:"h"`
}

// UnmarshalJSON accepts numeric or string ids and fractional coordinates,
// which grid surfaces are known to emit.
func (l *LayoutItem) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID json.RawMessage `json:"id"`
		X  *float64        `json:"x"`
		Y  *float64        `json:"y"`
		W  *float64        `json:"w"`
		H  *float64        `json:"h"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}
	*l = LayoutItem{
		ID: id,
		X:  truncate(raw.X),
		Y:  truncate(raw.Y),
		W:  truncate(raw.W),
		H:  truncate(raw.H),
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("layout id: %w", err)
	}
	return n.String(), nil
}

func truncate(v *float64) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return int(*v)
}

// Normalize fills defaults for malformed geometry: negative positions clamp
// to 0 and non-positive sizes become 1.
func (l LayoutItem) Normalize() LayoutItem {
	if l.X < 0 {
		l.X = 0
	}
	if l.Y < 0 {
		l.Y = 0
	}
	if l.W <= 0 {
		l.W = 1
	}
	if l.H <= 0 {
		l.H = 1
	}
	return l
}

// Validate checks the geometry constraints of a single item.
func (l LayoutItem) Validate() error {
	switch {
	case l.ID == "":
		return fmt.Errorf("layout item: empty id")
	case l.X < 0 || l.Y < 0:
		return fmt.Errorf("layout item %s: negative position", l.ID)
	case l.W <= 0 || l.H <= 0:
		return fmt.Errorf("layout item %s: non-positive size", l.ID)
	}
	return nil
}

// Bottom returns the first grid row below the item.
func (l LayoutItem) Bottom() int { return l.Y + l.H }

// WidgetConfig is the chart type, label and generated series of one widget.
type WidgetConfig struct {
	Type          ChartType    `json:"type"`
	Label         string       `json:"label"`
	Data          []float64    `json:"data"`
	Labels        []string     `json:"labels"`
	LayoutSizeKey LayoutSize   `json:"layoutSizeKey,omitempty"`
	Size          SizeCategory `json:"size,omitempty"`
}

// Validate enforces the chart type and the data/labels length invariant.
func (c WidgetConfig) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("widget: unknown chart type %q", c.Type)
	}
	if len(c.Data) != len(c.Labels) {
		return fmt.Errorf("widget: %d values but %d labels", len(c.Data), len(c.Labels))
	}
	return nil
}

// Clone returns a deep copy of the config.
func (c WidgetConfig) Clone() WidgetConfig {
	out := c
	if c.Data != nil {
		out.Data = append([]float64(nil), c.Data...)
	}
	if c.Labels != nil {
		out.Labels = append([]string(nil), c.Labels...)
	}
	return out
}

// State is the full (layout, widgets) snapshot.
type State struct {
	Layout  []LayoutItem            `json:"layout"`
	Widgets map[string]WidgetConfig `json:"widgets"`
}

// NewState returns an empty state with non-nil collections so it encodes as
// `{"layout":[],"widgets":{}}`.
func NewState() State {
	return State{Layout: []LayoutItem{}, Widgets: map[string]WidgetConfig{}}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	return State{Layout: CloneLayout(s.Layout), Widgets: CloneWidgets(s.Widgets)}
}

// CloneLayout copies a layout, returning an empty non-nil slice for nil input.
func CloneLayout(layout []LayoutItem) []LayoutItem {
	out := make([]LayoutItem, len(layout))
	copy(out, layout)
	return out
}

// CloneWidgets deep-copies a widget map, returning an empty map for nil input.
func CloneWidgets(widgets map[string]WidgetConfig) map[string]WidgetConfig {
	out := make(map[string]WidgetConfig, len(widgets))
	for id, cfg := range widgets {
		out[id] = cfg.Clone()
	}
	return out
}

// NormalizeLayout applies LayoutItem.Normalize to every item.
func NormalizeLayout(layout []LayoutItem) []LayoutItem {
	out := make([]LayoutItem, len(layout))
	for i, item := range layout {
		out[i] = item.Normalize()
	}
	return out
}

// ValidateLayout checks every item and id uniqueness.
func ValidateLayout(layout []LayoutItem) error {
	seen := make(map[string]struct{}, len(layout))
	for _, item := range layout {
		if err := item.Validate(); err != nil {
			return err
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("layout item %s: duplicate id", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

// ValidateWidgets checks keys and every config.
func ValidateWidgets(widgets map[string]WidgetConfig) error {
	for id, cfg := range widgets {
		if id == "" {
			return fmt.Errorf("widgets: empty id")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("widget %s: %w", id, err)
		}
	}
	return nil
}

// Find returns the layout item with the given id.
func (s State) Find(id string) (LayoutItem, bool) {
	for _, item := range s.Layout {
		if item.ID == id {
			return item, true
		}
	}
	return LayoutItem{}, false
}

// Bottom returns the first free row below every item.
func (s State) Bottom() int {
	bottom := 0
	for _, item := range s.Layout {
		if b := item.Bottom(); b > bottom {
			bottom = b
		}
	}
	return bottom
}

// Orphans lists widget ids that have no layout item.
func (s State) Orphans() []string {
	var ids []string
	for id := range s.Widgets {
		if _, ok := s.Find(id); !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// ParseLayoutSize maps a string to a LayoutSize, accepting "random".
func ParseLayoutSize(s string) (LayoutSize, error) {
	switch LayoutSize(s) {
	case LayoutSM, LayoutMD, LayoutLG, LayoutXL, LayoutRandom:
		return LayoutSize(s), nil
	case "":
		return LayoutMD, nil
	}
	return "", fmt.Errorf("unknown layout size %q", s)
}

// ParseChartType maps a string to a ChartType; empty means line.
func ParseChartType(s string) (ChartType, error) {
	if s == "" {
		return ChartLine, nil
	}
	if t := ChartType(s); t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown chart type %q", s)
}

// FormatID renders a numeric widget id.
func FormatID(n int64) string { return strconv.FormatInt(n, 10) }
