package dashboard

import (
	"encoding/json"
	"testing"
)

func TestLayoutItemUnmarshalAcceptsNumericIDs(t *testing.T) {
	var items []LayoutItem
	payload := `[{"id":17,"x":1.9,"y":2,"w":4,"h":3},{"id":"abc","x":0,"y":0}]`
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if items[0].ID != "17" || items[0].X != 1 || items[0].W != 4 {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].ID != "abc" || items[1].W != 0 || items[1].H != 0 {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
	if got := items[1].Normalize(); got.W != 1 || got.H != 1 {
		t.Fatalf("expected defaults after normalize, got %+v", got)
	}
}

func TestLayoutItemUnmarshalRejectsObjectID(t *testing.T) {
	var item LayoutItem
	if err := json.Unmarshal([]byte(`{"id":{"nested":true}}`), &item); err == nil {
		t.Fatalf("expected error for object id")
	}
}

func TestNormalizeClampsNegativePositions(t *testing.T) {
	got := LayoutItem{ID: "a", X: -3, Y: -1, W: -2, H: 0}.Normalize()
	want := LayoutItem{ID: "a", X: 0, Y: 0, W: 1, H: 1}
	if got != want {
		t.Fatalf("normalize: got %+v want %+v", got, want)
	}
}

func TestValidateLayout(t *testing.T) {
	cases := []struct {
		name    string
		layout  []LayoutItem
		wantErr bool
	}{
		{"empty", nil, false},
		{"valid", []LayoutItem{{ID: "1", W: 1, H: 1}, {ID: "2", X: 3, W: 2, H: 2}}, false},
		{"duplicate", []LayoutItem{{ID: "1", W: 1, H: 1}, {ID: "1", W: 1, H: 1}}, true},
		{"empty id", []LayoutItem{{W: 1, H: 1}}, true},
		{"zero width", []LayoutItem{{ID: "1", H: 1}}, true},
		{"negative x", []LayoutItem{{ID: "1", X: -1, W: 1, H: 1}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateLayout(tc.layout)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateLayout err=%v wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestWidgetConfigValidate(t *testing.T) {
	ok := WidgetConfig{Type: ChartBar, Data: []float64{1, 2}, Labels: []string{"1", "2"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	mismatch := WidgetConfig{Type: ChartBar, Data: []float64{1}, Labels: nil}
	if err := mismatch.Validate(); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	unknown := WidgetConfig{Type: "pie"}
	if err := unknown.Validate(); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestStateCloneIsDeep(t *testing.T) {
	s := State{
		Layout:  []LayoutItem{{ID: "1", W: 1, H: 1}},
		Widgets: map[string]WidgetConfig{"1": {Type: ChartLine, Data: []float64{5}, Labels: []string{"1"}}},
	}
	c := s.Clone()
	c.Layout[0].X = 9
	w := c.Widgets["1"]
	w.Data[0] = 42
	c.Widgets["2"] = WidgetConfig{}
	if s.Layout[0].X != 0 || s.Widgets["1"].Data[0] != 5 || len(s.Widgets) != 1 {
		t.Fatalf("clone shares memory with original: %+v", s)
	}
}

func TestStateBottomAndOrphans(t *testing.T) {
	s := State{
		Layout: []LayoutItem{{ID: "1", Y: 0, W: 2, H: 3}, {ID: "2", Y: 4, W: 1, H: 2}},
		Widgets: map[string]WidgetConfig{
			"1": {Type: ChartLine},
			"9": {Type: ChartBar},
		},
	}
	if got := s.Bottom(); got != 6 {
		t.Fatalf("bottom: got %d", got)
	}
	orphans := s.Orphans()
	if len(orphans) != 1 || orphans[0] != "9" {
		t.Fatalf("orphans: got %v", orphans)
	}
}

func TestNewStateEncodesEmptyCollections(t *testing.T) {
	b, err := json.Marshal(NewState())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"layout":[],"widgets":{}}` {
		t.Fatalf("unexpected encoding: %s", b)
	}
}

func TestParseLayoutSizeAndChartType(t *testing.T) {
	if got, err := ParseLayoutSize(""); err != nil || got != LayoutMD {
		t.Fatalf("default layout size: %v %v", got, err)
	}
	if _, err := ParseLayoutSize("xxl"); err == nil {
		t.Fatalf("expected error for xxl")
	}
	if got, err := ParseChartType(""); err != nil || got != ChartLine {
		t.Fatalf("default chart type: %v %v", got, err)
	}
	if _, err := ParseChartType("pie"); err == nil {
		t.Fatalf("expected error for pie")
	}
}
