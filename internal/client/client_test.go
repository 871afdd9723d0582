package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"gridboard/internal/adapters/layout"
	"gridboard/internal/client"
	"gridboard/internal/infra/persistence/memory"
	"gridboard/pkg/dashboard"
)

func newServer(t *testing.T) (*client.Client, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	srv := httptest.NewServer(layout.NewHandler(store, nil))
	t.Cleanup(srv.Close)
	return client.New(srv.URL+"/", srv.Client()), store
}

func TestClientRoundTrip(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	state, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(state.Layout) != 0 || len(state.Widgets) != 0 {
		t.Fatalf("expected empty state, got %+v", state)
	}

	want := dashboard.State{
		Layout: []dashboard.LayoutItem{{ID: "1", X: 0, Y: 0, W: 4, H: 3}, {ID: "2", X: 4, Y: 0, W: 2, H: 2}},
		Widgets: map[string]dashboard.WidgetConfig{
			"1": {Type: dashboard.ChartLine, Label: "A", Data: []float64{1}, Labels: []string{"1"}},
			"2": {Type: dashboard.ChartArea, Label: "B", Data: []float64{2, 3}, Labels: []string{"1", "2"}, LayoutSizeKey: dashboard.LayoutSM},
		},
	}
	if _, err := c.Replace(ctx, dashboard.ReplaceAll(want)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	cfg, err := c.GetWidget(ctx, "2")
	if err != nil || cfg.Label != "B" {
		t.Fatalf("get widget: %+v %v", cfg, err)
	}

	after, err := c.DeleteWidget(ctx, "1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(after.Layout) != 1 || after.Layout[0].ID != "2" || len(after.Widgets) != 1 {
		t.Fatalf("unexpected state after delete %+v", after)
	}
}

func TestClientLayoutOnlyReplaceKeepsWidgets(t *testing.T) {
	c, store := newServer(t)
	ctx := context.Background()
	widgets := map[string]dashboard.WidgetConfig{"9": {Type: dashboard.ChartBar, Data: []float64{}, Labels: []string{}}}
	if _, err := store.Replace(ctx, dashboard.ReplaceWidgets(widgets)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	state, err := c.Replace(ctx, dashboard.ReplaceLayout(nil))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(state.Layout) != 0 || len(state.Widgets) != 1 {
		t.Fatalf("widgets should survive a layout-only write, got %+v", state)
	}
}

func TestClientErrors(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	_, err := c.GetWidget(ctx, "nope")
	if !errors.Is(err, dashboard.ErrNotFound) || !client.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := c.GetWidget(ctx, ""); !errors.Is(err, dashboard.ErrMissingID) {
		t.Fatalf("expected missing id, got %v", err)
	}
	if _, err := c.DeleteWidget(ctx, ""); !errors.Is(err, dashboard.ErrMissingID) {
		t.Fatalf("expected missing id on delete, got %v", err)
	}
	if _, err := c.Replace(ctx, dashboard.Replacement{}); !errors.Is(err, dashboard.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	if _, err := client.New(base, nil).Get(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}
}
