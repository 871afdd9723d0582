package controller

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"sync"
	"testing"
	"time"

	"gridboard/internal/dataset"
	"gridboard/internal/infra/persistence/memory"
	"gridboard/pkg/dashboard"
)

// fakeAPI serves the sync API from a memory store and can be told to fail.
type fakeAPI struct {
	store *memory.Store

	mu          sync.Mutex
	failGet     error
	failReplace error
	failDelete  error
	replaces    int
	gate        chan struct{}
	// fetched is signalled once Get has read the store; Get then waits on hold.
	fetched chan struct{}
	hold    chan struct{}
}

func newFakeAPI() *fakeAPI { return &fakeAPI{store: memory.NewStore()} }

func (f *fakeAPI) Get(ctx context.Context) (dashboard.State, error) {
	f.mu.Lock()
	err, fetched, hold := f.failGet, f.fetched, f.hold
	f.mu.Unlock()
	if err != nil {
		return dashboard.State{}, err
	}
	state, err := f.store.Read(ctx)
	if fetched != nil {
		fetched <- struct{}{}
		<-hold
	}
	return state, err
}

func (f *fakeAPI) Replace(ctx context.Context, r dashboard.Replacement) (dashboard.State, error) {
	f.mu.Lock()
	f.replaces++
	err, gate := f.failReplace, f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return dashboard.State{}, err
	}
	return f.store.Replace(ctx, r)
}

func (f *fakeAPI) DeleteWidget(ctx context.Context, id string) (dashboard.State, error) {
	f.mu.Lock()
	err := f.failDelete
	f.mu.Unlock()
	if err != nil {
		return dashboard.State{}, err
	}
	return f.store.DeleteWidget(ctx, id)
}

func (f *fakeAPI) GetWidget(ctx context.Context, id string) (dashboard.WidgetConfig, error) {
	return f.store.GetWidget(ctx, id)
}

func (f *fakeAPI) replaceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replaces
}

func newController(api SyncAPI) *Controller {
	return New(api, WithGenerator(dataset.NewGenerator(rand.NewPCG(7, 11))))
}

func serverState(t *testing.T, api *fakeAPI) dashboard.State {
	t.Helper()
	state, err := api.store.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return state
}

func TestLoadAdoptsServerState(t *testing.T) {
	api := newFakeAPI()
	api.store.ImportState(dashboard.State{
		Layout:  []dashboard.LayoutItem{{ID: "1", X: -3, Y: 2, W: 0, H: 4}},
		Widgets: map[string]dashboard.WidgetConfig{"1": {Type: dashboard.ChartBar, Data: []float64{1}, Labels: []string{"1"}}},
	})
	c := newController(api)
	if !c.Loading() {
		t.Fatalf("expected loading before Load")
	}
	c.Load(context.Background())
	if c.Loading() {
		t.Fatalf("expected loading to end")
	}
	state := c.State()
	if len(state.Layout) != 1 || state.Layout[0] != (dashboard.LayoutItem{ID: "1", X: 0, Y: 2, W: 1, H: 4}) {
		t.Fatalf("expected normalized layout, got %+v", state.Layout)
	}
	if state.Widgets["1"].Type != dashboard.ChartBar {
		t.Fatalf("unexpected widgets %+v", state.Widgets)
	}
}

func TestLoadFailureLeavesEmptyState(t *testing.T) {
	api := newFakeAPI()
	api.failGet = errors.New("offline")
	c := newController(api)
	c.Load(context.Background())
	if c.Loading() {
		t.Fatalf("loading should end on failure")
	}
	state := c.State()
	if len(state.Layout) != 0 || len(state.Widgets) != 0 {
		t.Fatalf("expected empty state, got %+v", state)
	}
}

func TestCreateTinyBarWidget(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)
	id, err := c.CreateWidget(context.Background(), CreateRequest{Type: dashboard.ChartBar, Label: "X", Size: dashboard.SizeTiny})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	state := c.State()
	if len(state.Layout) != 1 || len(state.Widgets) != 1 || state.Layout[0].ID != id {
		t.Fatalf("expected one item and one config under %s, got %+v", id, state)
	}
	cfg := state.Widgets[id]
	if cfg.Type != dashboard.ChartBar || cfg.Label != "X" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if n := len(cfg.Data); n < 10 || n >= 90 || n != len(cfg.Labels) {
		t.Fatalf("tiny series length %d (labels %d)", n, len(cfg.Labels))
	}
	if item := state.Layout[0]; item.W != 4 || item.H != 3 {
		t.Fatalf("expected default md footprint, got %+v", item)
	}
	if !reflect.DeepEqual(serverState(t, api), state) {
		t.Fatalf("server did not receive the snapshot")
	}
}

func TestCreateWidgetGeometry(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)
	ctx := context.Background()
	first, err := c.CreateWidget(ctx, CreateRequest{Layout: dashboard.LayoutXL})
	if err != nil {
		t.Fatalf("create xl: %v", err)
	}
	second, err := c.CreateWidget(ctx, CreateRequest{W: 3, H: 5, Layout: dashboard.LayoutSM})
	if err != nil {
		t.Fatalf("create explicit: %v", err)
	}
	third, err := c.CreateWidget(ctx, CreateRequest{Layout: dashboard.LayoutRandom})
	if err != nil {
		t.Fatalf("create random: %v", err)
	}
	state := c.State()
	a, _ := state.Find(first)
	b, _ := state.Find(second)
	r, _ := state.Find(third)
	if a.W != 8 || a.H != 6 || a.Y != 0 {
		t.Fatalf("unexpected xl item %+v", a)
	}
	if b.W != 3 || b.H != 5 || b.Y != 6 {
		t.Fatalf("explicit size should win and stack below, got %+v", b)
	}
	if r.W < 2 || r.W > 8 || r.H < 2 || r.H > 6 {
		t.Fatalf("random footprint out of range: %+v", r)
	}
	if state.Widgets[first].LayoutSizeKey != dashboard.LayoutXL || state.Widgets[second].LayoutSizeKey != "" {
		t.Fatalf("unexpected size keys %+v", state.Widgets)
	}
	if state.Widgets[first].Type != dashboard.ChartLine || state.Widgets[first].Label != "Series" {
		t.Fatalf("expected defaults, got %+v", state.Widgets[first])
	}
}

func TestCreateWidgetRejectsUnknownNames(t *testing.T) {
	c := newController(newFakeAPI())
	ctx := context.Background()
	if _, err := c.CreateWidget(ctx, CreateRequest{Size: "huge"}); !errors.Is(err, dataset.ErrUnknownSize) {
		t.Fatalf("expected unknown size, got %v", err)
	}
	if _, err := c.CreateWidget(ctx, CreateRequest{Type: "pie"}); err == nil {
		t.Fatalf("expected chart type error")
	}
	if _, err := c.CreateWidget(ctx, CreateRequest{Layout: "xxl"}); err == nil {
		t.Fatalf("expected layout size error")
	}
	if len(c.State().Layout) != 0 {
		t.Fatalf("rejected creates must not change state")
	}
}

func TestWidgetIDsAreMonotonic(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	c := New(newFakeAPI(), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	a, _ := c.CreateWidget(ctx, CreateRequest{Size: dashboard.SizeTiny})
	b, _ := c.CreateWidget(ctx, CreateRequest{Size: dashboard.SizeTiny})
	if a != "1700000000000" || b != "1700000000001" {
		t.Fatalf("unexpected ids %s %s", a, b)
	}
}

func TestUpdateSizeRegeneratesOnlyThatWidget(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)
	ctx := context.Background()
	target, _ := c.CreateWidget(ctx, CreateRequest{Size: dashboard.SizeTiny})
	other, _ := c.CreateWidget(ctx, CreateRequest{Size: dashboard.SizeSmall})
	before := c.State()

	large := dashboard.SizeLarge
	if err := c.UpdateWidget(ctx, target, WidgetPatch{Size: &large}); err != nil {
		t.Fatalf("update: %v", err)
	}
	after := c.State()
	if n := len(after.Widgets[target].Data); n < 10000 || n >= 20000 || n != len(after.Widgets[target].Labels) {
		t.Fatalf("large series length %d", n)
	}
	if after.Widgets[target].Size != dashboard.SizeLarge {
		t.Fatalf("size not recorded: %q", after.Widgets[target].Size)
	}
	if !reflect.DeepEqual(before.Widgets[other], after.Widgets[other]) {
		t.Fatalf("other widget changed")
	}
	if !reflect.DeepEqual(before.Layout, after.Layout) {
		t.Fatalf("layout changed")
	}
}

func TestUpdateWithoutSizeChangeKeepsSeries(t *testing.T) {
	c := newController(newFakeAPI())
	ctx := context.Background()
	id, _ := c.CreateWidget(ctx, CreateRequest{Size: dashboard.SizeTiny})
	before := c.State().Widgets[id]

	area := dashboard.ChartArea
	label := "Renamed"
	tiny := dashboard.SizeTiny
	if err := c.UpdateWidget(ctx, id, WidgetPatch{Type: &area, Label: &label, Size: &tiny}); err != nil {
		t.Fatalf("update: %v", err)
	}
	after := c.State().Widgets[id]
	if after.Type != dashboard.ChartArea || after.Label != "Renamed" {
		t.Fatalf("merge not applied: %+v", after)
	}
	if !reflect.DeepEqual(before.Data, after.Data) || !reflect.DeepEqual(before.Labels, after.Labels) {
		t.Fatalf("series should be untouched when size is unchanged")
	}
}

func TestUpdateUnknownAndPlaceholder(t *testing.T) {
	api := newFakeAPI()
	api.store.ImportState(dashboard.State{Layout: []dashboard.LayoutItem{{ID: "7", W: 2, H: 2}}})
	c := newController(api)
	ctx := context.Background()
	c.Load(ctx)

	label := "Filled"
	if err := c.UpdateWidget(ctx, "missing", WidgetPatch{Label: &label}); !errors.Is(err, dashboard.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := c.UpdateWidget(ctx, "7", WidgetPatch{Label: &label}); err != nil {
		t.Fatalf("update placeholder: %v", err)
	}
	cfg := c.State().Widgets["7"]
	if cfg.Label != "Filled" || cfg.Type != dashboard.ChartLine || len(cfg.Data) == 0 || len(cfg.Data) != len(cfg.Labels) {
		t.Fatalf("placeholder should get a fresh config, got %+v", cfg)
	}
	bogus := dashboard.SizeCategory("giant")
	if err := c.UpdateWidget(ctx, "7", WidgetPatch{Size: &bogus}); !errors.Is(err, dataset.ErrUnknownSize) {
		t.Fatalf("expected unknown size, got %v", err)
	}
}

func TestRemoveWidgetAdoptsServerState(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)
	ctx := context.Background()
	keep, _ := c.CreateWidget(ctx, CreateRequest{Size: dashboard.SizeTiny})
	drop, _ := c.CreateWidget(ctx, CreateRequest{Size: dashboard.SizeTiny})

	if err := c.RemoveWidget(ctx, drop); err != nil {
		t.Fatalf("remove: %v", err)
	}
	state := c.State()
	if _, ok := state.Find(drop); ok {
		t.Fatalf("layout item survived")
	}
	if _, ok := state.Widgets[drop]; ok {
		t.Fatalf("config survived")
	}
	if _, ok := state.Widgets[keep]; !ok || len(state.Layout) != 1 {
		t.Fatalf("unrelated widget lost: %+v", state)
	}
	if !reflect.DeepEqual(serverState(t, api), state) {
		t.Fatalf("local state should equal the server's")
	}
	if err := c.RemoveWidget(ctx, ""); !errors.Is(err, dashboard.ErrMissingID) {
		t.Fatalf("expected missing id, got %v", err)
	}
}

func TestRemoveWidgetFailureKeepsLocalState(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)
	ctx := context.Background()
	id, _ := c.CreateWidget(ctx, CreateRequest{Size: dashboard.SizeTiny})
	api.failDelete = errors.New("boom")
	if err := c.RemoveWidget(ctx, id); err != nil {
		t.Fatalf("failures are swallowed, got %v", err)
	}
	if _, ok := c.State().Widgets[id]; !ok {
		t.Fatalf("widget should remain locally")
	}
	if !c.Dirty() {
		t.Fatalf("expected dirty flag after failed delete")
	}
}

func TestResizeWidget(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)
	ctx := context.Background()
	id, _ := c.CreateWidget(ctx, CreateRequest{Size: dashboard.SizeTiny})

	if err := c.ResizeWidget(ctx, id, dashboard.LayoutLG, nil); err != nil {
		t.Fatalf("resize: %v", err)
	}
	item, _ := c.State().Find(id)
	if item.W != 6 || item.H != 4 || c.State().Widgets[id].LayoutSizeKey != dashboard.LayoutLG {
		t.Fatalf("unexpected resize result %+v", item)
	}

	custom := map[dashboard.LayoutSize]dashboard.Dimensions{dashboard.LayoutSM: {W: 1, H: 1}}
	if err := c.ResizeWidget(ctx, id, dashboard.LayoutXL, custom); err != nil {
		t.Fatalf("resize fallback: %v", err)
	}
	item, _ = c.State().Find(id)
	if item.W != 4 || item.H != 3 {
		t.Fatalf("expected fallback footprint, got %+v", item)
	}
	if got := serverState(t, api).Widgets[id].LayoutSizeKey; got != dashboard.LayoutXL {
		t.Fatalf("server should see recorded key, got %q", got)
	}
	if err := c.ResizeWidget(ctx, "nope", dashboard.LayoutSM, nil); !errors.Is(err, dashboard.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegenerateAllWritesOneSnapshot(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)
	ctx := context.Background()
	a, _ := c.CreateWidget(ctx, CreateRequest{Type: dashboard.ChartBar, Label: "A", Size: dashboard.SizeTiny})
	b, _ := c.CreateWidget(ctx, CreateRequest{Type: dashboard.ChartArea, Label: "B", Size: dashboard.SizeTiny})
	before := c.State()
	writes := api.replaceCount()

	if err := c.RegenerateAll(ctx, dashboard.SizeSmall); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if got := api.replaceCount() - writes; got != 1 {
		t.Fatalf("expected a single snapshot write, got %d", got)
	}
	after := c.State()
	if !reflect.DeepEqual(before.Layout, after.Layout) {
		t.Fatalf("geometry changed")
	}
	for _, id := range []string{a, b} {
		cfg := after.Widgets[id]
		if cfg.Type != before.Widgets[id].Type || cfg.Label != before.Widgets[id].Label {
			t.Fatalf("type or label changed for %s", id)
		}
		if n := len(cfg.Data); n < 50 || n >= 450 || n != len(cfg.Labels) {
			t.Fatalf("small series length %d for %s", n, id)
		}
	}
	if err := c.RegenerateAll(ctx, "huge"); !errors.Is(err, dataset.ErrUnknownSize) {
		t.Fatalf("expected unknown size, got %v", err)
	}
}

func TestPersistFailureIsNotRolledBack(t *testing.T) {
	api := newFakeAPI()
	api.failReplace = errors.New("server down")
	c := newController(api)
	id, err := c.CreateWidget(context.Background(), CreateRequest{Size: dashboard.SizeTiny})
	if err != nil {
		t.Fatalf("persistence failures must be swallowed, got %v", err)
	}
	if _, ok := c.State().Widgets[id]; !ok {
		t.Fatalf("local state should keep the widget")
	}
	if !c.Dirty() || c.Saving() {
		t.Fatalf("expected dirty and idle, got dirty=%v saving=%v", c.Dirty(), c.Saving())
	}
	if len(serverState(t, api).Layout) != 0 {
		t.Fatalf("server should be unchanged")
	}

	api.mu.Lock()
	api.failReplace = nil
	api.mu.Unlock()
	c.OnLayoutChange(context.Background(), c.State().Layout)
	if c.Dirty() {
		t.Fatalf("a successful write should clear the dirty flag")
	}
}

func TestSavingWhileWriteInFlight(t *testing.T) {
	api := newFakeAPI()
	api.gate = make(chan struct{})
	c := newController(api)
	done := make(chan struct{})
	go func() {
		c.OnLayoutChange(context.Background(), []dashboard.LayoutItem{{ID: "1", W: 1, H: 1}})
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !c.Saving() {
		if time.Now().After(deadline) {
			t.Fatalf("saving never reported")
		}
		time.Sleep(time.Millisecond)
	}
	if len(c.State().Layout) != 1 {
		t.Fatalf("local state should update before the write completes")
	}
	close(api.gate)
	<-done
	if c.Saving() {
		t.Fatalf("saving should clear after the write")
	}
}

func TestLoadOverlappingMutationIsDiscarded(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)
	c.Load(context.Background())

	api.mu.Lock()
	api.fetched, api.hold = make(chan struct{}), make(chan struct{})
	api.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.Load(context.Background())
		close(done)
	}()
	<-api.fetched

	id, err := c.CreateWidget(context.Background(), CreateRequest{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	close(api.hold)
	<-done

	if _, ok := c.State().Widgets[id]; !ok {
		t.Fatalf("stale load dropped widget %s", id)
	}
	c.OnLayoutChange(context.Background(), c.State().Layout)
	if _, ok := serverState(t, api).Widgets[id]; !ok {
		t.Fatalf("widget %s missing from the server after the next write", id)
	}

	api.mu.Lock()
	api.fetched, api.hold = nil, nil
	api.mu.Unlock()
	api.store.ImportState(dashboard.NewState())
	c.Load(context.Background())
	if len(c.State().Widgets) != 0 {
		t.Fatalf("a quiet load should adopt the server state, got %+v", c.State().Widgets)
	}
}

func TestLoadDuringSaveIsDiscarded(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)
	c.Load(context.Background())

	api.mu.Lock()
	api.gate = make(chan struct{})
	api.mu.Unlock()
	created := make(chan string)
	go func() {
		id, _ := c.CreateWidget(context.Background(), CreateRequest{})
		created <- id
	}()
	for !c.Saving() {
		time.Sleep(time.Millisecond)
	}
	c.Load(context.Background())
	if len(c.State().Layout) != 1 {
		t.Fatalf("load during a save replaced local state: %+v", c.State().Layout)
	}
	close(api.gate)
	<-created
}

func TestChangesSignalBeforeSaveCompletes(t *testing.T) {
	api := newFakeAPI()
	c := newController(api)
	c.Load(context.Background())
	select {
	case <-c.Changes():
	default:
		t.Fatalf("load should signal a change")
	}

	api.mu.Lock()
	api.gate = make(chan struct{})
	api.mu.Unlock()
	done := make(chan struct{})
	go func() {
		c.OnLayoutChange(context.Background(), []dashboard.LayoutItem{{ID: "1", W: 2, H: 2}})
		close(done)
	}()

	select {
	case <-c.Changes():
	case <-time.After(2 * time.Second):
		t.Fatalf("no change signal while the write was blocked")
	}
	if !c.Saving() || len(c.State().Layout) != 1 {
		t.Fatalf("expected the optimistic layout with a save in flight, got saving=%v layout=%+v", c.Saving(), c.State().Layout)
	}
	close(api.gate)
	<-done
	select {
	case <-c.Changes():
	default:
		t.Fatalf("finishing the save should signal a change")
	}
}
