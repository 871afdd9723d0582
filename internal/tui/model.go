// Package tui is the terminal dashboard view. It renders the grid from the
// controller's state and turns key presses into controller mutations; every
// controller call runs as a tea.Cmd so the view never blocks on the network.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"gridboard/internal/controller"
	"gridboard/pkg/dashboard"
)

// GridColumns is the number of grid units across the board.
const GridColumns = 12

// --- Messages ---

type loadedMsg struct{}

type mutatedMsg struct {
	op  string
	id  string
	err error
}

type detailMsg struct{ err error }

type tickMsg struct{}

// changedMsg means the controller's state or save flags moved.
type changedMsg struct{}

// --- Key bindings ---

type keyMap struct {
	Add        key.Binding
	AddNamed   key.Binding
	AddRandom  key.Binding
	Edit       key.Binding
	Type       key.Binding
	Size       key.Binding
	Resize     key.Binding
	Delete     key.Binding
	Regenerate key.Binding
	BulkSize   key.Binding
	Next       key.Binding
	Prev       key.Binding
	Left       key.Binding
	Right      key.Binding
	Up         key.Binding
	Down       key.Binding
	Detail     key.Binding
	Esc        key.Binding
	Reload     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Add:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add widget")),
	AddNamed:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "add with label")),
	AddRandom:  key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "add random size")),
	Edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit label")),
	Type:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "chart type")),
	Size:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "dataset size")),
	Resize:     key.NewBinding(key.WithKeys("1", "2", "3", "4"), key.WithHelp("1-4", "sm/md/lg/xl")),
	Delete:     key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove")),
	Regenerate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "regenerate all")),
	BulkSize:   key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bulk size")),
	Next:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next widget")),
	Prev:       key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev widget")),
	Left:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("h/left", "move left")),
	Right:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("l/right", "move right")),
	Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "move up")),
	Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "move down")),
	Detail:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Esc:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close details")),
	Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Edit, k.Type, k.Size, k.Delete, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Add, k.AddNamed, k.AddRandom, k.Edit, k.Type, k.Size, k.Resize},
		{k.Delete, k.Regenerate, k.BulkSize, k.Reload},
		{k.Next, k.Prev, k.Left, k.Right, k.Up, k.Down},
		{k.Detail, k.Esc, k.Help, k.Quit},
	}
}

var resizeKeys = map[string]dashboard.LayoutSize{
	"1": dashboard.LayoutSM,
	"2": dashboard.LayoutMD,
	"3": dashboard.LayoutLG,
	"4": dashboard.LayoutXL,
}

// modalKind is the text prompt currently open, if any.
type modalKind int

const (
	modalNone modalKind = iota
	modalEditLabel
	modalNewWidget
)

// --- Model ---

// Model is the bubbletea model for the dashboard.
type Model struct {
	ctx     context.Context
	ctrl    *controller.Controller
	refresh time.Duration

	state    dashboard.State
	loading  bool
	saving   bool
	dirty    bool
	selected int
	bulkSize dashboard.SizeCategory
	detail   *controller.WidgetData
	status   string
	lastSync time.Time

	modal      modalKind
	modalForID string
	input      textinput.Model

	width    int
	height   int
	help     help.Model
	showHelp bool
}

// New builds a model over ctrl. refresh is how often the board is reloaded
// from the server while idle; zero disables reloading.
func New(ctx context.Context, ctrl *controller.Controller, refresh time.Duration) Model {
	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		refresh:  refresh,
		state:    dashboard.NewState(),
		loading:  true,
		bulkSize: dashboard.SizeSmall,
		help:     help.New(),
	}
	m.input = textinput.New()
	m.input.Placeholder = "Label"
	m.input.CharLimit = 80
	m.input.Width = 40
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), tickEvery(), m.waitForChange())
}

func tickEvery() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m Model) load() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctrl.Load(ctx)
		return loadedMsg{}
	}
}

// waitForChange delivers a changedMsg on the controller's next change
// signal, so optimistic edits show while their save is still running.
func (m Model) waitForChange() tea.Cmd {
	ctx, changes := m.ctx, m.ctrl.Changes()
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			return changedMsg{}
		}
	}
}

func (m Model) mutate(op string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		id, err := fn(ctx)
		return mutatedMsg{op: op, id: id, err: err}
	}
}

// sync copies the controller's view into the model.
func (m *Model) sync() {
	m.state = m.ctrl.State()
	m.loading = m.ctrl.Loading()
	m.saving = m.ctrl.Saving()
	m.dirty = m.ctrl.Dirty()
	if m.selected >= len(m.state.Layout) {
		m.selected = max(0, len(m.state.Layout)-1)
	}
}

func (m Model) selectedID() (string, bool) {
	if m.selected < 0 || m.selected >= len(m.state.Layout) {
		return "", false
	}
	return m.state.Layout[m.selected].ID, true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case loadedMsg:
		m.sync()
		m.lastSync = time.Now()

	case changedMsg:
		m.sync()
		return m, m.waitForChange()

	case mutatedMsg:
		m.sync()
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.op, msg.err)
			return m, nil
		}
		m.status = msg.op
		if msg.id != "" {
			for i, item := range m.state.Layout {
				if item.ID == msg.id {
					m.selected = i
				}
			}
		}
		if m.detail != nil {
			if _, ok := m.state.Widgets[m.detail.ID()]; !ok {
				m.detail = nil
			}
		}

	case detailMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("widget fetch failed: %v", msg.err)
		}

	case tickMsg:
		m.sync()
		if m.refresh > 0 && !m.loading && !m.saving && time.Since(m.lastSync) >= m.refresh {
			m.lastSync = time.Now()
			return m, tea.Batch(tickEvery(), m.load())
		}
		return m, tickEvery()

	default:
		if m.modal != modalNone {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.modal != modalNone {
		return m.handleModalKey(msg)
	}
	ctrl := m.ctrl
	id, hasSelection := m.selectedID()

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, keys.Reload):
		return m, m.load()

	case key.Matches(msg, keys.Add), key.Matches(msg, keys.AddRandom):
		layout := dashboard.LayoutMD
		if key.Matches(msg, keys.AddRandom) {
			layout = dashboard.LayoutRandom
		}
		req := controller.CreateRequest{Size: m.bulkSize, Layout: layout}
		return m, m.mutate("added widget", func(ctx context.Context) (string, error) {
			return ctrl.CreateWidget(ctx, req)
		})

	case key.Matches(msg, keys.AddNamed):
		return m.openModal(modalNewWidget, "", "")

	case key.Matches(msg, keys.Next):
		if n := len(m.state.Layout); n > 0 {
			m.selected = (m.selected + 1) % n
		}

	case key.Matches(msg, keys.Prev):
		if n := len(m.state.Layout); n > 0 {
			m.selected = (m.selected - 1 + n) % n
		}

	case key.Matches(msg, keys.BulkSize):
		m.bulkSize = nextSize(m.bulkSize)
		m.status = "bulk size " + string(m.bulkSize)

	case key.Matches(msg, keys.Regenerate):
		size := m.bulkSize
		return m, m.mutate("regenerated at "+string(size), func(ctx context.Context) (string, error) {
			return "", ctrl.RegenerateAll(ctx, size)
		})

	case key.Matches(msg, keys.Esc):
		m.detail = nil

	case !hasSelection:
		return m, nil

	case key.Matches(msg, keys.Edit):
		label := m.state.Widgets[id].Label
		return m.openModal(modalEditLabel, id, label)

	case key.Matches(msg, keys.Type):
		next := nextType(m.state.Widgets[id].Type)
		return m, m.mutate("type "+string(next), func(ctx context.Context) (string, error) {
			return id, ctrl.UpdateWidget(ctx, id, controller.WidgetPatch{Type: &next})
		})

	case key.Matches(msg, keys.Size):
		next := nextSize(m.state.Widgets[id].Size)
		return m, m.mutate("size "+string(next), func(ctx context.Context) (string, error) {
			return id, ctrl.UpdateWidget(ctx, id, controller.WidgetPatch{Size: &next})
		})

	case key.Matches(msg, keys.Resize):
		size := resizeKeys[msg.String()]
		return m, m.mutate("resized to "+string(size), func(ctx context.Context) (string, error) {
			return id, ctrl.ResizeWidget(ctx, id, size, dashboard.DefaultSizeMap)
		})

	case key.Matches(msg, keys.Delete):
		return m, m.mutate("removed widget", func(ctx context.Context) (string, error) {
			return "", ctrl.RemoveWidget(ctx, id)
		})

	case key.Matches(msg, keys.Left), key.Matches(msg, keys.Right),
		key.Matches(msg, keys.Up), key.Matches(msg, keys.Down):
		layout, moved := m.moved(msg)
		if !moved {
			return m, nil
		}
		m.state.Layout = layout
		return m, m.mutate("moved", func(ctx context.Context) (string, error) {
			ctrl.OnLayoutChange(ctx, layout)
			return id, nil
		})

	case key.Matches(msg, keys.Detail):
		cell := ctrl.Widget(id)
		m.detail = cell
		ctx, api := m.ctx, ctrl.API()
		return m, func() tea.Msg {
			return detailMsg{err: cell.Refresh(ctx, api)}
		}
	}
	return m, nil
}

func (m Model) openModal(kind modalKind, id, value string) (tea.Model, tea.Cmd) {
	m.modal = kind
	m.modalForID = id
	m.input.SetValue(value)
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

func (m *Model) closeModal() {
	m.modal = modalNone
	m.modalForID = ""
	m.input.SetValue("")
	m.input.Blur()
}

// handleModalKey routes every key to the text input; enter saves and esc
// cancels.
func (m Model) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		m.closeModal()
		m.status = "cancelled"
		return m, nil

	case tea.KeyEnter:
		kind, id := m.modal, m.modalForID
		label := strings.TrimSpace(m.input.Value())
		m.closeModal()
		ctrl := m.ctrl
		if kind == modalNewWidget {
			req := controller.CreateRequest{Label: label, Size: m.bulkSize, Layout: dashboard.LayoutMD}
			return m, m.mutate("added widget", func(ctx context.Context) (string, error) {
				return ctrl.CreateWidget(ctx, req)
			})
		}
		return m, m.mutate("renamed widget", func(ctx context.Context) (string, error) {
			return id, ctrl.UpdateWidget(ctx, id, controller.WidgetPatch{Label: &label})
		})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// moved returns the layout with the selected item shifted one grid unit,
// kept inside the board's columns. It plays the role of the grid surface's
// drag events.
func (m Model) moved(msg tea.KeyMsg) ([]dashboard.LayoutItem, bool) {
	layout := dashboard.CloneLayout(m.state.Layout)
	item := &layout[m.selected]
	before := *item
	switch {
	case key.Matches(msg, keys.Left):
		item.X--
	case key.Matches(msg, keys.Right):
		item.X++
	case key.Matches(msg, keys.Up):
		item.Y--
	case key.Matches(msg, keys.Down):
		item.Y++
	}
	item.X = min(max(item.X, 0), max(GridColumns-item.W, 0))
	item.Y = max(item.Y, 0)
	return layout, *item != before
}

func nextType(t dashboard.ChartType) dashboard.ChartType {
	for i, c := range dashboard.ChartTypes {
		if c == t {
			return dashboard.ChartTypes[(i+1)%len(dashboard.ChartTypes)]
		}
	}
	return dashboard.ChartTypes[0]
}

func nextSize(s dashboard.SizeCategory) dashboard.SizeCategory {
	for i, c := range dashboard.SizeCategories {
		if c == s {
			return dashboard.SizeCategories[(i+1)%len(dashboard.SizeCategories)]
		}
	}
	return dashboard.SizeCategories[0]
}
