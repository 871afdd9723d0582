package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"gridboard/pkg/dashboard"
)

// rowLines is the terminal height of one grid row.
const rowLines = 3

// --- Styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1E1E2E")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#45475A"))

	selectedBoxStyle = boxStyle.
				BorderForeground(lipgloss.Color("#7C3AED"))

	placeholderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("#6C7086"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			Bold(true)

	savingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9E2AF"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#1E1E2E"))
)

// --- View rendering ---

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.loading {
		return "Loading dashboard..."
	}

	var b strings.Builder
	b.WriteString(truncateLines(m.renderTitleBar(), m.width))
	b.WriteString("\n\n")

	contentHeight := m.height - 4
	if m.showHelp {
		contentHeight -= 3
	}

	boardWidth := m.width
	var content string
	if m.detail != nil && m.width >= 60 {
		sideWidth := min(36, m.width/3)
		boardWidth = m.width - sideWidth - 1
		board := m.renderBoard(boardWidth, contentHeight)
		side := m.renderDetail(sideWidth, contentHeight)
		content = lipgloss.JoinHorizontal(lipgloss.Top, board, " ", side)
	} else {
		content = m.renderBoard(boardWidth, contentHeight)
	}
	lines := strings.Split(content, "\n")
	if len(lines) > contentHeight {
		lines = lines[:max(contentHeight, 0)]
	}
	b.WriteString(truncateLines(strings.Join(lines, "\n"), m.width))

	rendered := strings.Count(b.String(), "\n")
	for rendered < m.height-1 {
		b.WriteRune('\n')
		rendered++
	}

	switch {
	case m.modal != modalNone:
		b.WriteString(m.renderPrompt())
	case m.showHelp:
		b.WriteString(m.help.View(keys))
	default:
		b.WriteString(m.renderStatusBar())
	}
	return b.String()
}

func (m Model) renderTitleBar() string {
	title := titleStyle.Render("gridboard")
	var flags []string
	if m.saving {
		flags = append(flags, savingStyle.Render("saving..."))
	}
	if m.dirty {
		flags = append(flags, warnStyle.Render("unsaved changes"))
	}
	stats := dimStyle.Render(fmt.Sprintf("%d widgets | bulk size %s", len(m.state.Layout), m.bulkSize))
	right := strings.Join(append(flags, stats), "  ")
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(title)-lipgloss.Width(right)-1))
	return title + gap + right
}

func (m Model) renderPrompt() string {
	title := "New widget label"
	if m.modal == modalEditLabel {
		title = "Label for " + m.modalForID
	}
	line := " " + headerStyle.Render(title) + " " + m.input.View() + dimStyle.Render("  enter: save  esc: cancel")
	return ansi.Truncate(line, m.width, "")
}

func (m Model) renderStatusBar() string {
	left := " a: add | e: label | t: type | s: size | 1-4: resize | x: remove | g: regenerate | ?: help | q: quit"
	right := m.status + " "
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return statusBarStyle.Render(ansi.Truncate(left+gap+right, m.width, ""))
}

// renderBoard draws every layout item as a box on a canvas of width cells,
// in layout order, so later items paint over earlier ones where they overlap.
func (m Model) renderBoard(width, height int) string {
	if len(m.state.Layout) == 0 {
		return dimStyle.Render("No widgets yet. Press a to add one.")
	}
	cell := max(width/GridColumns, 3)
	rows := max(m.state.Bottom()*rowLines, 1)
	if height > 0 {
		rows = min(rows, height)
	}
	canvas := make([]string, rows)
	for i := range canvas {
		canvas[i] = strings.Repeat(" ", width)
	}
	for i, item := range m.state.Layout {
		x, y := item.X*cell, item.Y*rowLines
		if x >= width || y >= rows {
			continue
		}
		box := m.renderBox(item, i == m.selected, item.W*cell, item.H*rowLines)
		for j, line := range strings.Split(box, "\n") {
			if y+j >= rows {
				break
			}
			canvas[y+j] = overlay(canvas[y+j], line, x, width)
		}
	}
	return strings.Join(canvas, "\n")
}

// overlay writes line over base starting at column x, clipped to width.
func overlay(base, line string, x, width int) string {
	w := lipgloss.Width(line)
	if x+w > width {
		line = ansi.Truncate(line, width-x, "")
		w = width - x
	}
	return ansi.Truncate(base, x, "") + line + ansi.TruncateLeft(base, x+w, "")
}

func (m Model) renderBox(item dashboard.LayoutItem, selected bool, outerW, outerH int) string {
	innerW, innerH := max(outerW-2, 1), max(outerH-2, 1)
	cfg, ok := m.state.Widgets[item.ID]
	if !ok {
		body := ansi.Truncate("no config", innerW, "")
		return placeholderStyle.Width(innerW).Height(innerH).Render(body)
	}
	style := boxStyle
	if selected {
		style = selectedBoxStyle
	}
	title := ansi.Truncate(fmt.Sprintf("%s · %s", cfg.Label, cfg.Type), innerW, "…")
	lines := []string{headerStyle.Render(title)}
	lines = append(lines, renderChart(cfg, innerW, innerH-1)...)
	return style.Width(innerW).Height(innerH).Render(strings.Join(lines, "\n"))
}

func (m Model) renderDetail(width, height int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Widget " + m.detail.ID()))
	b.WriteRune('\n')
	cfg, ok, confirmed := m.detail.Value()
	switch {
	case !ok && m.detail.Loading():
		b.WriteString(dimStyle.Render("loading..."))
		return b.String()
	case !ok:
		b.WriteString(dimStyle.Render("no data"))
		return b.String()
	}
	source := "local"
	if confirmed {
		source = "server"
	}
	fmt.Fprintf(&b, "label   %s\n", cfg.Label)
	fmt.Fprintf(&b, "type    %s\n", cfg.Type)
	fmt.Fprintf(&b, "size    %s\n", orDash(string(cfg.Size)))
	fmt.Fprintf(&b, "layout  %s\n", orDash(string(cfg.LayoutSizeKey)))
	fmt.Fprintf(&b, "points  %d\n", len(cfg.Data))
	fmt.Fprintf(&b, "source  %s\n", source)
	if chartH := height - 8; chartH > 1 {
		b.WriteRune('\n')
		b.WriteString(strings.Join(renderChart(cfg, width, chartH), "\n"))
	}
	return truncateLines(b.String(), width)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateLines cuts each line to width visible cells, keeping ANSI codes
// intact.
func truncateLines(content string, width int) string {
	if width <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			lines[i] = ansi.Truncate(line, width, "")
		}
	}
	return strings.Join(lines, "\n")
}
