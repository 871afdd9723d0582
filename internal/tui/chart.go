package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	plot "github.com/chriskim06/drawille-go"

	"gridboard/internal/dataset"
	"gridboard/pkg/dashboard"
)

var eighths = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

const (
	brailleBlank = '⠀'
	brailleFull  = '⣿'
)

var (
	lineChartStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA"))
	areaChartStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	barChartStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387"))
)

// renderChart draws cfg into exactly height lines of width cells. Line and
// area charts are plotted on a braille canvas at two samples per cell; bars
// are one block column per sample. Unknown types draw as lines. The stored
// series is never modified.
func renderChart(cfg dashboard.WidgetConfig, width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}
	perCell := 2
	if cfg.Type == dashboard.ChartBar {
		perCell = 1
	}
	_, sampled := dataset.Sample(cfg.Labels, cfg.Data, width*perCell)
	if len(sampled) == 0 {
		return blankLines(width, height)
	}
	values := make([]float64, len(sampled))
	peak := 0.0
	for i, v := range sampled {
		values[i] = max(v, 0)
		peak = max(peak, values[i])
	}

	var lines []string
	style := lineChartStyle
	switch {
	case cfg.Type == dashboard.ChartBar:
		lines, style = columns(values, max(peak, 1), width, height), barChartStyle
	case peak == 0:
		lines = flatLines(width, height)
	default:
		lines = canvasLines(values, width, height)
		if cfg.Type == dashboard.ChartArea {
			fillBelow(lines)
			style = areaChartStyle
		}
	}
	for i := range lines {
		lines[i] = style.Render(lines[i])
	}
	return lines
}

// canvasLines plots values against a zero baseline, which pins the bottom of
// the canvas scale to zero and reads as the x axis.
func canvasLines(values []float64, width, height int) []string {
	if len(values) == 1 {
		values = []float64{values[0], values[0]}
	}
	baseline := make([]float64, len(values))

	c := plot.NewCanvas(width, height)
	c.NumDataPoints = len(values)
	c.ShowAxis = false
	c.LineColors = []plot.Color{plot.LightGray, plot.DimGray}
	c.Fill([][]float64{values, baseline})
	out := c.String()
	if out == "" {
		return blankLines(width, height)
	}
	return fitLines(strings.Split(ansi.Strip(out), "\n"), width, height)
}

// fitLines pads or cuts raw to exactly height rows of width plain cells.
func fitLines(raw []string, width, height int) []string {
	for len(raw) > 0 && strings.TrimSpace(raw[len(raw)-1]) == "" && len(raw) > height {
		raw = raw[:len(raw)-1]
	}
	if len(raw) > height {
		raw = raw[len(raw)-height:]
	}
	out := make([]string, height)
	pad := height - len(raw)
	for i := range out {
		row := []rune{}
		if i >= pad {
			row = []rune(raw[i-pad])
		}
		if len(row) > width {
			row = row[:width]
		}
		out[i] = string(row) + strings.Repeat(" ", width-len(row))
	}
	return out
}

// fillBelow shades every cell under the topmost inked cell of each column.
func fillBelow(lines []string) {
	grid := make([][]rune, len(lines))
	for i, line := range lines {
		grid[i] = []rune(line)
	}
	if len(grid) == 0 {
		return
	}
	for c := range grid[0] {
		inked := false
		for r := range grid {
			if c >= len(grid[r]) {
				break
			}
			switch {
			case inked:
				grid[r][c] = brailleFull
			case grid[r][c] != ' ' && grid[r][c] != brailleBlank:
				inked = true
			}
		}
	}
	for i := range grid {
		lines[i] = string(grid[i])
	}
}

// flatLines is an all-zero series: a rule along the bottom row.
func flatLines(width, height int) []string {
	out := blankLines(width, height)
	out[height-1] = strings.Repeat("⣀", width)
	return out
}

func blankLines(width, height int) []string {
	out := make([]string, height)
	for i := range out {
		out[i] = strings.Repeat(" ", width)
	}
	return out
}

// level scales v onto [0, height*8] eighth-cells.
func level(v, peak float64, height int) int {
	lvl := int(v/peak*float64(height*8) + 0.5)
	return min(lvl, height*8)
}

// columns draws one block column per value, bottom-aligned, with eighth-cell
// resolution at the top of each column.
func columns(values []float64, peak float64, width, height int) []string {
	grid := make([][]string, height)
	for r := range grid {
		grid[r] = make([]string, width)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}
	for c, v := range values {
		if c >= width {
			break
		}
		lvl := level(v, peak, height)
		for r := 0; r < height; r++ {
			fill := lvl - (height-1-r)*8
			switch {
			case fill >= 8:
				grid[r][c] = eighths[8]
			case fill > 0:
				grid[r][c] = eighths[fill]
			}
		}
	}
	out := make([]string, height)
	for r := range grid {
		out[r] = strings.Join(grid[r], "")
	}
	return out
}
