package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"gridboard/pkg/dashboard"
)

func series(values ...float64) dashboard.WidgetConfig {
	labels := make([]string, len(values))
	for i := range labels {
		labels[i] = "x"
	}
	return dashboard.WidgetConfig{Data: values, Labels: labels}
}

func TestRenderChartDimensions(t *testing.T) {
	data := make([]float64, 5000)
	for i := range data {
		data[i] = float64(i % 1000)
	}
	cfg := series(data...)
	for _, typ := range dashboard.ChartTypes {
		cfg.Type = typ
		lines := renderChart(cfg, 17, 4)
		if len(lines) != 4 {
			t.Fatalf("%s: expected 4 lines, got %d", typ, len(lines))
		}
		for i, line := range lines {
			if w := lipgloss.Width(line); w != 17 {
				t.Fatalf("%s: line %d has width %d", typ, i, w)
			}
		}
	}
	if len(data) != 5000 {
		t.Fatalf("rendering must not touch the stored series")
	}
}

func plain(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = ansi.Strip(line)
	}
	return out
}

// ink counts the cells that carry a glyph.
func ink(lines []string) int {
	n := 0
	for _, line := range plain(lines) {
		for _, r := range line {
			if r != ' ' && r != brailleBlank {
				n++
			}
		}
	}
	return n
}

func TestPlotBar(t *testing.T) {
	cfg := series(0, 1000, 500)
	cfg.Type = dashboard.ChartBar
	lines := plain(renderChart(cfg, 3, 2))
	if lines[0] != " █ " || lines[1] != " ██" {
		t.Fatalf("unexpected bars %q", lines)
	}
}

func TestLineAndAreaDrawOnCanvas(t *testing.T) {
	data := make([]float64, 200)
	for i := range data {
		data[i] = float64(i)
	}
	cfg := series(data...)
	cfg.Type = dashboard.ChartLine
	line := renderChart(cfg, 20, 5)
	cfg.Type = dashboard.ChartArea
	area := renderChart(cfg, 20, 5)

	if ink(line) == 0 {
		t.Fatalf("line chart is blank: %q", plain(line))
	}
	if ink(area) < ink(line) {
		t.Fatalf("area should shade at least what the line inks: area %d line %d", ink(area), ink(line))
	}
	for _, l := range plain(line) {
		if strings.ContainsAny(l, "█░•") {
			t.Fatalf("line chart should be braille only, got %q", l)
		}
	}
}

func TestFillBelowShadesUnderTopCell(t *testing.T) {
	lines := []string{" ⠁ ", "⠂  ", "   "}
	fillBelow(lines)
	want := []string{" ⠁ ", "⠂⣿ ", "⣿⣿ "}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("row %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFitLines(t *testing.T) {
	got := fitLines([]string{"⠁⠂⠄⡀", "⣀", "", ""}, 3, 3)
	want := []string{"⠁⠂⠄", "⣀  ", "   "}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d = %q, want %q", i, got[i], want[i])
		}
	}
	if got := fitLines([]string{"⣀"}, 2, 3); got[0] != "  " || got[2] != "⣀ " {
		t.Fatalf("short canvas should be bottom-aligned, got %q", got)
	}
}

func TestZeroSeriesIsFlat(t *testing.T) {
	cfg := series(0, 0, 0)
	cfg.Type = dashboard.ChartLine
	lines := plain(renderChart(cfg, 4, 2))
	if lines[0] != "    " || lines[1] != "⣀⣀⣀⣀" {
		t.Fatalf("unexpected flat chart %q", lines)
	}
}

func TestRenderChartEmptySeries(t *testing.T) {
	lines := renderChart(dashboard.WidgetConfig{Type: dashboard.ChartBar}, 5, 2)
	if len(lines) != 2 || strings.TrimSpace(strings.Join(lines, "")) != "" {
		t.Fatalf("expected blank chart, got %q", lines)
	}
	if renderChart(series(1), 0, 3) != nil {
		t.Fatalf("expected nil for zero width")
	}
}
