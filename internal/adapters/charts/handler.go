// Package charts renders widgets as interactive go-echarts HTML pages.
package charts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"gridboard/internal/dataset"
	"gridboard/pkg/dashboard"
)

// rowHeightPx converts grid rows to chart pixel height on the dashboard page.
const rowHeightPx = 90

// Handler serves /widget/chart and /dashboard.
type Handler struct {
	Store  dashboard.Store
	Logger *slog.Logger
	// SampleLimit caps the points handed to the renderer; 0 means dataset.DefaultSampleCap.
	SampleLimit int
}

// NewHandler constructs a chart handler.
func NewHandler(store dashboard.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{Store: store, Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/widget/chart":
		h.handleWidgetChart(w, r)
	case "/dashboard":
		h.handleDashboard(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleWidgetChart(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	cfg, err := h.Store.GetWidget(r.Context(), id)
	switch {
	case errors.Is(err, dashboard.ErrMissingID):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, dashboard.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	page := components.NewPage()
	page.PageTitle = cfg.Label
	page.AddCharts(Build(cfg, Options{Limit: h.SampleLimit, Height: "450px"}))
	h.render(w, r, page)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	state, err := h.Store.Read(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	page := components.NewPage()
	page.PageTitle = "gridboard"
	page.SetLayout(components.PageFlexLayout)
	for _, item := range state.Layout {
		cfg, ok := state.Widgets[item.ID]
		if !ok {
			continue
		}
		page.AddCharts(Build(cfg, Options{
			Limit:  h.SampleLimit,
			Width:  fmt.Sprintf("%d%%", min(100, max(1, item.W)*100/12)),
			Height: fmt.Sprintf("%dpx", max(1, item.H)*rowHeightPx),
		}))
	}
	h.render(w, r, page)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page *components.Page) {
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		h.Logger.ErrorContext(r.Context(), "render chart page", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Options controls chart sizing and sampling.
type Options struct {
	Limit  int
	Width  string
	Height string
}

// Build returns the renderer for cfg.Type: line, bar, or line with a filled
// area. Series longer than the sample limit are thinned first.
func Build(cfg dashboard.WidgetConfig, o Options) components.Charter {
	labels, data := dataset.Sample(cfg.Labels, cfg.Data, o.Limit)
	width, height := o.Width, o.Height
	if width == "" {
		width = "100%"
	}
	if height == "" {
		height = "300px"
	}
	global := []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{
			Title:    cfg.Label,
			Subtitle: subtitle(cfg, len(data)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		charts.WithInitializationOpts(opts.Initialization{Width: width, Height: height}),
	}
	switch cfg.Type {
	case dashboard.ChartBar:
		bar := charts.NewBar()
		bar.SetGlobalOptions(global...)
		values := make([]opts.BarData, len(data))
		for i, v := range data {
			values[i] = opts.BarData{Value: v}
		}
		bar.SetXAxis(labels).AddSeries(cfg.Label, values)
		return bar
	default:
		line := charts.NewLine()
		line.SetGlobalOptions(global...)
		values := make([]opts.LineData, len(data))
		for i, v := range data {
			values[i] = opts.LineData{Value: v}
		}
		series := []charts.SeriesOpts{
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		}
		if cfg.Type == dashboard.ChartArea {
			series = append(series, charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.3)}))
		}
		line.SetXAxis(labels).AddSeries(cfg.Label, values, series...)
		return line
	}
}

func subtitle(cfg dashboard.WidgetConfig, shown int) string {
	if shown < len(cfg.Data) {
		return fmt.Sprintf("%s chart, %d of %d points", cfg.Type, shown, len(cfg.Data))
	}
	return fmt.Sprintf("%s chart, %d points", cfg.Type, len(cfg.Data))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
