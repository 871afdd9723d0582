package exports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gridboard/pkg/dashboard"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	layoutSheet   = "Layout"
	maxSheetChars = 31
)

var summaryHeader = []string{"id", "x", "y", "w", "h", "type", "label", "size", "points"}

// Render encodes state in the given format and returns the payload and its
// content type.
func Render(format Format, state dashboard.State) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(state, "", "  ")
		return b, contentTypeJSON, err
	case FormatCSV:
		b, err := renderCSV(state)
		return b, contentTypeCSV, err
	case FormatXLSX:
		b, err := renderXLSX(state)
		return b, contentTypeXLSX, err
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

// summaryRows lists one row per layout item in layout order. Placeholders
// without a config keep empty widget columns.
func summaryRows(state dashboard.State) [][]string {
	rows := make([][]string, 0, len(state.Layout))
	for _, item := range state.Layout {
		row := []string{item.ID, strconv.Itoa(item.X), strconv.Itoa(item.Y), strconv.Itoa(item.W), strconv.Itoa(item.H), "", "", "", ""}
		if cfg, ok := state.Widgets[item.ID]; ok {
			row[5], row[6], row[7], row[8] = string(cfg.Type), cfg.Label, string(cfg.Size), strconv.Itoa(len(cfg.Data))
		}
		rows = append(rows, row)
	}
	return rows
}

func renderCSV(state dashboard.State) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(summaryHeader); err != nil {
		return nil, err
	}
	if err := writer.WriteAll(summaryRows(state)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderXLSX writes a Layout sheet with the summary table plus one sheet per
// configured widget holding its label/value series.
func renderXLSX(state dashboard.State) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", layoutSheet); err != nil {
		return nil, err
	}
	if err := writeRows(f, layoutSheet, summaryHeader, summaryRows(state)); err != nil {
		return nil, err
	}
	used := map[string]bool{strings.ToLower(layoutSheet): true}
	for _, item := range state.Layout {
		cfg, ok := state.Widgets[item.ID]
		if !ok {
			continue
		}
		name := SheetName(item.ID, used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		rows := make([][]string, len(cfg.Data))
		for i, v := range cfg.Data {
			rows[i] = []string{cfg.Labels[i], strconv.FormatFloat(v, 'f', -1, 64)}
		}
		if err := writeRows(f, name, []string{"label", cfg.Label}, rows); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, header []string, rows [][]string) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			if n, err := strconv.ParseFloat(v, 64); err == nil && j > 0 {
				values[j] = n
			} else {
				values[j] = v
			}
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// SheetName derives a unique worksheet name for a widget id, stripping the
// characters Excel forbids and truncating to 31 characters. used holds the
// lower-cased names already taken, since sheet names compare case-insensitively.
func SheetName(id string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, id)
	base := "Widget " + clean
	if len([]rune(base)) > maxSheetChars {
		base = string([]rune(base)[:maxSheetChars])
	}
	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := "~" + strconv.Itoa(n)
		r := []rune(base)
		if len(r)+len(suffix) > maxSheetChars {
			r = r[:maxSheetChars-len(suffix)]
		}
		name = string(r) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}
