package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
)

// DecodeReplacement extracts the optional halves of a `{layout?, widgets?}`
// document. A half is present only when it has the right JSON shape (array
// or object) and decodes cleanly; Store.Replace applies the remaining
// validation. Malformed JSON is returned as an error, while a well-formed
// document of the wrong shape yields an empty replacement.
func DecodeReplacement(body []byte) (Replacement, error) {
	var out Replacement
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return out, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return out, nil
		}
		return out, err
	}
	if raw := bytes.TrimSpace(fields["layout"]); len(raw) > 0 && raw[0] == '[' {
		var layout []LayoutItem
		if err := json.Unmarshal(raw, &layout); err == nil {
			out.Layout, out.HasLayout = layout, true
		}
	}
	if raw := bytes.TrimSpace(fields["widgets"]); len(raw) > 0 && raw[0] == '{' {
		var widgets map[string]WidgetConfig
		if err := json.Unmarshal(raw, &widgets); err == nil {
			out.Widgets, out.HasWidgets = widgets, true
		}
	}
	return out, nil
}
