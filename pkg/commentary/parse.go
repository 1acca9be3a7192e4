package commentary

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultNarrative replaces a missing report narrative.
const DefaultNarrative = "AI narrative could not be generated."

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty model response")

// Item is one time-stamped caption.
type Item struct {
	Time       float64 `json:"time"`
	Commentary string  `json:"commentary"`
}

// UnmarshalJSON accepts time as a number or a numeric string.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time       json.RawMessage `json:"time"`
		Commentary string          `json:"commentary"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	it.Commentary = raw.Commentary

	if len(raw.Time) == 0 || string(raw.Time) == "null" {
		return fmt.Errorf("commentary item: missing time")
	}
	var num float64
	if err := json.Unmarshal(raw.Time, &num); err == nil {
		it.Time = num
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Time, &s); err != nil {
		return fmt.Errorf("commentary item: time %s: %w", raw.Time, err)
	}
	num, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "s"), 64)
	if err != nil {
		return fmt.Errorf("commentary item: time %q: %w", s, err)
	}
	it.Time = num
	return nil
}

// Result is the parsed model output plus the inputs that produced it.
type Result struct {
	Items     []Item          `json:"commentary_data"`
	Narrative string          `json:"report_narrative"`
	Tonality  string          `json:"tonality,omitempty"`
	Points    []AnalysisPoint `json:"points,omitempty"`
}

// Parse decodes a model response. Code fences are stripped first. Missing keys fall back to
// an empty item list and DefaultNarrative. Items that do not decode are dropped.
func Parse(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var payload struct {
		Items     []json.RawMessage `json:"commentary_data"`
		Narrative *string           `json:"report_narrative"`
	}
	if err := decodeJSON(text, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Items))
	for _, raw := range payload.Items {
		var it Item
		if err := json.Unmarshal(raw, &it); err != nil {
			continue
		}
		items = append(items, it)
	}

	r := &Result{Items: normalize(items), Narrative: DefaultNarrative}
	if payload.Narrative != nil && strings.TrimSpace(*payload.Narrative) != "" {
		r.Narrative = strings.TrimSpace(*payload.Narrative)
	}
	return r, nil
}

// normalize sorts items by time. When two items share a time, the later one wins.
func normalize(items []Item) []Item {
	byTime := make(map[float64]int, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if i, ok := byTime[it.Time]; ok {
			out[i] = it
			continue
		}
		byTime[it.Time] = len(out)
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// decodeJSON tries the payload as-is, then with code fences removed, then the outermost object.
func decodeJSON(content string, target any) error {
	if err := json.Unmarshal([]byte(content), target); err == nil {
		return nil
	}
	cleaned := sanitizeJSONPayload(content)
	if cleaned == "" {
		return fmt.Errorf("decode model json: no object in %s", snippet(content))
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("decode model json: %w (payload %s)", err, snippet(content))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	s := strings.TrimSpace(content)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if json.Valid([]byte(s)) {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func snippet(s string) string {
	const limit = 200
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return strconv.Quote(s)
}
