// Package diagnosis holds the result returned by the classification
// service and the severity categories derived from it for display.
package diagnosis

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Result is the diagnosis payload returned by the classification service.
// Fields are consumed as-is; nothing beyond decoding is validated.
type Result struct {
	Disease    string  `json:"disease"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
	IsPlant    bool    `json:"isPlant"`
	Treatment  string  `json:"treatment"`

	// ConfidenceText holds the confidence as sent when it was not a JSON
	// number. Confidence is then its numeric reading, or 0.
	ConfidenceText string `json:"confidenceText,omitempty"`
}

// UnmarshalJSON decodes a service payload without rejecting loosely typed
// fields. Text fields take any scalar as text, confidence may arrive as a
// string, and isPlant follows truthiness (null, false, 0 and "" are false).
// Only a body that is not a JSON object fails.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw struct {
		Disease    json.RawMessage `json:"disease"`
		Severity   json.RawMessage `json:"severity"`
		Confidence json.RawMessage `json:"confidence"`
		IsPlant    json.RawMessage `json:"isPlant"`
		Treatment  json.RawMessage `json:"treatment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Result{
		Disease:   rawText(raw.Disease),
		Severity:  rawText(raw.Severity),
		IsPlant:   truthy(raw.IsPlant),
		Treatment: rawText(raw.Treatment),
	}
	if n, ok := rawNumber(raw.Confidence); ok {
		r.Confidence = n
		return nil
	}
	r.ConfidenceText = rawText(raw.Confidence)
	if n, err := strconv.ParseFloat(strings.TrimSpace(r.ConfidenceText), 64); err == nil {
		r.Confidence = n
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func rawText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func rawNumber(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func truthy(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// SeverityCategory selects display styling for a severity text.
type SeverityCategory string

const (
	SeverityHigh     SeverityCategory = "high"
	SeverityModerate SeverityCategory = "moderate"
	SeverityLow      SeverityCategory = "low"
	SeverityDefault  SeverityCategory = "default"
)

// ClassifySeverity maps free-form severity text to a category by
// case-insensitive substring match. "high" wins over "moderate" wins over
// "low"; anything else, including empty text, is SeverityDefault.
func ClassifySeverity(severity string) SeverityCategory {
	s := strings.ToLower(severity)
	switch {
	case strings.Contains(s, string(SeverityHigh)):
		return SeverityHigh
	case strings.Contains(s, string(SeverityModerate)):
		return SeverityModerate
	case strings.Contains(s, string(SeverityLow)):
		return SeverityLow
	default:
		return SeverityDefault
	}
}

// Band returns the colour band used for a category.
func Band(category SeverityCategory) string {
	switch category {
	case SeverityHigh:
		return "red"
	case SeverityModerate:
		return "orange"
	case SeverityLow:
		return "yellow"
	default:
		return "green"
	}
}

// Icon names the status icon shown next to the severity badge.
func Icon(category SeverityCategory) string {
	switch category {
	case SeverityHigh:
		return "alert-triangle"
	case SeverityModerate, SeverityLow:
		return "alert-circle"
	default:
		return "check-circle"
	}
}
