package prompt

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/docintake/docintake/core/extraction"
	"github.com/docintake/docintake/core/extraction/formats"
)

const (
	paymentDateKey = "paymentDate"
	invoiceDateKey = "invoiceDate"
	tagsKey        = "tags"
	snippetLen     = 80
)

var (
	openFence  = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\\r?\\n?")
	closeFence = regexp.MustCompile("\\r?\\n?```$")
	innerBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\\r?\\n(.*?)```")
)

// ParseResponse decodes the model's reply into a JSON object. A leading
// fence line and a trailing fence are stripped independently; a reply that
// opens with prose yields its first fenced block. Malformed replies yield a
// *extraction.ParseError; the caller decides whether to retry.
func ParseResponse(raw string) (map[string]any, error) {
	body := stripFence(strings.TrimSpace(raw))
	if body == "" {
		return nil, &extraction.ParseError{Reason: "empty response"}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, &extraction.ParseError{Reason: "invalid JSON", Snippet: snippet(body), Err: err}
	}
	if out == nil {
		return nil, &extraction.ParseError{Reason: "expected a JSON object", Snippet: snippet(body)}
	}
	return out, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		if m := innerBlock.FindStringSubmatch(s); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	s = openFence.ReplaceAllString(s, "")
	s = closeFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	if len(s) <= snippetLen {
		return s
	}
	return s[:snippetLen] + "..."
}

// NormalizeAnalysis returns a copy of parsed in which every enabled field and
// tag is present. Missing values are defaulted by type, never reported.
func NormalizeAnalysis(parsed map[string]any, cfg extraction.EffectiveConfig) map[string]any {
	out := make(map[string]any, len(parsed)+1)
	for k, v := range parsed {
		out[k] = v
	}

	if declared(cfg.Fields, paymentDateKey) && isFalsy(out[paymentDateKey]) && !isFalsy(out[invoiceDateKey]) {
		out[paymentDateKey] = out[invoiceDateKey]
	}

	for _, f := range cfg.Fields {
		if !f.Enabled {
			continue
		}
		if v, ok := out[f.Key]; ok && v != nil {
			continue
		}
		out[f.Key] = defaultFor(f.Type)
	}

	tags := map[string]any{}
	if existing, ok := out[tagsKey].(map[string]any); ok {
		for k, v := range existing {
			tags[k] = v
		}
	}
	for _, t := range cfg.Tags {
		if !t.Enabled {
			continue
		}
		if _, ok := tags[t.ID]; !ok {
			tags[t.ID] = false
		}
	}
	out[tagsKey] = tags
	return out
}

// NormalizeAndValidate normalizes parsed and then applies the declared field
// formats, returning the corrected analysis and any advisory warnings.
func NormalizeAndValidate(parsed map[string]any, cfg extraction.EffectiveConfig) (map[string]any, []formats.Warning) {
	report := formats.ValidateAll(NormalizeAnalysis(parsed, cfg), cfg.Fields)
	return report.Corrected, report.Warnings
}

func defaultFor(t extraction.FieldType) any {
	switch t {
	case extraction.FieldNumber:
		return 0
	case extraction.FieldBoolean:
		return false
	case extraction.FieldArray:
		return []any{}
	default:
		return extraction.UnknownValue
	}
}

func declared(fields []extraction.FieldDefinition, key string) bool {
	for _, f := range fields {
		if f.Key == key && f.Enabled {
			return true
		}
	}
	return false
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || s == extraction.UnknownValue
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	default:
		return false
	}
}
