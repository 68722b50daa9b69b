package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/docintake/docintake/core/extraction"
	"github.com/google/go-cmp/cmp"
)

func sampleConfig() extraction.EffectiveConfig {
	return extraction.EffectiveConfig{
		ClientID: "acme",
		Model:    "gpt-4o-mini",
		Prompt:   extraction.PromptTemplate{Preamble: "P", GeneralRules: "R", Suffix: "S"},
		Fields: []extraction.FieldDefinition{
			{Key: "invoiceNumber", Type: extraction.FieldText, SchemaHint: "string", Instruction: "The invoice number", Enabled: true},
			{Key: "total", Type: extraction.FieldNumber, Enabled: true},
			{Key: "secret", Type: extraction.FieldText, Instruction: "never ask", Enabled: false},
		},
		Tags: []extraction.TagDefinition{
			{ID: "urgent", Instruction: "Is it urgent?", Enabled: true},
			{
				ID:          "addr",
				Instruction: `Check if address "{{address}}" appears`,
				Enabled:     true,
				Parameters:  map[string]extraction.TagParameter{"address": {Label: "Address", Default: "123 Main St"}},
			},
			{ID: "off", Instruction: "disabled tag", Enabled: false},
		},
	}
}

func TestBuildExtractionPrompt(t *testing.T) {
	got := BuildExtractionPrompt(sampleConfig(), nil)
	want := "P\n\n" +
		"invoiceNumber: text — string — The invoice number\n" +
		"total: number\n\n" +
		"R\n\n" +
		"tags.urgent: Is it urgent?\n" +
		"tags.addr: Check if address \"123 Main St\" appears\n\n" +
		"S"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("prompt mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(got, "secret") || strings.Contains(got, "tags.off") {
		t.Fatalf("disabled items leaked into prompt")
	}
}

func TestBuildExtractionPromptDeterministic(t *testing.T) {
	cfg := sampleConfig()
	first := BuildExtractionPrompt(cfg, nil)
	for i := 0; i < 20; i++ {
		if got := BuildExtractionPrompt(cfg, nil); got != first {
			t.Fatalf("prompt changed on run %d", i)
		}
	}
}

func TestBuildExtractionPromptRawWins(t *testing.T) {
	cfg := sampleConfig()
	cfg.RawPrompt = "just do it"
	yes := true
	got := BuildExtractionPrompt(cfg, &Options{FieldFilter: &FieldFilter{Fields: []string{"total"}, IncludeSummary: &yes}})
	if got != "just do it" {
		t.Fatalf("expected raw prompt, got %q", got)
	}
}

func TestBuildExtractionPromptFilter(t *testing.T) {
	cfg := sampleConfig()
	yes := true
	opts := &Options{FieldFilter: &FieldFilter{
		Fields:         []string{"total", "secret"},
		Tags:           []string{"addr", "off"},
		TagParameters:  map[string]map[string]string{"addr": {"address": "1 Elm Rd"}},
		IncludeSummary: &yes,
	}}
	got := BuildExtractionPrompt(cfg, opts)
	if strings.Contains(got, "invoiceNumber") || strings.Contains(got, "tags.urgent") {
		t.Fatalf("filter ignored: %q", got)
	}
	if strings.Contains(got, "secret") || strings.Contains(got, "tags.off") {
		t.Fatalf("filter re-enabled a disabled item: %q", got)
	}
	if !strings.Contains(got, `tags.addr: Check if address "1 Elm Rd" appears`) {
		t.Fatalf("filter parameter not applied: %q", got)
	}
	if !strings.Contains(got, summaryInstruction) {
		t.Fatalf("summary instruction missing: %q", got)
	}
}

func TestBuildExtractionPromptSummaryFromOutput(t *testing.T) {
	cfg := sampleConfig()
	cfg.Output.IncludeSummary = true
	if got := BuildExtractionPrompt(cfg, nil); !strings.Contains(got, summaryInstruction) {
		t.Fatalf("expected summary instruction")
	}
	no := false
	got := BuildExtractionPrompt(cfg, &Options{FieldFilter: &FieldFilter{IncludeSummary: &no}})
	if strings.Contains(got, summaryInstruction) {
		t.Fatalf("explicit filter should suppress summary")
	}
}

func TestResolveTagInstruction(t *testing.T) {
	tag := extraction.TagDefinition{
		ID:          "addr",
		Instruction: `Check if address "{{address}}" appears`,
		Parameters:  map[string]extraction.TagParameter{"address": {Default: "123 Main St"}},
	}
	if got := ResolveTagInstruction(tag, nil); got != `Check if address "123 Main St" appears` {
		t.Fatalf("unexpected default substitution: %q", got)
	}
	if got := ResolveTagInstruction(tag, map[string]string{"address": "9 Oak Ave"}); got != `Check if address "9 Oak Ave" appears` {
		t.Fatalf("override should win: %q", got)
	}
	tag.Instruction = "unknown {{ missing }} stays"
	if got := ResolveTagInstruction(tag, nil); got != "unknown {{ missing }} stays" {
		t.Fatalf("unknown token should be kept: %q", got)
	}
}

func TestParseResponse(t *testing.T) {
	want := map[string]any{"a": float64(1)}
	tests := []struct {
		name string
		raw  string
	}{
		{name: "plain", raw: `{"a":1}`},
		{name: "json fence", raw: "```json\n{\"a\":1}\n```"},
		{name: "bare fence", raw: "```\n{\"a\":1}\n```"},
		{name: "crlf fence", raw: "```json\r\n{\"a\":1}\r\n```"},
		{name: "unclosed fence", raw: "```json\n{\"a\":1}"},
		{name: "closing fence only", raw: "{\"a\":1}\n```"},
		{name: "prose before block", raw: "Here is the result:\n```json\n{\"a\":1}\n```"},
		{name: "prose around block", raw: "Result:\n```\n{\"a\":1}\n```\nLet me know."},
		{name: "surrounding whitespace", raw: "\n  ```json\n{\"a\":1}\n```  \n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseResponse(tc.raw)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.raw, err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseResponseErrors(t *testing.T) {
	for _, raw := range []string{"", "   ", "not json", "```json\n{\"a\":\n```", "null"} {
		_, err := ParseResponse(raw)
		if err == nil {
			t.Fatalf("expected parse error for %q", raw)
		}
		var perr *extraction.ParseError
		if !errors.As(err, &perr) || !errors.Is(err, extraction.ErrParse) {
			t.Fatalf("expected ParseError for %q, got %T", raw, err)
		}
	}
}

func TestNormalizeAnalysis(t *testing.T) {
	cfg := extraction.EffectiveConfig{
		Fields: []extraction.FieldDefinition{
			{Key: "vendor", Type: extraction.FieldText, Enabled: true},
			{Key: "total", Type: extraction.FieldNumber, Enabled: true},
			{Key: "paid", Type: extraction.FieldBoolean, Enabled: true},
			{Key: "lines", Type: extraction.FieldArray, Enabled: true},
			{Key: "invoiceDate", Type: extraction.FieldDate, Enabled: true},
			{Key: "paymentDate", Type: extraction.FieldDate, Enabled: true},
			{Key: "ignored", Type: extraction.FieldText, Enabled: false},
		},
		Tags: []extraction.TagDefinition{
			{ID: "urgent", Enabled: true},
			{ID: "vip", Enabled: true},
			{ID: "off", Enabled: false},
		},
	}
	parsed := map[string]any{
		"invoiceDate": "2024-03-01",
		"tags":        map[string]any{"vip": true},
	}
	got := NormalizeAnalysis(parsed, cfg)
	want := map[string]any{
		"vendor":      "Unknown",
		"total":       0,
		"paid":        false,
		"lines":       []any{},
		"invoiceDate": "2024-03-01",
		"paymentDate": "2024-03-01",
		"tags":        map[string]any{"vip": true, "urgent": false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalized mismatch (-want +got):\n%s", diff)
	}
	if _, ok := parsed["vendor"]; ok {
		t.Fatalf("input was modified")
	}
}

func TestNormalizeAnalysisKeepsPaymentDate(t *testing.T) {
	cfg := extraction.EffectiveConfig{Fields: []extraction.FieldDefinition{
		{Key: "invoiceDate", Type: extraction.FieldDate, Enabled: true},
		{Key: "paymentDate", Type: extraction.FieldDate, Enabled: true},
	}}
	got := NormalizeAnalysis(map[string]any{"invoiceDate": "2024-03-01", "paymentDate": "2024-04-01"}, cfg)
	if got["paymentDate"] != "2024-04-01" {
		t.Fatalf("paymentDate overwritten: %v", got["paymentDate"])
	}
}

func TestNormalizeAndValidate(t *testing.T) {
	cfg := extraction.EffectiveConfig{Fields: []extraction.FieldDefinition{
		{Key: "invoiceDate", Type: extraction.FieldDate, Enabled: true, Format: "iso8601"},
		{Key: "currency", Type: extraction.FieldText, Enabled: true, Format: "iso4217"},
	}}
	out, warnings := NormalizeAndValidate(map[string]any{"invoiceDate": "2024-03-01T00:00:00Z", "currency": "EURO"}, cfg)
	if out["invoiceDate"] != "2024-03-01" {
		t.Fatalf("date not corrected: %v", out["invoiceDate"])
	}
	if len(warnings) != 1 || warnings[0].Field != "currency" {
		t.Fatalf("unexpected warnings: %#v", warnings)
	}
}

func TestNewRequest(t *testing.T) {
	cfg := sampleConfig()
	a, err := NewRequest(cfg, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	b, err := NewRequest(cfg, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique request ids: %q %q", a.ID, b.ID)
	}
	if a.Fingerprint == "" || a.Fingerprint != b.Fingerprint {
		t.Fatalf("fingerprint should be stable: %q %q", a.Fingerprint, b.Fingerprint)
	}
	if a.Prompt != b.Prompt || a.Model != "gpt-4o-mini" || a.ClientID != "acme" {
		t.Fatalf("unexpected request: %#v", a)
	}
	cfg.Fields[0].Enabled = false
	c, _ := NewRequest(cfg, nil)
	if c.Fingerprint == a.Fingerprint {
		t.Fatalf("fingerprint should change with config")
	}
}
