package prompt

import (
	"regexp"
	"strings"

	"github.com/docintake/docintake/core/extraction"
)

const (
	fieldSeparator     = " — "
	summaryInstruction = "summary: text — a concise summary of the document in two or three sentences"
)

var paramToken = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// FieldFilter narrows a prompt to a subset of the effective configuration.
// A nil Fields or Tags slice means no restriction.
type FieldFilter struct {
	Fields []string `json:"fields,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	// TagParameters supplies per-tag parameter values that take precedence
	// over the tag's own defaults.
	TagParameters map[string]map[string]string `json:"tagParameters,omitempty"`
	// IncludeSummary, when set, replaces output.includeSummary.
	IncludeSummary *bool `json:"includeSummary,omitempty"`
}

// Options tunes prompt assembly.
type Options struct {
	FieldFilter *FieldFilter `json:"fieldFilter,omitempty"`
}

// BuildExtractionPrompt renders the request text for one document. A raw
// prompt is returned untouched. Identical inputs always produce identical
// output, so live previews match real extraction requests.
func BuildExtractionPrompt(cfg extraction.EffectiveConfig, opts *Options) string {
	if cfg.RawPrompt != "" {
		return cfg.RawPrompt
	}
	var filter *FieldFilter
	if opts != nil {
		filter = opts.FieldFilter
	}

	var sections []string
	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			sections = append(sections, s)
		}
	}

	add(cfg.Prompt.Preamble)

	var fieldLines []string
	allowedFields := allowSet(filter, func(f *FieldFilter) []string { return f.Fields })
	for _, f := range cfg.Fields {
		if !f.Enabled || !allowed(allowedFields, f.Key) {
			continue
		}
		fieldLines = append(fieldLines, fieldLine(f))
	}
	add(strings.Join(fieldLines, "\n"))

	add(cfg.Prompt.GeneralRules)

	var tagLines []string
	allowedTags := allowSet(filter, func(f *FieldFilter) []string { return f.Tags })
	for _, t := range cfg.Tags {
		if !t.Enabled || !allowed(allowedTags, t.ID) {
			continue
		}
		var params map[string]string
		if filter != nil {
			params = filter.TagParameters[t.ID]
		}
		tagLines = append(tagLines, "tags."+t.ID+": "+ResolveTagInstruction(t, params))
	}
	add(strings.Join(tagLines, "\n"))

	includeSummary := cfg.Output.IncludeSummary
	if filter != nil && filter.IncludeSummary != nil {
		includeSummary = *filter.IncludeSummary
	}
	if includeSummary {
		add(summaryInstruction)
	}

	add(cfg.Prompt.Suffix)
	return strings.Join(sections, "\n\n")
}

// ResolveTagInstruction substitutes {{name}} tokens in the tag instruction.
// An explicit value in overrides wins over the parameter default; tokens with
// neither are left in place.
func ResolveTagInstruction(tag extraction.TagDefinition, overrides map[string]string) string {
	return paramToken.ReplaceAllStringFunc(tag.Instruction, func(tok string) string {
		name := paramToken.FindStringSubmatch(tok)[1]
		if v, ok := overrides[name]; ok {
			return v
		}
		if p, ok := tag.Parameters[name]; ok {
			return p.Default
		}
		return tok
	})
}

func fieldLine(f extraction.FieldDefinition) string {
	parts := []string{string(f.Type)}
	if f.SchemaHint != "" {
		parts = append(parts, f.SchemaHint)
	}
	if f.Instruction != "" {
		parts = append(parts, f.Instruction)
	}
	return f.Key + ": " + strings.Join(parts, fieldSeparator)
}

func allowSet(filter *FieldFilter, pick func(*FieldFilter) []string) map[string]struct{} {
	if filter == nil {
		return nil
	}
	keys := pick(filter)
	if keys == nil {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func allowed(set map[string]struct{}, key string) bool {
	if set == nil {
		return true
	}
	_, ok := set[key]
	return ok
}
