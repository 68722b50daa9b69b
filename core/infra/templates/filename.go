// Package templates renders output filenames for extracted documents.
package templates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docintake/docintake/core/extraction"
)

const fallbackName = "document"

var (
	placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
	unsafeChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]+`)
	spaces      = regexp.MustCompile(`\s+`)
)

// RenderFilename expands {fieldKey} placeholders of the output filename
// template with normalized analysis values, then appends the id of every
// enabled filename tag that was detected. ext is appended verbatim.
func RenderFilename(cfg extraction.EffectiveConfig, analysis map[string]any, ext string) string {
	name := placeholder.ReplaceAllStringFunc(cfg.Output.FilenameTemplate, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := analysis[key]
		if !ok || v == nil {
			return "Unknown"
		}
		return sanitize(fmt.Sprint(v))
	})
	detected, _ := analysis["tags"].(map[string]any)
	for _, tag := range cfg.Tags {
		if !tag.Enabled || !tag.IncludeInFilename {
			continue
		}
		if hit, _ := detected[tag.ID].(bool); hit {
			name += "_" + tag.ID
		}
	}
	name = strings.Trim(sanitize(name), "._- ")
	if name == "" {
		name = fallbackName
	}
	return name + ext
}

func sanitize(v string) string {
	v = unsafeChars.ReplaceAllString(v, "-")
	return spaces.ReplaceAllString(strings.TrimSpace(v), " ")
}
