package formats

import "github.com/docintake/docintake/core/extraction"

// Warning is an advisory rejection of one field value. It never blocks a document.
type Warning struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Report carries the corrected analysis and any warnings raised while building it.
type Report struct {
	Corrected map[string]any `json:"corrected"`
	Warnings  []Warning      `json:"warnings"`
}

// ValidateAll validates every enabled field that declares a format. Accepted
// corrections are written into a copy of analysis; rejected values are left
// as-is and reported as warnings. The input map is not modified.
func ValidateAll(analysis map[string]any, fields []extraction.FieldDefinition) Report {
	out := make(map[string]any, len(analysis))
	for k, v := range analysis {
		out[k] = v
	}
	report := Report{Corrected: out, Warnings: []Warning{}}
	for _, f := range fields {
		if !f.Enabled || f.Format == "" {
			continue
		}
		value, ok := out[f.Key]
		if !ok {
			continue
		}
		res := ValidateOne(value, f.Format)
		switch {
		case !res.Valid:
			report.Warnings = append(report.Warnings, Warning{Field: f.Key, Error: res.Error})
		case res.HasCorrection():
			out[f.Key] = res.Corrected
		}
	}
	return report
}
