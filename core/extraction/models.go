package extraction

// FieldType is the declared value type of an extracted field.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldArray   FieldType = "array"
)

// UnknownValue is the placeholder for a text field the model could not fill.
// It is distinct from an empty string.
const UnknownValue = "Unknown"

// ProcessingConfig controls batch extraction.
type ProcessingConfig struct {
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// OutputConfig describes where processed documents land and how they are named.
type OutputConfig struct {
	FilenameTemplate           string `json:"filenameTemplate" yaml:"filenameTemplate"`
	ProcessedOriginalSubfolder string `json:"processedOriginalSubfolder" yaml:"processedOriginalSubfolder"`
	ProcessedEnrichedSubfolder string `json:"processedEnrichedSubfolder" yaml:"processedEnrichedSubfolder"`
	CSVFilename                string `json:"csvFilename" yaml:"csvFilename"`
	IncludeSummary             bool   `json:"includeSummary,omitempty" yaml:"includeSummary,omitempty"`
}

// FieldDefinition declares one data field the model must extract.
// Key is unique and immutable; slice order is the prompt order.
type FieldDefinition struct {
	Key         string    `json:"key" yaml:"key"`
	Label       string    `json:"label" yaml:"label"`
	Type        FieldType `json:"type" yaml:"type"`
	SchemaHint  string    `json:"schemaHint,omitempty" yaml:"schemaHint,omitempty"`
	Instruction string    `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	Enabled     bool      `json:"enabled" yaml:"enabled"`
	Format      string    `json:"format,omitempty" yaml:"format,omitempty"`
	BuiltIn     bool      `json:"builtIn,omitempty" yaml:"builtIn,omitempty"`
}

// TagParameter is a named placeholder inside a tag instruction.
type TagParameter struct {
	Label   string `json:"label" yaml:"label"`
	Default string `json:"default" yaml:"default"`
}

// TagDefinition declares a boolean classification rule. Instruction may embed
// {{paramName}} placeholders resolved from Parameters.
type TagDefinition struct {
	ID                string                  `json:"id" yaml:"id"`
	Label             string                  `json:"label" yaml:"label"`
	Instruction       string                  `json:"instruction" yaml:"instruction"`
	Enabled           bool                    `json:"enabled" yaml:"enabled"`
	Parameters        map[string]TagParameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	IncludeInFilename bool                    `json:"includeInFilename,omitempty" yaml:"includeInFilename,omitempty"`
	IncludeInCSV      bool                    `json:"includeInCsv,omitempty" yaml:"includeInCsv,omitempty"`
}

// Clone returns a copy that shares no maps with t.
func (t TagDefinition) Clone() TagDefinition {
	if t.Parameters != nil {
		params := make(map[string]TagParameter, len(t.Parameters))
		for k, v := range t.Parameters {
			params[k] = v
		}
		t.Parameters = params
	}
	return t
}

// PromptTemplate is the structured prompt: preamble, field list, general rules,
// tag list, suffix.
type PromptTemplate struct {
	Preamble     string `json:"preamble" yaml:"preamble"`
	GeneralRules string `json:"generalRules" yaml:"generalRules"`
	Suffix       string `json:"suffix" yaml:"suffix"`
}

// GlobalConfig is the baseline every client inherits from.
type GlobalConfig struct {
	Processing       ProcessingConfig  `json:"processing" yaml:"processing"`
	Output           OutputConfig      `json:"output" yaml:"output"`
	Model            string            `json:"model,omitempty" yaml:"model,omitempty"`
	FieldDefinitions []FieldDefinition `json:"fieldDefinitions" yaml:"fieldDefinitions"`
	TagDefinitions   []TagDefinition   `json:"tagDefinitions" yaml:"tagDefinitions"`
	PromptTemplate   PromptTemplate    `json:"promptTemplate" yaml:"promptTemplate"`
	RawPrompt        string            `json:"rawPrompt,omitempty" yaml:"rawPrompt,omitempty"`
}

// Clone returns a deep copy of g.
func (g *GlobalConfig) Clone() *GlobalConfig {
	if g == nil {
		return nil
	}
	out := *g
	out.FieldDefinitions = cloneFields(g.FieldDefinitions)
	out.TagDefinitions = cloneTags(g.TagDefinitions)
	return &out
}

// PromptOverride replaces individual prompt sections for one client. A non-nil
// RawPrompt bypasses the structured template entirely.
type PromptOverride struct {
	Preamble     *string `json:"preamble,omitempty" yaml:"preamble,omitempty"`
	GeneralRules *string `json:"generalRules,omitempty" yaml:"generalRules,omitempty"`
	Suffix       *string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	RawPrompt    *string `json:"rawPrompt,omitempty" yaml:"rawPrompt,omitempty"`
}

// OutputOverride may only change the filename template; folder layout is shared.
type OutputOverride struct {
	FilenameTemplate *string `json:"filenameTemplate,omitempty" yaml:"filenameTemplate,omitempty"`
}

// ClientRecord is the persisted per-tenant document.
//
// FieldDefinitions, TagDefinitions, PromptTemplate and Output are the legacy
// whole-section replacements. They are still honoured (and outrank the
// granular overrides) but new writes never produce them.
type ClientRecord struct {
	ClientID       string          `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	Name           string          `json:"name" yaml:"name"`
	FolderPath     string          `json:"folderPath" yaml:"folderPath"`
	APIKeyEnvVar   string          `json:"apiKeyEnvVar,omitempty" yaml:"apiKeyEnvVar,omitempty"`
	Enabled        bool            `json:"enabled" yaml:"enabled"`
	Model          string          `json:"model,omitempty" yaml:"model,omitempty"`
	FieldOverrides *Overrides      `json:"fieldOverrides,omitempty" yaml:"fieldOverrides,omitempty"`
	TagOverrides   *Overrides      `json:"tagOverrides,omitempty" yaml:"tagOverrides,omitempty"`
	PromptOverride *PromptOverride `json:"promptOverride,omitempty" yaml:"promptOverride,omitempty"`
	OutputOverride *OutputOverride `json:"outputOverride,omitempty" yaml:"outputOverride,omitempty"`

	FieldDefinitions []FieldDefinition `json:"fieldDefinitions,omitempty" yaml:"fieldDefinitions,omitempty"`
	TagDefinitions   []TagDefinition   `json:"tagDefinitions,omitempty" yaml:"tagDefinitions,omitempty"`
	PromptTemplate   *PromptTemplate   `json:"promptTemplate,omitempty" yaml:"promptTemplate,omitempty"`
	Output           *OutputConfig     `json:"output,omitempty" yaml:"output,omitempty"`
}

// Clone returns a deep copy of c.
func (c *ClientRecord) Clone() *ClientRecord {
	if c == nil {
		return nil
	}
	out := *c
	out.FieldOverrides = c.FieldOverrides.Clone()
	out.TagOverrides = c.TagOverrides.Clone()
	if c.PromptOverride != nil {
		po := *c.PromptOverride
		out.PromptOverride = &po
	}
	if c.OutputOverride != nil {
		oo := *c.OutputOverride
		out.OutputOverride = &oo
	}
	out.FieldDefinitions = cloneFields(c.FieldDefinitions)
	out.TagDefinitions = cloneTags(c.TagDefinitions)
	if c.PromptTemplate != nil {
		pt := *c.PromptTemplate
		out.PromptTemplate = &pt
	}
	if c.Output != nil {
		oc := *c.Output
		out.Output = &oc
	}
	return &out
}

// HasLegacyFields reports whether the record carries a legacy field list.
func (c *ClientRecord) HasLegacyFields() bool { return len(c.FieldDefinitions) > 0 }

// HasLegacyTags reports whether the record carries a legacy tag list.
func (c *ClientRecord) HasLegacyTags() bool { return len(c.TagDefinitions) > 0 }

// EffectiveConfig is the fully resolved configuration for one tenant. It is
// derived on demand and never persisted.
type EffectiveConfig struct {
	ClientID   string            `json:"clientId,omitempty"`
	Processing ProcessingConfig  `json:"processing"`
	Output     OutputConfig      `json:"output"`
	Model      string            `json:"model,omitempty"`
	Fields     []FieldDefinition `json:"fieldDefinitions"`
	Tags       []TagDefinition   `json:"tagDefinitions"`
	Prompt     PromptTemplate    `json:"promptTemplate"`
	RawPrompt  string            `json:"rawPrompt,omitempty"`
}

// FolderStatus is a point-in-time view of a client's intake folder.
type FolderStatus struct {
	Exists         bool `json:"exists"`
	PendingCount   int  `json:"pendingCount"`
	ProcessedCount int  `json:"processedCount"`
}

func cloneFields(in []FieldDefinition) []FieldDefinition {
	if in == nil {
		return nil
	}
	out := make([]FieldDefinition, len(in))
	copy(out, in)
	return out
}

func cloneTags(in []TagDefinition) []TagDefinition {
	if in == nil {
		return nil
	}
	out := make([]TagDefinition, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}
