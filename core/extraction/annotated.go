package extraction

// Source records where an effective value came from. Display only.
type Source string

const (
	SourceGlobal   Source = "global"
	SourceOverride Source = "override"
	SourceCustom   Source = "custom"
)

// AnnotatedField is an effective field plus its provenance.
type AnnotatedField struct {
	FieldDefinition
	Source Source `json:"_source"`
}

// AnnotatedTag is an effective tag plus its provenance.
type AnnotatedTag struct {
	TagDefinition
	Source Source `json:"_source"`
}

// AnnotatedPrompt is the effective prompt plus its provenance.
type AnnotatedPrompt struct {
	PromptTemplate
	RawPrompt string `json:"rawPrompt,omitempty"`
	Source    Source `json:"_source"`
}

// AnnotatedOutput is the effective output section plus its provenance.
type AnnotatedOutput struct {
	OutputConfig
	Source Source `json:"_source"`
}

// AnnotatedModel is the effective model id plus its provenance.
type AnnotatedModel struct {
	Value  string `json:"value,omitempty"`
	Source Source `json:"_source"`
}

// AnnotatedConfig is the UI view of an effective configuration. It is a
// separate type from EffectiveConfig so it can never be fed into prompt
// assembly.
type AnnotatedConfig struct {
	ClientID     string        `json:"clientId"`
	Name         string        `json:"name"`
	Enabled      bool          `json:"enabled"`
	FolderPath   string        `json:"folderPath"`
	FolderStatus *FolderStatus `json:"folderStatus,omitempty"`
	FolderError  string        `json:"folderError,omitempty"`

	Fields []AnnotatedField `json:"fieldDefinitions"`
	Tags   []AnnotatedTag   `json:"tagDefinitions"`
	Prompt AnnotatedPrompt  `json:"prompt"`
	Output AnnotatedOutput  `json:"output"`
	Model  AnnotatedModel   `json:"model"`
}
