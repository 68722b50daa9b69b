package tenants

import (
	"github.com/docintake/docintake/core/extraction"
)

// resolution is the merged view shared by Effective and Annotate.
type resolution struct {
	fields       []merged[extraction.FieldDefinition]
	tags         []merged[extraction.TagDefinition]
	prompt       extraction.PromptTemplate
	rawPrompt    string
	promptSource extraction.Source
	output       extraction.OutputConfig
	outputSource extraction.Source
	model        string
	modelSource  extraction.Source
}

// Effective computes the configuration a client runs with. Neither input is
// modified. A nil client yields the global configuration.
func Effective(global *extraction.GlobalConfig, client *extraction.ClientRecord) (*extraction.EffectiveConfig, error) {
	res, err := resolve(global, client)
	if err != nil {
		return nil, err
	}
	cfg := &extraction.EffectiveConfig{
		Output:    res.output,
		Model:     res.model,
		Fields:    values(res.fields),
		Tags:      values(res.tags),
		Prompt:    res.prompt,
		RawPrompt: res.rawPrompt,
	}
	if global != nil {
		cfg.Processing = global.Processing
	}
	if client != nil {
		cfg.ClientID = client.ClientID
	}
	return cfg, nil
}

// Annotate computes the effective configuration with per-item provenance. The
// folder status is left for the caller to attach.
func Annotate(global *extraction.GlobalConfig, client *extraction.ClientRecord) (*extraction.AnnotatedConfig, error) {
	res, err := resolve(global, client)
	if err != nil {
		return nil, err
	}
	out := &extraction.AnnotatedConfig{
		Fields: make([]extraction.AnnotatedField, len(res.fields)),
		Tags:   make([]extraction.AnnotatedTag, len(res.tags)),
		Prompt: extraction.AnnotatedPrompt{PromptTemplate: res.prompt, RawPrompt: res.rawPrompt, Source: res.promptSource},
		Output: extraction.AnnotatedOutput{OutputConfig: res.output, Source: res.outputSource},
		Model:  extraction.AnnotatedModel{Value: res.model, Source: res.modelSource},
	}
	for i, f := range res.fields {
		out.Fields[i] = extraction.AnnotatedField{FieldDefinition: f.value, Source: f.source}
	}
	for i, t := range res.tags {
		out.Tags[i] = extraction.AnnotatedTag{TagDefinition: t.value, Source: t.source}
	}
	if client != nil {
		out.ClientID = client.ClientID
		out.Name = client.Name
		out.Enabled = client.Enabled
		out.FolderPath = client.FolderPath
	}
	return out, nil
}

func resolve(global *extraction.GlobalConfig, client *extraction.ClientRecord) (*resolution, error) {
	g := global.Clone()
	if g == nil {
		g = &extraction.GlobalConfig{}
	}
	c := client.Clone()
	if c == nil {
		c = &extraction.ClientRecord{}
	}

	res := &resolution{}
	var err error
	if c.HasLegacyFields() {
		res.fields = legacyKeyed(fieldKeyed, g.FieldDefinitions, c.FieldDefinitions)
	} else if res.fields, err = mergeKeyed(fieldKeyed, g.FieldDefinitions, c.FieldOverrides); err != nil {
		return nil, err
	}
	if c.HasLegacyTags() {
		res.tags = legacyKeyed(tagKeyed, g.TagDefinitions, c.TagDefinitions)
	} else if res.tags, err = mergeKeyed(tagKeyed, g.TagDefinitions, c.TagOverrides); err != nil {
		return nil, err
	}
	resolvePrompt(res, g, c)
	resolveOutput(res, g, c)

	res.model, res.modelSource = g.Model, extraction.SourceGlobal
	if c.Model != "" {
		res.model = c.Model
		if c.Model != g.Model {
			res.modelSource = extraction.SourceOverride
		}
	}
	return res, nil
}

// resolvePrompt applies, highest first: client raw prompt, global raw
// prompt, legacy template, structured override merge. A legacy template
// outranks the client's granular override, its raw prompt included.
func resolvePrompt(res *resolution, g *extraction.GlobalConfig, c *extraction.ClientRecord) {
	if c.PromptTemplate != nil {
		res.prompt = *c.PromptTemplate
		if g.RawPrompt != "" {
			res.rawPrompt = g.RawPrompt
			res.promptSource = extraction.SourceGlobal
			return
		}
		res.promptSource = sourceOf(res.prompt == g.PromptTemplate)
		return
	}
	res.prompt = g.PromptTemplate
	po := c.PromptOverride
	if po != nil {
		if po.Preamble != nil {
			res.prompt.Preamble = *po.Preamble
		}
		if po.GeneralRules != nil {
			res.prompt.GeneralRules = *po.GeneralRules
		}
		if po.Suffix != nil {
			res.prompt.Suffix = *po.Suffix
		}
	}
	switch {
	case po != nil && po.RawPrompt != nil && *po.RawPrompt != "":
		res.rawPrompt = *po.RawPrompt
		res.promptSource = sourceOf(res.rawPrompt == g.RawPrompt)
	case g.RawPrompt != "":
		res.rawPrompt = g.RawPrompt
		res.promptSource = extraction.SourceGlobal
	default:
		res.promptSource = sourceOf(res.prompt == g.PromptTemplate)
	}
}

// resolveOutput only lets a client change naming; folder layout is shared.
func resolveOutput(res *resolution, g *extraction.GlobalConfig, c *extraction.ClientRecord) {
	res.output = g.Output
	switch {
	case c.Output != nil:
		if c.Output.FilenameTemplate != "" {
			res.output.FilenameTemplate = c.Output.FilenameTemplate
		}
		res.output.IncludeSummary = c.Output.IncludeSummary
	case c.OutputOverride != nil && c.OutputOverride.FilenameTemplate != nil:
		res.output.FilenameTemplate = *c.OutputOverride.FilenameTemplate
	}
	res.outputSource = sourceOf(res.output == g.Output)
}

func sourceOf(unchanged bool) extraction.Source {
	if unchanged {
		return extraction.SourceGlobal
	}
	return extraction.SourceOverride
}
