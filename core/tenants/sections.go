package tenants

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/docintake/docintake/core/extraction"
)

// Override sections accepted by SaveOverrides and RemoveOverrides.
const (
	SectionFields = "fields"
	SectionTags   = "tags"
	SectionPrompt = "prompt"
	SectionOutput = "output"
	SectionModel  = "model"
)

// Sections returns the override section names in sorted order.
func Sections() []string {
	out := []string{SectionFields, SectionTags, SectionPrompt, SectionOutput, SectionModel}
	sort.Strings(out)
	return out
}

// overrideSetter decodes data for section and returns the mutation that
// stores it. Saving a section also drops its legacy counterpart.
func overrideSetter(section string, data json.RawMessage) (func(*extraction.ClientRecord), error) {
	switch section {
	case SectionFields, SectionTags:
		if _, err := decodeObject(section, data); err != nil {
			return nil, err
		}
		ov := extraction.NewOverrides()
		if err := json.Unmarshal(data, ov); err != nil {
			return nil, &extraction.ValidationError{Field: section, Reason: "each entry must be an object", Err: err}
		}
		if section == SectionFields {
			return func(rec *extraction.ClientRecord) {
				rec.FieldOverrides = ov
				rec.FieldDefinitions = nil
			}, nil
		}
		return func(rec *extraction.ClientRecord) {
			rec.TagOverrides = ov
			rec.TagDefinitions = nil
		}, nil
	case SectionPrompt:
		if _, err := decodeObject(section, data); err != nil {
			return nil, err
		}
		var po extraction.PromptOverride
		if err := json.Unmarshal(data, &po); err != nil {
			return nil, &extraction.ValidationError{Field: section, Reason: "prompt sections must be strings", Err: err}
		}
		return func(rec *extraction.ClientRecord) {
			rec.PromptOverride = &po
			rec.PromptTemplate = nil
		}, nil
	case SectionOutput:
		if _, err := decodeObject(section, data); err != nil {
			return nil, err
		}
		var oo extraction.OutputOverride
		if err := json.Unmarshal(data, &oo); err != nil {
			return nil, &extraction.ValidationError{Field: section, Reason: "filenameTemplate must be a string", Err: err}
		}
		return func(rec *extraction.ClientRecord) {
			rec.OutputOverride = &oo
			rec.Output = nil
		}, nil
	case SectionModel:
		model, err := decodeModel(data)
		if err != nil {
			return nil, err
		}
		return func(rec *extraction.ClientRecord) { rec.Model = model }, nil
	default:
		return nil, &extraction.NotFoundError{Kind: "override section", ID: section}
	}
}

// overrideClearer returns the mutation that restores global inheritance for
// section.
func overrideClearer(section string) (func(*extraction.ClientRecord), error) {
	switch section {
	case SectionFields:
		return func(rec *extraction.ClientRecord) {
			rec.FieldOverrides = nil
			rec.FieldDefinitions = nil
		}, nil
	case SectionTags:
		return func(rec *extraction.ClientRecord) {
			rec.TagOverrides = nil
			rec.TagDefinitions = nil
		}, nil
	case SectionPrompt:
		return func(rec *extraction.ClientRecord) {
			rec.PromptOverride = nil
			rec.PromptTemplate = nil
		}, nil
	case SectionOutput:
		return func(rec *extraction.ClientRecord) {
			rec.OutputOverride = nil
			rec.Output = nil
		}, nil
	case SectionModel:
		return func(rec *extraction.ClientRecord) { rec.Model = "" }, nil
	default:
		return nil, &extraction.NotFoundError{Kind: "override section", ID: section}
	}
}

// decodeModel accepts either a JSON string or {"model": "..."}.
func decodeModel(data json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(data)
	var model string
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &model); err != nil {
			return "", &extraction.ValidationError{Field: SectionModel, Reason: "malformed JSON", Err: err}
		}
		return model, nil
	}
	doc, err := decodeObject(SectionModel, trimmed)
	if err != nil {
		return "", err
	}
	raw, ok := doc["model"]
	if !ok {
		return "", &extraction.ValidationError{Field: "model.model", Reason: "is required"}
	}
	if err := json.Unmarshal(raw, &model); err != nil {
		return "", &extraction.ValidationError{Field: "model.model", Reason: "must be a string", Err: err}
	}
	return model, nil
}
