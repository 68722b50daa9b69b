package extraction

// CheckUnique rejects a field list with a repeated key or a tag list with a
// repeated id. Empty lists pass.
func CheckUnique(fields []FieldDefinition, tags []TagDefinition) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f.Key]; ok {
			return &ValidationError{Field: "fieldDefinitions." + f.Key, Reason: "duplicate field key"}
		}
		seen[f.Key] = struct{}{}
	}
	seen = make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t.ID]; ok {
			return &ValidationError{Field: "tagDefinitions." + t.ID, Reason: "duplicate tag id"}
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
