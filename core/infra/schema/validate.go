package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ValidateSchema validates a decoded value against a JSON schema payload.
func ValidateSchema(id string, schema []byte, value any) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema is empty")
	}
	resourceID := schemaID(id)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceID, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resourceID)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	payload, err := normalizeValue(value)
	if err != nil {
		return fmt.Errorf("normalize payload: %w", err)
	}
	if err := compiled.Validate(payload); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return fmt.Errorf("schema validation failed: %w", err)
		}
		return &Error{Violations: leaves(verr)}
	}
	return nil
}

// Violation is one leaf failure of a schema check.
type Violation struct {
	// Location is the JSON pointer of the offending value. For a missing
	// required property it points at the property itself.
	Location string
	Message  string
}

// Path returns Location as a dotted path, "" for the document root.
func (v Violation) Path() string {
	if v.Location == "" || v.Location == "/" {
		return ""
	}
	parts := strings.Split(strings.TrimPrefix(v.Location, "/"), "/")
	for i, p := range parts {
		parts[i] = strings.NewReplacer("~1", "/", "~0", "~").Replace(p)
	}
	return strings.Join(parts, ".")
}

// Error reports every leaf violation of one document, sorted by location.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		loc := v.Location
		if loc == "" {
			loc = "/"
		}
		parts = append(parts, loc+": "+v.Message)
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// First returns the violation with the lowest location.
func (e *Error) First() Violation {
	if len(e.Violations) == 0 {
		return Violation{}
	}
	return e.Violations[0]
}

// ValidateDocument parses a YAML or JSON document and validates it.
func ValidateDocument(id string, schema []byte, doc []byte) error {
	if len(bytes.TrimSpace(doc)) == 0 {
		return fmt.Errorf("%s document is empty", id)
	}
	var payload any
	if err := yaml.Unmarshal(doc, &payload); err != nil {
		return fmt.Errorf("parse %s document: %w", id, err)
	}
	return ValidateSchema(id, schema, payload)
}

// normalizeValue converts raw bytes and YAML-decoded trees into the
// json.Unmarshal shapes the validator expects.
func normalizeValue(value any) (any, error) {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		data = encoded
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

var missingProp = regexp.MustCompile(`'([^']+)'`)

// leaves flattens a validation error to its leaf causes.
func leaves(err *jsonschema.ValidationError) []Violation {
	var out []Violation
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		loc := e.InstanceLocation
		if strings.HasSuffix(e.KeywordLocation, "/required") {
			if m := missingProp.FindStringSubmatch(e.Message); m != nil {
				loc = strings.TrimSuffix(loc, "/") + "/" + m[1]
			}
		}
		out = append(out, Violation{Location: loc, Message: e.Message})
	}
	walk(err)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

func schemaID(id string) string {
	if id == "" {
		id = "schema"
	}
	return "inmemory://" + id
}
