package tenants

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/docintake/docintake/core/extraction"
)

// keyed describes how to address and create one kind of keyed entry.
type keyed[T any] struct {
	section  string
	keyAttr  string
	keyOf    func(T) string
	withKey  func(T, string) T
	newEntry func(key string) T
}

// merged is one resolved entry with its provenance.
type merged[T any] struct {
	value  T
	source extraction.Source
}

var fieldKeyed = keyed[extraction.FieldDefinition]{
	section: "fieldOverrides",
	keyAttr: "key",
	keyOf:   func(f extraction.FieldDefinition) string { return f.Key },
	withKey: func(f extraction.FieldDefinition, k string) extraction.FieldDefinition {
		f.Key = k
		return f
	},
	newEntry: func(k string) extraction.FieldDefinition {
		return extraction.FieldDefinition{Key: k, Label: k, Type: extraction.FieldText, Enabled: true}
	},
}

var tagKeyed = keyed[extraction.TagDefinition]{
	section: "tagOverrides",
	keyAttr: "id",
	keyOf:   func(t extraction.TagDefinition) string { return t.ID },
	withKey: func(t extraction.TagDefinition, k string) extraction.TagDefinition {
		t.ID = k
		return t
	},
	newEntry: func(k string) extraction.TagDefinition {
		return extraction.TagDefinition{ID: k, Label: k, Enabled: true}
	},
}

// mergeKeyed overlays overrides onto a copy of base. Matching keys are
// shallow-merged in place and tagged override even when nothing changed;
// unknown keys are appended in override order.
func mergeKeyed[T any](k keyed[T], base []T, overrides *extraction.Overrides) ([]merged[T], error) {
	out := make([]merged[T], 0, len(base)+overrides.Len())
	seen := make(map[string]struct{}, len(base))
	for _, entry := range base {
		key := k.keyOf(entry)
		seen[key] = struct{}{}
		attrs, ok := overrides.Get(key)
		if !ok {
			out = append(out, merged[T]{value: entry, source: extraction.SourceGlobal})
			continue
		}
		value, err := overlay(k, entry, attrs)
		if err != nil {
			return nil, err
		}
		out = append(out, merged[T]{value: value, source: extraction.SourceOverride})
	}
	for _, key := range overrides.Keys() {
		if _, ok := seen[key]; ok {
			continue
		}
		attrs, _ := overrides.Get(key)
		value, err := overlay(k, k.newEntry(key), attrs)
		if err != nil {
			return nil, err
		}
		seen[key] = struct{}{}
		out = append(out, merged[T]{value: value, source: extraction.SourceCustom})
	}
	return out, nil
}

// legacyKeyed annotates a legacy whole-section list against the global list.
func legacyKeyed[T any](k keyed[T], base, legacy []T) []merged[T] {
	index := make(map[string]T, len(base))
	for _, entry := range base {
		index[k.keyOf(entry)] = entry
	}
	out := make([]merged[T], 0, len(legacy))
	for _, entry := range legacy {
		src := extraction.SourceCustom
		if g, ok := index[k.keyOf(entry)]; ok {
			src = extraction.SourceOverride
			if reflect.DeepEqual(g, entry) {
				src = extraction.SourceGlobal
			}
		}
		out = append(out, merged[T]{value: entry, source: src})
	}
	return out
}

// overlay shallow-merges attrs onto entry through its JSON form. The key
// attribute is immutable and ignored.
func overlay[T any](k keyed[T], entry T, attrs map[string]any) (T, error) {
	var zero T
	key := k.keyOf(entry)
	raw, err := json.Marshal(entry)
	if err != nil {
		return zero, fmt.Errorf("encode %s entry %q: %w", k.section, key, err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return zero, fmt.Errorf("decode %s entry %q: %w", k.section, key, err)
	}
	for name, value := range attrs {
		if name == k.keyAttr {
			continue
		}
		doc[name] = value
	}
	raw, err = json.Marshal(doc)
	if err != nil {
		return zero, fmt.Errorf("encode %s entry %q: %w", k.section, key, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, &extraction.ValidationError{
			Field:  k.section + "." + key,
			Reason: "attribute has the wrong type",
			Err:    err,
		}
	}
	return k.withKey(out, key), nil
}

func values[T any](in []merged[T]) []T {
	out := make([]T, len(in))
	for i, m := range in {
		out[i] = m.value
	}
	return out
}
