package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Overrides maps an entry key (field key or tag id) to the attributes that
// replace the global entry's attributes. Document key order is preserved
// because new custom entries are appended in that order.
type Overrides struct {
	keys   []string
	values map[string]map[string]any
}

// NewOverrides returns an empty override set.
func NewOverrides() *Overrides {
	return &Overrides{values: map[string]map[string]any{}}
}

// Set records attrs for key, keeping the original position if key already exists.
func (o *Overrides) Set(key string, attrs map[string]any) *Overrides {
	if o.values == nil {
		o.values = map[string]map[string]any{}
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	o.values[key] = attrs
	return o
}

// Get returns the attributes recorded for key.
func (o *Overrides) Get(key string) (map[string]any, bool) {
	if o == nil {
		return nil, false
	}
	attrs, ok := o.values[key]
	return attrs, ok
}

// Keys returns keys in document order.
func (o *Overrides) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of overridden entries.
func (o *Overrides) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Clone returns a copy whose attribute maps are not shared with o.
func (o *Overrides) Clone() *Overrides {
	if o == nil {
		return nil
	}
	out := NewOverrides()
	for _, k := range o.keys {
		attrs := make(map[string]any, len(o.values[k]))
		for ak, av := range o.values[k] {
			attrs[ak] = av
		}
		out.Set(k, attrs)
	}
	return out
}

func (o *Overrides) UnmarshalJSON(data []byte) error {
	o.keys = nil
	o.values = map[string]map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("overrides: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("overrides: unexpected key %v", keyTok)
		}
		var attrs map[string]any
		if err := dec.Decode(&attrs); err != nil {
			return fmt.Errorf("overrides: entry %q: %w", key, err)
		}
		o.Set(key, attrs)
	}
	_, err = dec.Token()
	return err
}

func (o Overrides) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		attrs := o.values[k]
		if attrs == nil {
			attrs = map[string]any{}
		}
		valBytes, err := json.Marshal(attrs)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Overrides) UnmarshalYAML(node *yaml.Node) error {
	o.keys = nil
	o.values = map[string]map[string]any{}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("overrides: expected mapping at line %d", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var attrs map[string]any
		if err := node.Content[i+1].Decode(&attrs); err != nil {
			return fmt.Errorf("overrides: entry %q: %w", key, err)
		}
		o.Set(key, attrs)
	}
	return nil
}

func (o Overrides) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range o.keys {
		var val yaml.Node
		attrs := o.values[k]
		if attrs == nil {
			attrs = map[string]any{}
		}
		if err := val.Encode(attrs); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &val)
	}
	return node, nil
}
