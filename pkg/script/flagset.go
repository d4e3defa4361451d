package script

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FlagAssignment is one key/value pair of a beat's flag block.
type FlagAssignment struct {
	Key   string
	Value any
}

// FlagSet keeps flag assignments in declaration order. Duplicate keys are
// preserved so that the last one wins when applied.
type FlagSet []FlagAssignment

// UnmarshalJSON decodes a JSON object without losing key order.
func (fs *FlagSet) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*fs = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("flags: expected object, got %v", tok)
	}

	var out FlagSet
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("flags: expected string key, got %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("flags: value for %q: %w", key, err)
		}
		out = append(out, FlagAssignment{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*fs = out
	return nil
}

// MarshalJSON writes the assignments back as an object in declaration order.
func (fs FlagSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(a.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a.Value)
		if err != nil {
			return nil, fmt.Errorf("flags: value for %q: %w", a.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a YAML mapping without losing key order.
func (fs *FlagSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*fs = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("flags: expected mapping at line %d", node.Line)
	}
	out := make(FlagSet, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("flags: value for %q: %w", node.Content[i].Value, err)
		}
		out = append(out, FlagAssignment{Key: node.Content[i].Value, Value: value})
	}
	*fs = out
	return nil
}
