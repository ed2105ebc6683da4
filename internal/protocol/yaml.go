package protocol

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML encodes a protocol for export and offline editing.
func MarshalYAML(p *Protocol) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode protocol: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode protocol: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes an exported protocol. Unknown keys are rejected so
// a mistyped field name does not silently drop a value.
func UnmarshalYAML(data []byte) (*Protocol, error) {
	var p Protocol
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse protocol YAML: %w", err)
	}
	if p.Fields == nil {
		p.Fields = map[string]string{}
	}
	return &p, nil
}
