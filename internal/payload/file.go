package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a submission file and returns it as JSON. Files ending in
// .yaml or .yml are decoded as YAML; .json files must be valid JSON. Other
// extensions are tried as JSON first and then as YAML.
func LoadFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlToJSON(path, data)
	case ".json":
		if !json.Valid(data) {
			return nil, fmt.Errorf("parse %s: invalid JSON", path)
		}
		return json.RawMessage(bytes.TrimSpace(data)), nil
	default:
		if json.Valid(data) {
			return json.RawMessage(bytes.TrimSpace(data)), nil
		}
		return yamlToJSON(path, data)
	}
}

// DecodeYAML decodes YAML from r into v. Mapping keys must be strings.
func DecodeYAML(r io.Reader, v any) error {
	return yaml.NewDecoder(r).Decode(v)
}

func yamlToJSON(path string, data []byte) (json.RawMessage, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse %s: empty document", path)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert %s to JSON: %w", path, err)
	}
	return out, nil
}

// Write encodes p as indented JSON.
func Write(w io.Writer, p *Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
