package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/dataprep/pkg/types"
)

// WriteMapping serializes the class mapping to path in the given format
// (types.MappingFormatJSON or types.MappingFormatYAML). Keys keep the order
// of cats.
func WriteMapping(fs afero.Fs, path, format string, cats []types.Category) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case types.MappingFormatJSON:
		data, err = mappingJSON(cats)
	case types.MappingFormatYAML:
		data, err = yaml.Marshal(mappingNode(cats))
	default:
		return fmt.Errorf("%w: %q", types.ErrMappingFormatUnknown, format)
	}
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

// mappingJSON renders cats as an indented JSON object in category order.
func mappingJSON(cats []types.Category) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, c := range cats {
		k, err := json.Marshal(c.ClassID)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.ClassName)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("\n  ")
		b.Write(k)
		b.WriteString(": ")
		b.Write(v)
	}
	if len(cats) > 0 {
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	return b.Bytes(), nil
}

// mappingNode builds a YAML mapping of string scalars in category order.
func mappingNode(cats []types.Category) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, c := range cats {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.ClassID},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.ClassName},
		)
	}
	return node
}

// ReadMapping loads a mapping written by WriteMapping.
func ReadMapping(fs afero.Fs, path, format string) (map[string]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	m := make(map[string]string)
	switch format {
	case types.MappingFormatJSON:
		err = json.Unmarshal(data, &m)
	case types.MappingFormatYAML:
		err = yaml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrMappingFormatUnknown, format)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal mapping: %w", err)
	}
	return m, nil
}
