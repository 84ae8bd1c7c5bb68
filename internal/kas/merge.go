package kas

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// mergeNodes merges the mapping node upper onto lower and returns a new
// mapping. Mappings are merged recursively; any other value in upper
// replaces the one in lower. Scalars are carried over as written, so
// `branch: 1.10` stays "1.10". Neither input is modified.
func mergeNodes(lower, upper *yaml.Node) *yaml.Node {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if lower != nil {
		out.Style = lower.Style
		out.Content = append(out.Content, lower.Content...)
	}
	if upper == nil {
		return out
	}
	for i := 0; i+1 < len(upper.Content); i += 2 {
		key, uv := upper.Content[i], upper.Content[i+1]
		idx := mappingIndex(out, key.Value)
		if idx < 0 {
			out.Content = append(out.Content, key, uv)
			continue
		}
		lv := out.Content[idx+1]
		if lv.Kind == yaml.MappingNode && uv.Kind == yaml.MappingNode {
			out.Content[idx+1] = mergeNodes(lv, uv)
			continue
		}
		out.Content[idx+1] = uv
	}
	return out
}

// mappingIndex returns the position of key in the mapping m, or -1.
func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// PlainValue converts a merged document into maps, slices and scalars for
// encoders other than YAML. Integers and booleans keep their type; every
// other scalar is emitted as the text it was written with.
func PlainValue(n *yaml.Node) any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return PlainValue(n.Content[0])
	case yaml.AliasNode:
		return PlainValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			m[n.Content[i].Value] = PlainValue(n.Content[i+1])
		}
		return m
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			out = append(out, PlainValue(c))
		}
		return out
	}

	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return b
		}
	case "!!int":
		if json.Valid([]byte(n.Value)) {
			return json.Number(n.Value)
		}
	}
	return n.Value
}
