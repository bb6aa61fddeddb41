package domain

import (
	"encoding/json"
	"slices"
)

// BlockType is the tag of a block kind. The closed set of tags and their
// capabilities live in the registry.
type BlockType string

// Props holds a block's configurable fields. Values are JSON-compatible.
type Props map[string]any

// Clone returns a deep copy of p.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep copies JSON-like values.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = CloneValue(vv)
		}
		return m
	case Props:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = CloneValue(vv)
		}
		return s
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// Block is one placed block instance. Children and ParentID are plain id
// references into the owning Composition; ParentID is empty for root blocks.
type Block struct {
	ID       string    `json:"id"`
	Type     BlockType `json:"type"`
	Props    Props     `json:"props"`
	Children []string  `json:"children"`
	ParentID string    `json:"parentId,omitempty"`
}

// Clone returns a deep copy of b.
func (b *Block) Clone() *Block {
	return &Block{
		ID:       b.ID,
		Type:     b.Type,
		Props:    b.Props.Clone(),
		Children: slices.Clone(b.Children),
		ParentID: b.ParentID,
	}
}

// Placement addresses a slot in a container. An empty ParentID is the root
// sequence of the page.
type Placement struct {
	ParentID string `json:"parentId"`
	Index    int    `json:"index"`
}

// Patch is a partial props update for a single block.
type Patch struct {
	BlockID string `json:"blockId"`
	Props   Props  `json:"props"`
}

// MarshalProps encodes props as JSON, mapping nil to "{}".
func MarshalProps(p Props) (string, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalProps decodes a JSON object into Props.
func UnmarshalProps(s string) (Props, error) {
	if s == "" {
		return Props{}, nil
	}
	var p Props
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = Props{}
	}
	return p, nil
}
