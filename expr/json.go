package expr

import (
	"fmt"

	json "github.com/goccy/go-json"
)

type wireNode struct {
	Kind     string      `json:"kind"`
	Marker   string      `json:"marker,omitempty"`
	Field    string      `json:"field,omitempty"`
	Value    string      `json:"value,omitempty"`
	Null     bool        `json:"null,omitempty"`
	Name     string      `json:"name,omitempty"`
	Fields   []string    `json:"fields,omitempty"`
	Args     []string    `json:"args,omitempty"`
	Children []*wireNode `json:"children,omitempty"`
}

func toWire(n *Node) *wireNode {
	w := &wireNode{
		Kind:  n.kind.String(),
		Field: n.field,
		Value: n.value,
		Null:  n.null,
		Name:  n.name,
	}
	if n.kind == KindMarker {
		w.Marker = n.marker.Label()
	}
	if n.kind == KindFunction {
		w.Fields = n.args[:n.nfields]
		w.Args = n.args[n.nfields:]
	}
	for _, c := range n.children {
		w.Children = append(w.Children, toWire(c))
	}
	return w
}

func fromWire(w *wireNode) (*Node, error) {
	if w == nil {
		return nil, fmt.Errorf("expr: null node")
	}
	kind, err := ParseKind(w.Kind)
	if err != nil {
		return nil, err
	}
	n := &Node{kind: kind, field: w.Field, value: w.Value, null: w.Null, name: w.Name}
	if kind == KindMarker {
		if n.marker, err = ParseMarker(w.Marker); err != nil {
			return nil, err
		}
	}
	if kind == KindFunction {
		n.args = append(append([]string{}, w.Fields...), w.Args...)
		n.nfields = len(w.Fields)
	}
	for _, wc := range w.Children {
		c, err := fromWire(wc)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, c)
	}
	return n, nil
}

// MarshalJSON implements json.Marshaler.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(n))
}

// UnmarshalJSON implements json.Unmarshaler. The decoded tree is validated.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	dec, err := fromWire(&w)
	if err != nil {
		return err
	}
	if err := Validate(dec); err != nil {
		return err
	}
	*n = *dec
	return nil
}
