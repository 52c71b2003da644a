package topology

import (
	"encoding/json"
	"fmt"
	"slices"
)

// MaxDepth — сколько уровней может быть в сохранённом дереве.
const MaxDepth = 2

// Record — хранимая форма узла. Формат стабилен: по нему читаются
// записи, сделанные до перезапуска.
type Record struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Args     []string `json:"args"`
	Children []Record `json:"children"`
}

// ToRecord превращает дерево в вложенную запись.
func (t *Topology) ToRecord() Record {
	var build func(n *Node) Record
	build = func(n *Node) Record {
		rec := Record{
			ID:       n.ID,
			Name:     n.Name,
			Args:     slices.Clone(n.Args),
			Children: make([]Record, 0, len(n.ChildIDs)),
		}
		if rec.Args == nil {
			rec.Args = []string{}
		}
		for _, child := range t.Children(n) {
			rec.Children = append(rec.Children, build(child))
		}
		return rec
	}
	return build(t.Root())
}

// Encode сериализует дерево в JSON.
func Encode(t *Topology) ([]byte, error) {
	data, err := json.Marshal(t.ToRecord())
	if err != nil {
		return nil, fmt.Errorf("encode topology %s: %w", t.RootID, err)
	}
	return data, nil
}

// Decode читает JSON и проверяет форму дерева.
// Любое нарушение возвращает ErrTopologyCorrupt.
func Decode(data []byte) (*Topology, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopologyCorrupt, err)
	}
	t, err := FromRecord(rec)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FromRecord строит дерево из записи.
func FromRecord(rec Record) (*Topology, error) {
	if err := checkNode(rec); err != nil {
		return nil, err
	}
	t := newTopology(rec.ID, rec.Name, rec.Args)

	var attach func(parent Record, depth int) error
	attach = func(parent Record, depth int) error {
		if len(parent.Children) > 0 && depth >= MaxDepth {
			return fmt.Errorf("%w: node %q exceeds depth %d", ErrTopologyCorrupt, parent.ID, MaxDepth)
		}
		for _, child := range parent.Children {
			if err := checkNode(child); err != nil {
				return err
			}
			if err := t.addChild(parent.ID, child.ID, child.Name, child.Args); err != nil {
				return fmt.Errorf("%w: %v", ErrTopologyCorrupt, err)
			}
			if err := attach(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := attach(rec, 1); err != nil {
		return nil, err
	}
	return t, nil
}

func checkNode(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: node without id", ErrTopologyCorrupt)
	}
	if rec.Name == "" {
		return fmt.Errorf("%w: node %q without name", ErrTopologyCorrupt, rec.ID)
	}
	return nil
}
