package topology

import (
	"fmt"
	"slices"
)

// Node — узел дерева. Хранит только идентификаторы, без живых ссылок на backend.
type Node struct {
	ID       string
	Name     string
	Args     []string
	ChildIDs []string

	// ParentID нужен только для отображения. Пустой у корня.
	ParentID string
}

// Topology — дерево jobs одной отправки, индексированное по идентификатору.
type Topology struct {
	RootID string
	nodes  map[string]*Node
}

func newTopology(rootID, name string, args []string) *Topology {
	return &Topology{
		RootID: rootID,
		nodes: map[string]*Node{
			rootID: {ID: rootID, Name: name, Args: slices.Clone(args)},
		},
	}
}

// addChild добавляет узел в конец списка детей parentID.
func (t *Topology) addChild(parentID, id, name string, args []string) error {
	parent, ok := t.nodes[parentID]
	if !ok {
		return fmt.Errorf("unknown parent %q", parentID)
	}
	if _, dup := t.nodes[id]; dup {
		return fmt.Errorf("duplicate node id %q", id)
	}
	t.nodes[id] = &Node{ID: id, Name: name, Args: slices.Clone(args), ParentID: parentID}
	parent.ChildIDs = append(parent.ChildIDs, id)
	return nil
}

// Root возвращает корневой узел.
func (t *Topology) Root() *Node {
	return t.nodes[t.RootID]
}

// Node возвращает узел по идентификатору.
func (t *Topology) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Children возвращает детей узла в сохранённом порядке.
func (t *Topology) Children(n *Node) []*Node {
	out := make([]*Node, 0, len(n.ChildIDs))
	for _, id := range n.ChildIDs {
		out = append(out, t.nodes[id])
	}
	return out
}

// Len — число узлов.
func (t *Topology) Len() int {
	return len(t.nodes)
}

// Walk обходит дерево в глубину, родитель раньше детей.
func (t *Topology) Walk(fn func(n *Node, depth int)) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		fn(n, depth)
		for _, child := range t.Children(n) {
			visit(child, depth+1)
		}
	}
	visit(t.Root(), 0)
}
