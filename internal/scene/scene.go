// Package scene holds a small in-process scene graph. Route entities are
// materialized into it by cloning a prototype node under a parent container.
package scene

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// RootName is the name of every graph's root node.
const RootName = "Scene"

var (
	// ErrNilPrototype is returned when Instantiate is called without a prototype
	ErrNilPrototype = errors.New("prototype node is nil")
	// ErrForeignNode is returned when a node does not belong to the graph
	ErrForeignNode = errors.New("node belongs to another graph")
	// ErrDetached is returned when a node has already been destroyed
	ErrDetached = errors.New("node is not attached to the scene")
	// ErrRootNode is returned when destroying the scene root
	ErrRootNode = errors.New("cannot destroy the scene root")
)

// Node is one object in the scene. Its fields are fixed at creation; readers
// get copies so a shared *Node cannot be modified from outside the graph.
type Node struct {
	id         uint64
	name       string
	position   mgl64.Vec3
	prototype  string
	properties map[string]any

	graph    *Graph
	parent   *Node
	children []*Node
	attached bool
}

func (n *Node) ID() uint64           { return n.id }
func (n *Node) Name() string         { return n.name }
func (n *Node) Position() mgl64.Vec3 { return n.position }

// Prototype returns the name of the node this one was cloned from, if any.
func (n *Node) Prototype() string { return n.prototype }

// Property returns a single property value.
func (n *Node) Property(key string) (any, bool) {
	v, ok := n.properties[key]
	return v, ok
}

// Properties returns a copy of the node's properties.
func (n *Node) Properties() map[string]any {
	return maps.Clone(n.properties)
}

// Parent returns the parent node, or nil for the root and detached nodes.
func (n *Node) Parent() *Node {
	n.graph.mu.RLock()
	defer n.graph.mu.RUnlock()
	return n.parent
}

// Children returns a snapshot of the node's children in insertion order.
func (n *Node) Children() []*Node {
	n.graph.mu.RLock()
	defer n.graph.mu.RUnlock()
	return slices.Clone(n.children)
}

// Attached reports whether the node is still part of the scene.
func (n *Node) Attached() bool {
	n.graph.mu.RLock()
	defer n.graph.mu.RUnlock()
	return n.attached
}

// Graph is a tree of nodes rooted at a node named RootName.
type Graph struct {
	mu     sync.RWMutex
	root   *Node
	nextID uint64
	count  int
}

// NewGraph creates a graph containing only the root node.
func NewGraph() *Graph {
	g := &Graph{}
	g.root = &Node{name: RootName, graph: g, attached: true}
	g.count = 1
	return g
}

// Root returns the root node.
func (g *Graph) Root() *Node {
	return g.root
}

// Len returns the number of attached nodes, root included.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count
}

// Add creates a plain node under parent. A nil parent means the root.
func (g *Graph) Add(parent *Node, name string, position mgl64.Vec3, props map[string]any) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attach(parent, name, position, "", maps.Clone(props))
}

// Instantiate clones prototype under parent at position with the given name.
// The clone starts with the prototype's properties, overlaid with props.
// A nil parent means the root.
func (g *Graph) Instantiate(prototype, parent *Node, position mgl64.Vec3, name string, props map[string]any) (*Node, error) {
	if prototype == nil {
		return nil, ErrNilPrototype
	}
	if prototype.graph != g {
		return nil, ErrForeignNode
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !prototype.attached {
		return nil, ErrDetached
	}
	merged := maps.Clone(prototype.properties)
	if merged == nil && len(props) > 0 {
		merged = make(map[string]any, len(props))
	}
	maps.Copy(merged, props)

	return g.attach(parent, name, position, prototype.name, merged)
}

func (g *Graph) attach(parent *Node, name string, position mgl64.Vec3, prototype string, props map[string]any) (*Node, error) {
	if parent == nil {
		parent = g.root
	}
	if parent.graph != g {
		return nil, ErrForeignNode
	}
	if !parent.attached {
		return nil, ErrDetached
	}

	g.nextID++
	n := &Node{
		id:         g.nextID,
		name:       name,
		position:   position,
		prototype:  prototype,
		properties: props,
		graph:      g,
		parent:     parent,
		attached:   true,
	}
	parent.children = append(parent.children, n)
	g.count++
	return n, nil
}

// Destroy detaches node and its whole subtree from the scene.
// Destroying a detached node is a no-op; the root cannot be destroyed.
func (g *Graph) Destroy(node *Node) error {
	if node == nil {
		return nil
	}
	if node.graph != g {
		return ErrForeignNode
	}
	if node == g.root {
		return ErrRootNode
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !node.attached {
		return nil
	}
	if p := node.parent; p != nil {
		p.children = slices.DeleteFunc(p.children, func(c *Node) bool { return c == node })
	}
	g.detach(node)
	return nil
}

func (g *Graph) detach(n *Node) {
	for _, c := range n.children {
		g.detach(c)
	}
	n.attached = false
	n.parent = nil
	n.children = nil
	g.count--
}

// Find returns the first attached node named name in depth-first order, or nil.
func (g *Graph) Find(name string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return find(g.root, name)
}

func find(n *Node, name string) *Node {
	if n.name == name {
		return n
	}
	for _, c := range n.children {
		if found := find(c, name); found != nil {
			return found
		}
	}
	return nil
}

// FindOrAdd returns the node named name, creating it under the root if missing.
func (g *Graph) FindOrAdd(name string) *Node {
	if n := g.Find(name); n != nil {
		return n
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	// re-check under the write lock
	if n := find(g.root, name); n != nil {
		return n
	}
	n, _ := g.attach(g.root, name, mgl64.Vec3{}, "", nil)
	return n
}
