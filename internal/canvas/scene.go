// Package canvas projects the workflow graph (and ad hoc architecture
// mentions) onto a scene graph of positioned visual nodes and connectors.
//
// The package has three layers: pure geometry ([Center], [EdgePoint]), the
// scene-graph contract ([Surface], [Node], [Connector]), and the projection
// engine ([Projector]) that derives visuals from graph state. Visual ids are
// always produced by the typed constructors in ids.go so that the same graph
// re-projects to the same visual ids.
package canvas

import "sync"

// Node is a positioned, typed visual element on the rendering surface.
type Node struct {
	ID     string  `json:"id"`
	Type   Kind    `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// Text is the node's displayed text, where the kind renders any.
	Text string `json:"text,omitempty"`

	// Style is the fill color; empty means the kind's default.
	Style string `json:"style,omitempty"`
}

// Binding attaches a connector endpoint to a visual node. The rendering
// surface uses it to keep the line attached when the bound shape moves. The
// projection always binds to the shape center with a normalized anchor of
// {0.5, 0.5} and leaves precision flags off.
type Binding struct {
	NodeID    string  `json:"nodeId"`
	AnchorX   float64 `json:"anchorX"`
	AnchorY   float64 `json:"anchorY"`
	IsPrecise bool    `json:"isPrecise"`
	IsExact   bool    `json:"isExact"`
}

// bindTo returns the standard center binding for a node.
func bindTo(nodeID string) *Binding {
	return &Binding{NodeID: nodeID, AnchorX: 0.5, AnchorY: 0.5}
}

// Connector is a directed arrow between two points, optionally bound to the
// visual nodes at its endpoints.
type Connector struct {
	ID    string `json:"id"`
	Type  string `json:"type"` // always "arrow"
	Start Point  `json:"startPoint"`
	End   Point  `json:"endPoint"`

	BindStart *Binding `json:"bindingStart,omitempty"`
	BindEnd   *Binding `json:"bindingEnd,omitempty"`
}

// Surface is the mutable scene-graph handle the projection engine draws
// onto. Implementations are the live rendering client and [MemSurface].
type Surface interface {
	// CreateNodes adds visual nodes to the scene.
	CreateNodes(nodes []Node)

	// CreateConnectors adds connectors to the scene.
	CreateConnectors(conns []Connector)

	// DeleteNodes removes the identified nodes; unknown ids are ignored.
	DeleteNodes(ids []string)

	// Node returns the node with the given id, or false when absent.
	Node(id string) (Node, bool)

	// Nodes returns every node currently in the scene.
	Nodes() []Node

	// OnAfterCreate registers a handler invoked after each CreateNodes
	// call with the nodes just created.
	OnAfterCreate(fn func(created []Node))
}

// MemSurface is an in-memory [Surface] for headless operation and tests.
// It keeps connectors too, so tests can assert on the full scene.
type MemSurface struct {
	mu       sync.Mutex
	nodes    map[string]Node
	order    []string
	conns    map[string]Connector
	handlers []func([]Node)
}

var _ Surface = (*MemSurface)(nil)

// NewMemSurface returns an empty in-memory surface.
func NewMemSurface() *MemSurface {
	return &MemSurface{
		nodes: make(map[string]Node),
		conns: make(map[string]Connector),
	}
}

// CreateNodes implements [Surface].
func (s *MemSurface) CreateNodes(nodes []Node) {
	s.mu.Lock()
	for _, n := range nodes {
		if _, exists := s.nodes[n.ID]; !exists {
			s.order = append(s.order, n.ID)
		}
		s.nodes[n.ID] = n
	}
	handlers := append(([]func([]Node))(nil), s.handlers...)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(nodes)
	}
}

// CreateConnectors implements [Surface].
func (s *MemSurface) CreateConnectors(conns []Connector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range conns {
		s.conns[c.ID] = c
	}
}

// DeleteNodes implements [Surface]. Connectors bound to a deleted node are
// dropped with it, as a real renderer would.
func (s *MemSurface) DeleteNodes(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.nodes[id]; !ok {
			continue
		}
		delete(s.nodes, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		for cid, c := range s.conns {
			if (c.BindStart != nil && c.BindStart.NodeID == id) ||
				(c.BindEnd != nil && c.BindEnd.NodeID == id) {
				delete(s.conns, cid)
			}
		}
	}
}

// Node implements [Surface].
func (s *MemSurface) Node(id string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	return n, ok
}

// Nodes implements [Surface]. Nodes are returned in creation order.
func (s *MemSurface) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id])
	}
	return out
}

// OnAfterCreate implements [Surface].
func (s *MemSurface) OnAfterCreate(fn func(created []Node)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// Connectors returns every connector currently in the scene. Not part of
// [Surface]; used by tests and the headless export path.
func (s *MemSurface) Connectors() []Connector {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Connector, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Clear removes every node and connector.
func (s *MemSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]Node)
	s.order = nil
	s.conns = make(map[string]Connector)
}
