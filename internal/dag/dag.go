// Package dag provides directed acyclic graph operations for model dependencies.
// It supports cycle detection, deterministic topological sorting, and
// ancestor/descendant queries used by selections.
package dag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/strata/pkg/core"
)

// Node represents a node in the DAG.
type Node struct {
	// ID is the unique identifier (model name)
	ID string
	// Data holds arbitrary node data
	Data any
	// Order is the registration index, used to break ties
	Order int
}

// Graph represents a directed acyclic graph.
// Iteration order everywhere follows node registration order.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph. Re-adding an existing node only
// updates its data and keeps its original registration order.
func (g *Graph) AddNode(id string, data any) {
	if node, exists := g.nodes[id]; exists {
		node.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data, Order: len(g.order)}
	g.order = append(g.order, id)
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}

	if parentID == childID {
		return CycleError([]string{parentID, parentID})
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}

	return nil
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// Parents returns the parents (dependencies) of a node.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the children (dependents) of a node.
func (g *Graph) Children(id string) []string {
	return g.edges[id]
}

// Nodes returns all nodes in registration order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// NodeIDs returns all node IDs in registration order.
func (g *Graph) NodeIDs() []string {
	return slices.Clone(g.order)
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// FindCycle returns one cycle as a closed path in dependency direction
// (first and last element are the same node), or nil when the graph is
// acyclic.
func (g *Graph) FindCycle() []string {
	_, stuck := g.kahn()
	if len(stuck) == 0 {
		return nil
	}

	// every stuck node keeps at least one stuck parent, so walking parents
	// from any of them must revisit a node
	var start string
	for _, id := range g.order {
		if stuck[id] {
			start = id
			break
		}
	}

	index := make(map[string]int)
	var trail []string
	cur := start
	for {
		if i, seen := index[cur]; seen {
			trail = trail[i:]
			break
		}
		index[cur] = len(trail)
		trail = append(trail, cur)
		for _, parentID := range g.parents[cur] {
			if stuck[parentID] {
				cur = parentID
				break
			}
		}
	}

	slices.Reverse(trail)
	// lead with the earliest registered member
	first := 0
	for i, id := range trail {
		if g.nodes[id].Order < g.nodes[trail[first]].Order {
			first = i
		}
	}
	trail = slices.Concat(trail[first:], trail[:first])
	return append(trail, trail[0])
}

// CycleError builds the configuration error reported for a cycle.
func CycleError(cyclePath []string) error {
	member := ""
	if len(cyclePath) > 0 {
		member = cyclePath[0]
	}
	return core.NewConfigurationError(core.ErrCycle, member, "cycle detected: %s", strings.Join(cyclePath, " -> "))
}

// TopologicalSort returns nodes in topological order (dependencies before
// dependents) using Kahn's algorithm. Among nodes that are ready at the same
// time, the one registered first comes first, so identical input always
// yields the same order.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	sorted, stuck := g.kahn()
	if len(stuck) > 0 {
		return nil, CycleError(g.FindCycle())
	}
	return sorted, nil
}

// kahn sorts what it can and returns the nodes it could not place.
func (g *Graph) kahn() ([]*Node, map[string]bool) {
	inDegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		inDegree[id] = len(g.parents[id])
	}

	// ready is kept sorted by registration order
	var ready []*Node
	push := func(n *Node) {
		i, _ := slices.BinarySearchFunc(ready, n.Order, func(e *Node, order int) int { return e.Order - order })
		ready = slices.Insert(ready, i, n)
	}
	for _, id := range g.order {
		if inDegree[id] == 0 {
			push(g.nodes[id])
		}
	}

	sorted := make([]*Node, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		sorted = append(sorted, n)

		for _, childID := range g.edges[n.ID] {
			inDegree[childID]--
			if inDegree[childID] == 0 {
				push(g.nodes[childID])
			}
		}
	}

	var stuck map[string]bool
	if len(sorted) < len(g.nodes) {
		stuck = make(map[string]bool, len(g.nodes)-len(sorted))
		for id, d := range inDegree {
			if d > 0 {
				stuck[id] = true
			}
		}
	}
	return sorted, stuck
}

// Levels returns node IDs grouped by execution level.
// Nodes at level N can be executed in parallel after level N-1 completes.
// Level 0 contains nodes with no dependencies. Each level keeps
// registration order.
func (g *Graph) Levels() ([][]string, error) {
	sorted, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	levelOf := make(map[string]int, len(sorted))
	var levels [][]string
	for _, n := range sorted {
		level := 0
		for _, parentID := range g.parents[n.ID] {
			if l := levelOf[parentID] + 1; l > level {
				level = l
			}
		}
		levelOf[n.ID] = level
		if level == len(levels) {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], n.ID)
	}

	for _, level := range levels {
		slices.SortFunc(level, func(a, b string) int { return g.nodes[a].Order - g.nodes[b].Order })
	}
	return levels, nil
}

// WithDescendants returns the given nodes plus all their downstream
// dependents, in registration order. Unknown IDs are ignored.
func (g *Graph) WithDescendants(ids []string) []string {
	var known []string
	for _, id := range ids {
		if _, ok := g.nodes[id]; ok {
			known = append(known, id)
		}
	}
	set := reach(known, g.edges)
	for _, id := range known {
		set[id] = true
	}
	return g.inOrder(set)
}

// Descendants returns all transitive dependents of a node,
// excluding the node itself.
func (g *Graph) Descendants(id string) []string {
	set := reach([]string{id}, g.edges)
	delete(set, id)
	return g.inOrder(set)
}

// Ancestors returns all transitive dependencies of a node,
// excluding the node itself.
func (g *Graph) Ancestors(id string) []string {
	set := reach([]string{id}, g.parents)
	delete(set, id)
	return g.inOrder(set)
}

// reach collects every node reachable from start along next, not counting
// start itself unless a path leads back to it.
func reach(start []string, next map[string][]string) map[string]bool {
	seen := make(map[string]bool)
	stack := slices.Clone(start)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range next[id] {
			if !seen[n] {
				seen[n] = true
				stack = append(stack, n)
			}
		}
	}
	return seen
}

// Roots returns nodes with no parents (no dependencies).
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes with no children (no dependents).
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.order {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Subgraph returns a new graph containing only the specified nodes and the
// edges between them. Registration order of the original graph is kept.
func (g *Graph) Subgraph(nodeIDs []string) *Graph {
	nodeSet := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		if _, exists := g.nodes[id]; exists {
			nodeSet[id] = true
		}
	}

	subgraph := NewGraph()
	ids := g.inOrder(nodeSet)
	for _, id := range ids {
		subgraph.AddNode(id, g.nodes[id].Data)
	}
	for _, id := range ids {
		for _, childID := range g.edges[id] {
			if nodeSet[childID] {
				_ = subgraph.AddEdge(id, childID)
			}
		}
	}

	return subgraph
}

// inOrder returns the members of set in registration order.
func (g *Graph) inOrder(set map[string]bool) []string {
	result := make([]string, 0, len(set))
	for _, id := range g.order {
		if set[id] {
			result = append(result, id)
		}
	}
	return result
}
