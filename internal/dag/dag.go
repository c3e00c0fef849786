package dag

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// New creates and returns an initialized, empty Graph.
func New[K cmp.Ordered]() *Graph[K] {
	return &Graph[K]{
		nodes: make(map[K]*node[K]),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph[K]) AddNode(id K) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node[K]{
		id:         id,
		deps:       make(map[K]*node[K]),
		dependents: make(map[K]*node[K]),
	}
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph[K]) AddEdge(fromID, toID K) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %v -> %v", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %v", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %v", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// Dependencies returns the sorted IDs of the nodes the given node directly depends on.
func (g *Graph[K]) Dependencies(id K) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}
	return slices.Sorted(maps.Keys(n.deps)), nil
}

// Dependents returns the sorted IDs of the nodes that directly depend on the given node.
func (g *Graph[K]) Dependents(id K) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}
	return slices.Sorted(maps.Keys(n.dependents)), nil
}

// Ancestors returns every node the given node transitively depends on, sorted.
func (g *Graph[K]) Ancestors(id K) ([]K, error) {
	return g.reach(id, func(n *node[K]) map[K]*node[K] { return n.deps })
}

// Descendants returns every node that transitively depends on the given node, sorted.
func (g *Graph[K]) Descendants(id K) ([]K, error) {
	return g.reach(id, func(n *node[K]) map[K]*node[K] { return n.dependents })
}

func (g *Graph[K]) reach(id K, next func(*node[K]) map[K]*node[K]) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	start, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}

	seen := make(map[K]struct{})
	stack := []*node[K]{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for k, m := range next(n) {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			stack = append(stack, m)
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// if a cycle is found, indicating the first node involved in the detected cycle.
func (g *Graph[K]) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Classic depth-first search with three sets of nodes:
	// permanent: fully visited and not part of a cycle.
	// temporary: currently in the recursion stack.
	// unvisited: all other nodes.
	permanent := make(map[K]bool)
	temporary := make(map[K]bool)

	var visit func(n *node[K]) error
	visit = func(n *node[K]) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return fmt.Errorf("cycle detected involving node '%v'", n.id)
		}

		temporary[n.id] = true
		for _, k := range slices.Sorted(maps.Keys(n.dependents)) {
			if err := visit(n.dependents[k]); err != nil {
				return err
			}
		}
		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, k := range slices.Sorted(maps.Keys(g.nodes)) {
		if err := visit(g.nodes[k]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns all nodes such that every node appears after all of
// its dependencies. Ties are broken by key order, so the result is stable.
func (g *Graph[K]) TopologicalOrder() ([]K, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	remaining := make(map[K]int, len(g.nodes))
	var ready []K
	for k, n := range g.nodes {
		remaining[k] = len(n.deps)
		if len(n.deps) == 0 {
			ready = append(ready, k)
		}
	}

	order := make([]K, 0, len(g.nodes))
	for len(ready) > 0 {
		slices.Sort(ready)
		k := ready[0]
		ready = ready[1:]
		order = append(order, k)
		for dk := range g.nodes[k].dependents {
			remaining[dk]--
			if remaining[dk] == 0 {
				ready = append(ready, dk)
			}
		}
	}
	return order, nil
}
