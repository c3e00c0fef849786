package dag

import (
	"cmp"
	"sync"
)

// Graph is a collection of nodes and their dependencies, representing a DAG.
// Keys are ordered so every query returns a deterministic slice.
// All operations on the graph are concurrency-safe.
type Graph[K cmp.Ordered] struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[K]*node[K]
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using keys),
// not by direct struct manipulation.
type node[K cmp.Ordered] struct {
	id K
	// deps holds the set of nodes that this node depends on (predecessors).
	deps map[K]*node[K]
	// dependents holds the set of nodes that depend on this node (successors).
	dependents map[K]*node[K]
}
