// Copyright 2024 rg0now. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dag

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when the graph is not acyclic.
var ErrCycle = errors.New("cycle")

// New creates an empty graph.
func New() *Graph {
	return &Graph{order: map[string]int{}, succ: map[string][]string{}}
}

// TopoSort returns the nodes so that every edge points forward. Among the nodes that are ready
// at the same time the one inserted first comes first, so the result is deterministic.
func (g *Graph) TopoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		for _, m := range g.succ[n] {
			indegree[m]++
		}
	}

	ready := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, m := range g.Edges(n) {
			indegree[m]--
			if indegree[m] == 0 {
				ready = append(ready, m)
			}
		}
	}

	if len(order) < len(g.Nodes) {
		var rest []string
		for _, n := range g.Nodes {
			if indegree[n] > 0 {
				rest = append(rest, n)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrCycle, rest)
	}
	return order, nil
}
