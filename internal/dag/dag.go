// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dag implements a small labeled directed graph used to order the nodes of a dataflow
// recipe before they are added to the engine. An edge from a to b means that a must be created
// before b.
package dag

import (
	"sort"
)

// Graph is a directed graph over string labels. Nodes keep their insertion order, which breaks
// ties wherever an order is returned.
type Graph struct {
	Nodes []string
	order map[string]int
	succ  map[string][]string
}

// AddNode adds a node, it returns false if the label is already taken.
func (g *Graph) AddNode(label string) bool {
	if g.HasNode(label) {
		return false
	}
	g.order[label] = len(g.Nodes)
	g.Nodes = append(g.Nodes, label)
	return true
}

func (g *Graph) HasNode(label string) bool {
	_, ok := g.order[label]
	return ok
}

// AddEdge adds the edge from -> to, parallel edges are collapsed.
func (g *Graph) AddEdge(from, to string) {
	if g.HasEdge(from, to) {
		return
	}
	g.succ[from] = append(g.succ[from], to)
}

func (g *Graph) HasEdge(from, to string) bool {
	for _, n := range g.succ[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Edges returns the successors of a node in insertion order.
func (g *Graph) Edges(from string) []string {
	edges := append([]string(nil), g.succ[from]...)
	sort.Slice(edges, func(i, j int) bool { return g.order[edges[i]] < g.order[edges[j]] })
	return edges
}
