package graph

import "sort"

// Arena is an immutable snapshot of the graph. A new arena is published on every commit so
// readers never see a partially applied migration.
type Arena struct {
	Version uint64
	Nodes   []*Node
	byName  map[string]NodeID
}

func newArena() *Arena {
	return &Arena{byName: map[string]NodeID{}}
}

// Node returns a live node by id.
func (a *Arena) Node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(a.Nodes) || a.Nodes[id].Removed {
		return nil, false
	}
	return a.Nodes[id], true
}

// Lookup returns a live node by name.
func (a *Arena) Lookup(name string) (*Node, bool) {
	id, ok := a.byName[name]
	if !ok {
		return nil, false
	}
	return a.Node(id)
}

// Live returns the live nodes in id order, which is a topological order.
func (a *Arena) Live() []*Node {
	ret := make([]*Node, 0, len(a.Nodes))
	for _, n := range a.Nodes {
		if !n.Removed {
			ret = append(ret, n)
		}
	}
	return ret
}

// Len returns the number of live nodes.
func (a *Arena) Len() int { return len(a.byName) }

// Downstream returns the nodes reachable from the given roots, including the roots, grouped by
// level. Every level is sorted by id.
func (a *Arena) Downstream(roots ...NodeID) [][]*Node {
	seen := map[NodeID]bool{}
	queue := append([]NodeID{}, roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		n, ok := a.Node(id)
		if !ok {
			continue
		}
		seen[id] = true
		queue = append(queue, n.Children...)
	}

	ids := make([]NodeID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var levels [][]*Node
	for _, id := range ids {
		n := a.Nodes[id]
		for len(levels) <= n.Level {
			levels = append(levels, nil)
		}
		levels[n.Level] = append(levels[n.Level], n)
	}
	return levels
}

func (a *Arena) clone() *Arena {
	ret := &Arena{
		Version: a.Version,
		Nodes:   append([]*Node(nil), a.Nodes...),
		byName:  make(map[string]NodeID, len(a.byName)),
	}
	for k, v := range a.byName {
		ret.byName[k] = v
	}
	return ret
}
