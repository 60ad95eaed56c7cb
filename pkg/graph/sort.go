package graph

import (
	"fmt"
	"sort"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// TopologicalSort orders nodes with Kahn's algorithm. Among nodes whose
// predecessors are all placed, the earliest inserted goes first, so equal
// graphs always sort identically.
func (g *Graph) TopologicalSort() ([]NodeID, error) {
	inDegree := make(map[NodeID]int, g.nodeCount)
	var ready []NodeID
	for _, ent := range g.nodes {
		if ent == nil {
			continue
		}
		id := ent.node.ID
		inDegree[id] = len(g.Predecessors(id))
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	result := make([]NodeID, 0, g.nodeCount)
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		result = append(result, id)

		for _, next := range g.Successors(id) {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = insertSorted(ready, next)
			}
		}
	}

	if len(result) != g.nodeCount {
		var stuck []NodeID
		for id, d := range inDegree {
			if d > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Slice(stuck, func(i, j int) bool { return stuck[i] < stuck[j] })
		return nil, &Diagnostic{
			Kind:    KindCyclicGraph,
			Nodes:   stuck,
			Message: fmt.Sprintf("graph contains a cycle (ordered %d/%d nodes)", len(result), g.nodeCount),
		}
	}

	return result, nil
}

// NodesOfKind returns the IDs of live nodes of one kind in insertion order
func (g *Graph) NodesOfKind(kind schemas.NodeKind) []NodeID {
	var out []NodeID
	for _, ent := range g.nodes {
		if ent != nil && ent.node.Kind == kind {
			out = append(out, ent.node.ID)
		}
	}
	return out
}

func insertSorted(ids []NodeID, id NodeID) []NodeID {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
