package graph

// Degrees counts the valid edges incident to every node. Each node starts at zero, an
// edge adds one to its source and one to its target (a self loop adds two), and edges
// naming a node that is not in nodes are skipped.
func Degrees(nodes []Node, edges []Edge) map[string]int {
	degrees := make(map[string]int, len(nodes))
	for _, n := range nodes {
		degrees[n.ID] = 0
	}
	for _, e := range edges {
		_, okSource := degrees[e.Source]
		_, okTarget := degrees[e.Target]
		if !okSource || !okTarget {
			continue
		}
		degrees[e.Source]++
		degrees[e.Target]++
	}
	return degrees
}

// ValidEdges returns the edges whose endpoints both exist in nodes, in order.
func ValidEdges(nodes []Node, edges []Edge) []Edge {
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = struct{}{}
	}
	valid := make([]Edge, 0, len(edges))
	for _, e := range edges {
		_, okSource := ids[e.Source]
		_, okTarget := ids[e.Target]
		if okSource && okTarget {
			valid = append(valid, e)
		}
	}
	return valid
}

// DegreeRange returns the smallest and largest degree. ok is false when there is no
// degree data at all.
func DegreeRange(degrees map[string]int) (lo, hi int, ok bool) {
	for _, d := range degrees {
		if !ok {
			lo, hi, ok = d, d, true
			continue
		}
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	return lo, hi, ok
}
