package mesh

import (
	"sort"

	"github.com/soypat/remesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// SubdivideLongEdges splits every edge longer than upper once at its
// midpoint and re-triangulates the faces touched by the splits. Edges are
// not split recursively within a call. It returns the number of edges split.
func (m *Mesh) SubdivideLongEdges(upper float64) int {
	var long [][2]int
	for e := range m.edges {
		if m.edges[e].alive && m.EdgeLength(e) > upper {
			long = append(long, m.edges[e].v)
		}
	}
	if len(long) == 0 {
		return 0
	}
	cuts := make(map[[2]int][]int, len(long))
	for _, key := range long {
		mid := d3.Midpoint(m.verts[key[0]].pos, m.verts[key[1]].pos)
		cuts[key] = []int{m.addVertex(mid)}
	}
	m.insertCuts(cuts)
	return len(long)
}

// SplitEdgeAt inserts new vertices at the given points along the edge
// joining a and b and re-triangulates the faces incident to it. Points
// are expected to lie on the segment; they are sorted by their projection
// onto it. The new vertex handles are returned in order from a to b.
func (m *Mesh) SplitEdgeAt(a, b int, pts []r3.Vec) ([]int, bool) {
	if _, ok := m.FindEdge(a, b); !ok || len(pts) == 0 {
		return nil, false
	}
	pa, pb := m.verts[a].pos, m.verts[b].pos
	ab := r3.Sub(pb, pa)
	sorted := append([]r3.Vec(nil), pts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return r3.Dot(r3.Sub(sorted[i], pa), ab) < r3.Dot(r3.Sub(sorted[j], pa), ab)
	})
	added := make([]int, len(sorted))
	for i, p := range sorted {
		added[i] = m.addVertex(p)
	}
	cut := added
	key := edgeKey(a, b)
	if key[0] != a {
		cut = reversed(added)
	}
	m.insertCuts(map[[2]int][]int{key: cut})
	return added, true
}

// insertCuts inserts new vertices along edges. cuts maps an edge key to
// vertices ordered from key[0] to key[1]. Touched faces are rebuilt with
// the new vertices in their winding and then triangulated.
func (m *Mesh) insertCuts(cuts map[[2]int][]int) {
	touched := make(map[int]struct{})
	for key := range cuts {
		e, ok := m.edgeMap[key]
		if !ok {
			continue
		}
		for _, f := range m.edges[e].faces {
			touched[f] = struct{}{}
		}
	}
	order := make([]int, 0, len(touched))
	for f := range touched {
		order = append(order, f)
	}
	sort.Ints(order)
	for _, f := range order {
		fv := m.faces[f].v
		poly := make([]int, 0, len(fv)+2)
		for i, v := range fv {
			poly = append(poly, v)
			next := fv[(i+1)%len(fv)]
			key := edgeKey(v, next)
			mids, ok := cuts[key]
			if !ok {
				continue
			}
			if key[0] == v {
				poly = append(poly, mids...)
			} else {
				poly = append(poly, reversed(mids)...)
			}
		}
		m.removeFace(f)
		nf := m.addFace(poly)
		m.triangulateFace(nf)
	}
}

func reversed(s []int) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
