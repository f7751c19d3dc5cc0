package mesh

import (
	"github.com/soypat/remesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// CollapseShortEdges collapses every interior edge shorter than lower into
// its midpoint. Edges are selected greedily in edge order and both
// endpoints of a selected edge are locked, so no vertex takes part in more
// than one collapse per call and chains of short edges do not cascade.
// Boundary vertices start out locked, which keeps boundary edges and edges
// touching the boundary intact. Selected edges whose collapse would break
// manifoldness or fold a face over are skipped.
//
// The returned pairs hold, for each collapse performed, the surviving
// vertex and the removed vertex.
func (m *Mesh) CollapseShortEdges(lower float64) [][2]int {
	locked := make(map[int]bool)
	for v := range m.verts {
		if m.verts[v].alive && m.IsBoundaryVertex(v) {
			locked[v] = true
		}
	}
	var selected [][2]int
	for e := range m.edges {
		ed := &m.edges[e]
		if !ed.alive || len(ed.faces) == 1 || m.EdgeLength(e) >= lower {
			continue
		}
		if locked[ed.v[0]] || locked[ed.v[1]] {
			continue
		}
		selected = append(selected, ed.v)
		locked[ed.v[0]] = true
		locked[ed.v[1]] = true
	}
	var collapsed [][2]int
	for _, pair := range selected {
		if m.collapseEdge(pair[0], pair[1]) {
			collapsed = append(collapsed, pair)
		}
	}
	return collapsed
}

// collapseEdge merges b into a, placing a at the edge midpoint.
func (m *Mesh) collapseEdge(a, b int) bool {
	e, ok := m.FindEdge(a, b)
	if !ok || len(m.edges[e].faces) != 2 || m.IsBoundaryVertex(a) || m.IsBoundaryVertex(b) {
		return false
	}
	// Link condition: the vertices adjacent to both a and b must be exactly
	// the apexes of the two triangles sharing the edge.
	apex := make(map[int]bool, 2)
	for _, f := range m.edges[e].faces {
		fv := m.faces[f].v
		if len(fv) != 3 {
			return false
		}
		for _, v := range fv {
			if v != a && v != b {
				apex[v] = true
			}
		}
	}
	if len(apex) != 2 {
		return false
	}
	common := 0
	for _, u := range m.Neighbors(a) {
		if u == b {
			continue
		}
		if _, ok := m.FindEdge(u, b); ok {
			if !apex[u] {
				return false
			}
			common++
		}
	}
	if common != 2 {
		return false
	}

	mid := d3.Midpoint(m.verts[a].pos, m.verts[b].pos)
	if m.collapseFolds(a, b, mid) {
		return false
	}

	ring := append([]int(nil), m.verts[b].faces...)
	rebuilt := make([][]int, 0, len(ring))
	for _, f := range ring {
		fv := m.faces[f].v
		nv := make([]int, 0, len(fv))
		shared := containsInt(fv, a)
		for _, v := range fv {
			switch {
			case v == b && shared:
				// drop, a already in face.
			case v == b:
				nv = append(nv, a)
			default:
				nv = append(nv, v)
			}
		}
		m.removeFace(f)
		if len(nv) >= 3 {
			rebuilt = append(rebuilt, nv)
		}
	}
	m.killVertex(b)
	m.verts[a].pos = mid
	for _, fv := range rebuilt {
		m.addFace(fv)
	}
	return true
}

// minCollapseCos bounds how far a face may turn during a collapse: the
// cosine between its normals before and after must not drop below it.
const minCollapseCos = 0.5

// collapseFolds reports whether merging a and b at p would fold the mesh.
// Every face around a or b that survives the collapse must keep a non
// degenerate area, turn by at most 60 degrees and end up facing the same
// side as each face it borders afterwards.
func (m *Mesh) collapseFolds(a, b int, p r3.Vec) bool {
	moved := make(map[int]r3.Vec)
	removed := make(map[int]bool)
	var order []int
	for _, v := range [2]int{a, b} {
		for _, f := range m.verts[v].faces {
			fv := m.faces[f].v
			if containsInt(fv, a) && containsInt(fv, b) {
				removed[f] = true
				continue
			}
			before := m.FacePositions(f)
			after := make([]r3.Vec, len(before))
			copy(after, before)
			for i, w := range fv {
				if w == a || w == b {
					after[i] = p
				}
			}
			n0, n1 := newell(before), newell(after)
			l0, l1 := r3.Norm(n0), r3.Norm(n1)
			if l1 <= epsArea*l0 || r3.Dot(n0, n1) < minCollapseCos*l0*l1 {
				return true
			}
			moved[f] = r3.Scale(1/l1, n1)
			order = append(order, f)
		}
	}
	for i, f := range order {
		n := moved[f]
		fv := m.faces[f].v
		// Faces across a side that exists now.
		for j, v := range fv {
			e, ok := m.FindEdge(v, fv[(j+1)%len(fv)])
			if !ok {
				continue
			}
			for _, g := range m.edges[e].faces {
				if g == f || removed[g] {
					continue
				}
				ng, ok := moved[g]
				if !ok {
					ng = m.FaceNormal(g)
				}
				if r3.Dot(n, ng) <= 0 {
					return true
				}
			}
		}
		// Faces that become neighbors once the removed faces are gone.
		for _, g := range order[i+1:] {
			if sharesSide(fv, m.faces[g].v, a, b) && r3.Dot(n, moved[g]) <= 0 {
				return true
			}
		}
	}
	return false
}

// sharesSide reports whether polygons f and g have two vertices in
// common once b is merged into a.
func sharesSide(f, g []int, a, b int) bool {
	common := 0
	for _, v := range f {
		if v == b {
			v = a
		}
		for _, w := range g {
			if w == b {
				w = a
			}
			if v == w {
				common++
				break
			}
		}
	}
	return common >= 2
}
