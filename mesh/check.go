package mesh

import (
	"fmt"
	"math"
)

// CheckManifold verifies the mesh is a consistently oriented 2-manifold
// with boundary. Every edge has one or two faces and two faces sharing an
// edge traverse it in opposite directions. The faces around each vertex
// form a single fan, so two sheets touching at one vertex are rejected.
// The adjacency lists must also agree with the faces. A non-nil error
// wraps ErrDegenerateMesh.
func (m *Mesh) CheckManifold() error {
	if m.nf == 0 {
		return fmt.Errorf("%w: no faces", ErrDegenerateMesh)
	}
	for f := range m.faces {
		fc := &m.faces[f]
		if !fc.alive {
			continue
		}
		if len(fc.v) < 3 {
			return fmt.Errorf("%w: face %d has %d vertices", ErrDegenerateMesh, f, len(fc.v))
		}
		for i, v := range fc.v {
			if !m.VertexAlive(v) {
				return fmt.Errorf("%w: face %d references dead vertex %d", ErrDegenerateMesh, f, v)
			}
			if !containsInt(m.verts[v].faces, f) {
				return fmt.Errorf("%w: vertex %d does not list face %d", ErrDegenerateMesh, v, f)
			}
			if containsInt(fc.v[:i], v) {
				return fmt.Errorf("%w: face %d repeats vertex %d", ErrDegenerateMesh, f, v)
			}
			e, ok := m.FindEdge(v, fc.v[(i+1)%len(fc.v)])
			if !ok || !containsInt(m.edges[e].faces, f) {
				return fmt.Errorf("%w: face %d side %d has no edge", ErrDegenerateMesh, f, i)
			}
		}
	}
	for e := range m.edges {
		ed := &m.edges[e]
		if !ed.alive {
			continue
		}
		if !m.VertexAlive(ed.v[0]) || !m.VertexAlive(ed.v[1]) {
			return fmt.Errorf("%w: edge %d references dead vertex", ErrDegenerateMesh, e)
		}
		switch len(ed.faces) {
		case 1:
		case 2:
			a, b := ed.v[0], ed.v[1]
			f1, f2 := m.faces[ed.faces[0]].v, m.faces[ed.faces[1]].v
			if faceHasEdge(f1, a, b) == faceHasEdge(f2, a, b) {
				return fmt.Errorf("%w: faces %v and %v have inconsistent winding", ErrDegenerateMesh, f1, f2)
			}
		default:
			return fmt.Errorf("%w: edge (%d,%d) has %d faces", ErrDegenerateMesh, ed.v[0], ed.v[1], len(ed.faces))
		}
	}
	for v := range m.verts {
		if m.verts[v].alive && !m.singleFan(v) {
			return fmt.Errorf("%w: faces around vertex %d form more than one fan", ErrDegenerateMesh, v)
		}
	}
	return nil
}

// singleFan reports whether the faces around v are all reachable from
// one another by crossing edges incident to v.
func (m *Mesh) singleFan(v int) bool {
	faces := m.verts[v].faces
	if len(faces) < 2 {
		return true
	}
	seen := map[int]bool{faces[0]: true}
	stack := []int{faces[0]}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fv := m.faces[f].v
		for i, w := range fv {
			if w != v {
				continue
			}
			n := len(fv)
			for _, u := range [2]int{fv[(i+1)%n], fv[(i+n-1)%n]} {
				e, ok := m.FindEdge(v, u)
				if !ok {
					continue
				}
				for _, g := range m.edges[e].faces {
					if !seen[g] {
						seen[g] = true
						stack = append(stack, g)
					}
				}
			}
		}
	}
	return len(seen) == len(faces)
}

// Stats summarizes the size and edge lengths of a mesh.
type Stats struct {
	Vertices, Edges, Faces int
	BoundaryEdges          int
	Triangles, Quads       int
	MinEdge, MeanEdge      float64
	MaxEdge                float64
	// InBand is the fraction of edges with length within the band
	// passed to ComputeStats.
	InBand float64
}

// ComputeStats returns mesh statistics. Edge lengths in [lower, upper]
// count towards Stats.InBand.
func (m *Mesh) ComputeStats(lower, upper float64) Stats {
	st := Stats{
		Vertices: m.nv,
		Edges:    m.ne,
		Faces:    m.nf,
		MinEdge:  math.Inf(1),
	}
	inBand := 0
	for e := range m.edges {
		if !m.edges[e].alive {
			continue
		}
		if len(m.edges[e].faces) == 1 {
			st.BoundaryEdges++
		}
		l := m.EdgeLength(e)
		st.MinEdge = math.Min(st.MinEdge, l)
		st.MaxEdge = math.Max(st.MaxEdge, l)
		st.MeanEdge += l
		if l >= lower && l <= upper {
			inBand++
		}
	}
	if m.ne > 0 {
		st.MeanEdge /= float64(m.ne)
		st.InBand = float64(inBand) / float64(m.ne)
	} else {
		st.MinEdge = 0
	}
	for f := range m.faces {
		if !m.faces[f].alive {
			continue
		}
		switch len(m.faces[f].v) {
		case 3:
			st.Triangles++
		case 4:
			st.Quads++
		}
	}
	return st
}

// EdgeLengths returns the length of every live edge.
func (m *Mesh) EdgeLengths() []float64 {
	out := make([]float64, 0, m.ne)
	for e := range m.edges {
		if m.edges[e].alive {
			out = append(out, m.EdgeLength(e))
		}
	}
	return out
}
