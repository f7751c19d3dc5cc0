package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/remesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// New builds a mesh from vertex positions and polygon faces given as
// indices into positions. Vertex handles of the returned mesh equal the
// indices into positions. Faces must have at least three distinct
// vertices and every edge may be shared by at most two faces.
func New(positions []r3.Vec, faces [][]int) (*Mesh, error) {
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrDegenerateMesh)
	}
	m := &Mesh{
		verts:   make([]vertex, len(positions)),
		edgeMap: make(map[[2]int]int, 3*len(faces)/2),
		nv:      len(positions),
	}
	for i, p := range positions {
		m.verts[i] = vertex{pos: p, alive: true}
	}
	for i, fv := range faces {
		if len(fv) < 3 {
			return nil, fmt.Errorf("%w: face %d has %d vertices", ErrDegenerateMesh, i, len(fv))
		}
		for j, v := range fv {
			if v < 0 || v >= len(positions) {
				return nil, fmt.Errorf("%w: face %d references vertex %d out of range", ErrDegenerateMesh, i, v)
			}
			for _, w := range fv[:j] {
				if w == v {
					return nil, fmt.Errorf("%w: face %d repeats vertex %d", ErrDegenerateMesh, i, v)
				}
			}
		}
		m.addFace(fv)
	}
	for e := range m.edges {
		if n := len(m.edges[e].faces); n > 2 {
			v := m.edges[e].v
			return nil, fmt.Errorf("%w: non-manifold edge (%d,%d) shared by %d faces", ErrDegenerateMesh, v[0], v[1], n)
		}
	}
	return m, nil
}

// FromTriangles builds a mesh from a triangle soup such as the contents
// of an STL file, choosing shared vertices among triangles using tol.
// tol should be of the order of 1/1000th of the size of the smallest
// triangle in the model. If set to 0 then it is inferred automatically.
// Triangles that collapse to fewer than three vertices are dropped.
func FromTriangles(triangles [][3]r3.Vec, tol float64) (*Mesh, error) {
	if len(triangles) == 0 {
		return nil, fmt.Errorf("%w: no triangles", ErrDegenerateMesh)
	}
	bb := d3.EmptyBox()
	minDist2 := math.MaxFloat64
	maxDist2 := -math.MaxFloat64
	for i := range triangles {
		for j, vert := range triangles[i] {
			bb = bb.Include(vert)
			side2 := r3.Norm2(r3.Sub(triangles[i][(j+1)%3], vert))
			if side2 > 0 {
				minDist2 = math.Min(minDist2, side2)
			}
			maxDist2 = math.Max(maxDist2, side2)
		}
	}
	if maxDist2 <= 0 {
		return nil, fmt.Errorf("%w: all triangles have zero size", ErrDegenerateMesh)
	}
	suggested := math.Sqrt(minDist2) / 256
	if tol > math.Sqrt(maxDist2)/2 {
		return nil, fmt.Errorf("vertex tolerance is too large to generate appropiate mesh, suggested tolerance: %g", suggested)
	}
	if tol == 0 {
		tol = suggested
	}
	div := int64(d3.Max(d3.Box(bb).Size())/tol + 1e-12)
	if div > math.MaxInt64/2 {
		return nil, errors.New("tolerance too small. overflowed int64")
	}
	// vertex index cache keyed by position in resolution-space.
	cache := make(map[[3]int64]int)
	ri := 1 / tol
	var positions []r3.Vec
	faces := make([][]int, 0, len(triangles))
	for _, tri := range triangles {
		var fv [3]int
		for j, vert := range tri {
			v := r3.Scale(ri, vert)
			vi := [3]int64{int64(math.Round(v.X)), int64(math.Round(v.Y)), int64(math.Round(v.Z))}
			idx, ok := cache[vi]
			if !ok {
				idx = len(positions)
				cache[vi] = idx
				positions = append(positions, vert)
			}
			fv[j] = idx
		}
		if fv[0] == fv[1] || fv[1] == fv[2] || fv[2] == fv[0] {
			continue
		}
		faces = append(faces, fv[:])
	}
	return New(positions, faces)
}

// Clone returns a deep copy of m. Handles are preserved.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		verts:     make([]vertex, len(m.verts)),
		edges:     make([]edge, len(m.edges)),
		faces:     make([]face, len(m.faces)),
		freeVerts: append([]int(nil), m.freeVerts...),
		freeEdges: append([]int(nil), m.freeEdges...),
		freeFaces: append([]int(nil), m.freeFaces...),
		edgeMap:   make(map[[2]int]int, len(m.edgeMap)),
		nv:        m.nv,
		ne:        m.ne,
		nf:        m.nf,
	}
	for i, v := range m.verts {
		c.verts[i] = vertex{
			pos:   v.pos,
			edges: append([]int(nil), v.edges...),
			faces: append([]int(nil), v.faces...),
			alive: v.alive,
		}
	}
	for i, e := range m.edges {
		c.edges[i] = edge{v: e.v, faces: append([]int(nil), e.faces...), alive: e.alive}
	}
	for i, f := range m.faces {
		c.faces[i] = face{v: append([]int(nil), f.v...), alive: f.alive}
	}
	for k, e := range m.edgeMap {
		c.edgeMap[k] = e
	}
	return c
}

// Polygons returns a compacted copy of the mesh: live vertex positions and
// faces indexing into them. Isolated vertices are dropped. The relative
// order of vertices and faces is preserved.
func (m *Mesh) Polygons() (positions []r3.Vec, faces [][]int) {
	remap := make([]int, len(m.verts))
	for i := range m.verts {
		remap[i] = -1
		if m.verts[i].alive && len(m.verts[i].faces) > 0 {
			remap[i] = len(positions)
			positions = append(positions, m.verts[i].pos)
		}
	}
	faces = make([][]int, 0, m.nf)
	for _, f := range m.faces {
		if !f.alive {
			continue
		}
		fv := make([]int, len(f.v))
		for i, v := range f.v {
			fv[i] = remap[v]
		}
		faces = append(faces, fv)
	}
	return positions, faces
}

// Triangles returns the faces of the mesh as triangles. Polygons are fan
// triangulated from their first vertex, which is only exact for convex
// faces; call Triangulate on a clone first when faces may be concave.
func (m *Mesh) Triangles() [][3]r3.Vec {
	out := make([][3]r3.Vec, 0, m.nf)
	for _, f := range m.faces {
		if !f.alive {
			continue
		}
		p0 := m.verts[f.v[0]].pos
		for i := 1; i+1 < len(f.v); i++ {
			out = append(out, [3]r3.Vec{p0, m.verts[f.v[i]].pos, m.verts[f.v[i+1]].pos})
		}
	}
	return out
}
