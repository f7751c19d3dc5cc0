// Package mesh implements the mutable polygon mesh the remesher works on.
//
// Elements are plain integer handles into arena slices. Removed elements
// are marked dead and their slots recycled through free lists, so handles
// of live elements never change while other elements are added or removed.
// Adjacency (edges and faces incident to a vertex, faces incident to an
// edge) is kept as explicit lists that every mutating operation maintains.
package mesh

import (
	"errors"
	"math"

	"github.com/soypat/remesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateMesh is returned for meshes the topology operators cannot
// work on, such as meshes without faces or with non-manifold edges.
var ErrDegenerateMesh = errors.New("degenerate mesh")

type vertex struct {
	pos   r3.Vec
	edges []int
	faces []int
	alive bool
}

type edge struct {
	v     [2]int
	faces []int
	alive bool
}

type face struct {
	v     []int
	alive bool
}

// Mesh is an indexed polygon mesh with explicit adjacency.
// The zero value is an empty mesh ready to use.
type Mesh struct {
	verts []vertex
	edges []edge
	faces []face

	freeVerts []int
	freeEdges []int
	freeFaces []int

	// edgeMap maps a vertex pair, lower index first, to its edge.
	edgeMap map[[2]int]int

	nv, ne, nf int
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// NumVertices returns the number of live vertices.
func (m *Mesh) NumVertices() int { return m.nv }

// NumEdges returns the number of live edges.
func (m *Mesh) NumEdges() int { return m.ne }

// NumFaces returns the number of live faces.
func (m *Mesh) NumFaces() int { return m.nf }

// Vertices returns the handles of all live vertices in increasing order.
func (m *Mesh) Vertices() []int {
	out := make([]int, 0, m.nv)
	for i := range m.verts {
		if m.verts[i].alive {
			out = append(out, i)
		}
	}
	return out
}

// Edges returns the handles of all live edges in increasing order.
func (m *Mesh) Edges() []int {
	out := make([]int, 0, m.ne)
	for i := range m.edges {
		if m.edges[i].alive {
			out = append(out, i)
		}
	}
	return out
}

// Faces returns the handles of all live faces in increasing order.
func (m *Mesh) Faces() []int {
	out := make([]int, 0, m.nf)
	for i := range m.faces {
		if m.faces[i].alive {
			out = append(out, i)
		}
	}
	return out
}

// VertexAlive reports whether v is a live vertex handle.
func (m *Mesh) VertexAlive(v int) bool {
	return v >= 0 && v < len(m.verts) && m.verts[v].alive
}

// Position returns the position of vertex v.
func (m *Mesh) Position(v int) r3.Vec { return m.verts[v].pos }

// SetPosition moves vertex v to p.
func (m *Mesh) SetPosition(v int, p r3.Vec) { m.verts[v].pos = p }

// Valence returns the number of edges incident to v.
func (m *Mesh) Valence(v int) int { return len(m.verts[v].edges) }

// Neighbors returns the vertices sharing an edge with v, in the order
// of v's incident edges.
func (m *Mesh) Neighbors(v int) []int {
	out := make([]int, len(m.verts[v].edges))
	for i, e := range m.verts[v].edges {
		out[i] = m.OtherVertex(e, v)
	}
	return out
}

// OtherVertex returns the endpoint of e that is not v.
func (m *Mesh) OtherVertex(e, v int) int {
	ev := m.edges[e].v
	if ev[0] == v {
		return ev[1]
	}
	return ev[0]
}

// EdgeVertices returns the two endpoints of e.
func (m *Mesh) EdgeVertices(e int) [2]int { return m.edges[e].v }

// EdgeFaces returns the faces incident to e.
func (m *Mesh) EdgeFaces(e int) []int { return m.edges[e].faces }

// EdgeLength returns the euclidean length of e.
func (m *Mesh) EdgeLength(e int) float64 {
	ev := m.edges[e].v
	return r3.Norm(r3.Sub(m.verts[ev[0]].pos, m.verts[ev[1]].pos))
}

// FindEdge returns the edge joining a and b.
func (m *Mesh) FindEdge(a, b int) (int, bool) {
	e, ok := m.edgeMap[edgeKey(a, b)]
	return e, ok
}

// IsBoundaryEdge reports whether e is incident to exactly one face.
func (m *Mesh) IsBoundaryEdge(e int) bool { return len(m.edges[e].faces) == 1 }

// IsBoundaryVertex reports whether v is incident to a boundary edge.
func (m *Mesh) IsBoundaryVertex(v int) bool {
	for _, e := range m.verts[v].edges {
		if len(m.edges[e].faces) == 1 {
			return true
		}
	}
	return false
}

// FaceVertices returns the vertices of f in winding order. The returned
// slice must not be modified.
func (m *Mesh) FaceVertices(f int) []int { return m.faces[f].v }

// FacePositions returns the vertex positions of f in winding order.
func (m *Mesh) FacePositions(f int) []r3.Vec {
	fv := m.faces[f].v
	out := make([]r3.Vec, len(fv))
	for i, v := range fv {
		out[i] = m.verts[v].pos
	}
	return out
}

// FaceNormal returns the unit normal of f computed with Newell's method,
// which is robust for non planar polygons.
func (m *Mesh) FaceNormal(f int) r3.Vec {
	return d3.Unit(newell(m.FacePositions(f)))
}

// FaceArea returns the area of f.
func (m *Mesh) FaceArea(f int) float64 {
	return 0.5 * r3.Norm(newell(m.FacePositions(f)))
}

// VertexNormal returns the area weighted average of the normals of the
// faces incident to v. Isolated vertices have a zero normal.
func (m *Mesh) VertexNormal(v int) r3.Vec {
	var n r3.Vec
	for _, f := range m.verts[v].faces {
		n = r3.Add(n, newell(m.FacePositions(f)))
	}
	return d3.Unit(n)
}

// Bounds returns the bounding box of the live vertices.
func (m *Mesh) Bounds() r3.Box {
	bb := d3.EmptyBox()
	for i := range m.verts {
		if m.verts[i].alive {
			bb = bb.Include(m.verts[i].pos)
		}
	}
	if bb.Empty() {
		return r3.Box{}
	}
	return r3.Box(bb)
}

// newell returns the polygon normal scaled by twice its area.
func newell(pts []r3.Vec) r3.Vec {
	var n r3.Vec
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		n.X += (p.Y - q.Y) * (p.Z + q.Z)
		n.Y += (p.Z - q.Z) * (p.X + q.X)
		n.Z += (p.X - q.X) * (p.Y + q.Y)
	}
	return n
}

// addVertex appends a new isolated vertex at p.
func (m *Mesh) addVertex(p r3.Vec) int {
	m.nv++
	if n := len(m.freeVerts); n > 0 {
		v := m.freeVerts[n-1]
		m.freeVerts = m.freeVerts[:n-1]
		m.verts[v] = vertex{pos: p, alive: true}
		return v
	}
	m.verts = append(m.verts, vertex{pos: p, alive: true})
	return len(m.verts) - 1
}

// killVertex removes an isolated vertex.
func (m *Mesh) killVertex(v int) {
	if len(m.verts[v].edges) != 0 || len(m.verts[v].faces) != 0 {
		panic("mesh: killing vertex with incident elements")
	}
	m.verts[v] = vertex{}
	m.freeVerts = append(m.freeVerts, v)
	m.nv--
}

// ensureEdge returns the edge joining a and b, creating it if needed.
func (m *Mesh) ensureEdge(a, b int) int {
	key := edgeKey(a, b)
	if e, ok := m.edgeMap[key]; ok {
		return e
	}
	if m.edgeMap == nil {
		m.edgeMap = make(map[[2]int]int)
	}
	var e int
	if n := len(m.freeEdges); n > 0 {
		e = m.freeEdges[n-1]
		m.freeEdges = m.freeEdges[:n-1]
		m.edges[e] = edge{v: key, alive: true}
	} else {
		m.edges = append(m.edges, edge{v: key, alive: true})
		e = len(m.edges) - 1
	}
	m.edgeMap[key] = e
	m.verts[a].edges = append(m.verts[a].edges, e)
	m.verts[b].edges = append(m.verts[b].edges, e)
	m.ne++
	return e
}

func (m *Mesh) killEdge(e int) {
	ed := &m.edges[e]
	delete(m.edgeMap, ed.v)
	for _, v := range ed.v {
		m.verts[v].edges = removeInt(m.verts[v].edges, e)
	}
	*ed = edge{}
	m.freeEdges = append(m.freeEdges, e)
	m.ne--
}

// addFace adds a face with the given winding, creating missing edges.
// The caller guarantees vs holds at least three distinct live vertices.
func (m *Mesh) addFace(vs []int) int {
	cp := make([]int, len(vs))
	copy(cp, vs)
	var f int
	if n := len(m.freeFaces); n > 0 {
		f = m.freeFaces[n-1]
		m.freeFaces = m.freeFaces[:n-1]
		m.faces[f] = face{v: cp, alive: true}
	} else {
		m.faces = append(m.faces, face{v: cp, alive: true})
		f = len(m.faces) - 1
	}
	for i, v := range cp {
		e := m.ensureEdge(v, cp[(i+1)%len(cp)])
		m.edges[e].faces = append(m.edges[e].faces, f)
		m.verts[v].faces = append(m.verts[v].faces, f)
	}
	m.nf++
	return f
}

// removeFace removes f and any edge left without faces. Vertices are
// left in place, possibly isolated.
func (m *Mesh) removeFace(f int) {
	fv := m.faces[f].v
	for i, v := range fv {
		e := m.edgeMap[edgeKey(v, fv[(i+1)%len(fv)])]
		m.edges[e].faces = removeInt(m.edges[e].faces, f)
		if len(m.edges[e].faces) == 0 {
			m.killEdge(e)
		}
		m.verts[v].faces = removeInt(m.verts[v].faces, f)
	}
	m.faces[f] = face{}
	m.freeFaces = append(m.freeFaces, f)
	m.nf--
}

// removeInt removes the first occurrence of x from s preserving order.
func removeInt(s []int, x int) []int {
	for i, y := range s {
		if y == x {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func containsInt(s []int, x int) bool {
	for _, y := range s {
		if y == x {
			return true
		}
	}
	return false
}

// faceHasEdge reports whether f traverses a then b in its winding.
func faceHasEdge(fv []int, a, b int) bool {
	for i, v := range fv {
		if v == a && fv[(i+1)%len(fv)] == b {
			return true
		}
	}
	return false
}

// rotateTo returns the vertices of fv starting at v.
func rotateTo(fv []int, v int) []int {
	out := make([]int, 0, len(fv))
	for i := range fv {
		if fv[i] == v {
			out = append(out, fv[i:]...)
			return append(out, fv[:i]...)
		}
	}
	return nil
}

func minAngle(a, b, c r3.Vec) float64 {
	return d3.Triangle{a, b, c}.MinAngle()
}

func triNormal(a, b, c r3.Vec) r3.Vec {
	return d3.Triangle{a, b, c}.Normal()
}

// epsArea is the smallest area relative to the squared edge scale a
// face may have without being considered degenerate.
const epsArea = 1e-12

func degenerateTri(a, b, c r3.Vec) bool {
	cr := r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
	scale := math.Max(r3.Norm2(r3.Sub(b, a)), math.Max(r3.Norm2(r3.Sub(c, b)), r3.Norm2(r3.Sub(a, c))))
	return scale == 0 || cr <= epsArea*scale
}
