package mesh

import (
	"math"

	"github.com/soypat/remesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangulate splits every face with more than three vertices into
// triangles. It returns the number of faces split.
func (m *Mesh) Triangulate() int {
	n := 0
	for f := range m.faces {
		if m.faces[f].alive && len(m.faces[f].v) > 3 {
			m.triangulateFace(f)
			n++
		}
	}
	return n
}

// triangulateFace replaces polygon f with triangles. If no valid ear
// clipping exists the polygon is fanned around a new vertex at its centroid.
func (m *Mesh) triangulateFace(f int) {
	fv := append([]int(nil), m.faces[f].v...)
	if len(fv) == 3 {
		return
	}
	tris, ok := m.planPolygon(fv)
	m.removeFace(f)
	if ok {
		for _, t := range tris {
			m.addFace(t[:])
		}
		return
	}
	var c r3.Vec
	for _, v := range fv {
		c = r3.Add(c, m.verts[v].pos)
	}
	center := m.addVertex(r3.Scale(1/float64(len(fv)), c))
	for i, v := range fv {
		m.addFace([]int{v, fv[(i+1)%len(fv)], center})
	}
}

// planPolygon computes an ear clipping triangulation of the polygon fv
// without modifying the mesh. Diagonals that already exist as edges are
// never used since they would become non-manifold.
func (m *Mesh) planPolygon(fv []int) ([][3]int, bool) {
	pts := make([]r3.Vec, len(fv))
	for i, v := range fv {
		pts[i] = m.verts[v].pos
	}
	reject := func(i, j int) bool {
		_, exists := m.edgeMap[edgeKey(fv[i], fv[j])]
		return exists
	}
	local, ok := earClip(pts, reject)
	if !ok {
		return nil, false
	}
	tris := make([][3]int, len(local))
	for i, t := range local {
		tris[i] = [3]int{fv[t[0]], fv[t[1]], fv[t[2]]}
	}
	return tris, true
}

// earClip triangulates a simple polygon in 3D by clipping, at every step,
// the valid ear with the largest minimum angle. Orientation tests use the
// polygon's Newell normal. reject reports whether the diagonal between two
// polygon corners may not be created.
func earClip(pts []r3.Vec, reject func(i, j int) bool) ([][3]int, bool) {
	n := d3.Unit(newell(pts))
	if n == (r3.Vec{}) {
		return nil, false
	}
	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}
	tris := make([][3]int, 0, len(pts)-2)
	for len(idx) > 3 {
		best, bestScore := -1, -1.0
		for k := range idx {
			i0 := idx[(k+len(idx)-1)%len(idx)]
			i1 := idx[k]
			i2 := idx[(k+1)%len(idx)]
			if !isEar(pts, idx, i0, i1, i2, n) || reject(i0, i2) {
				continue
			}
			if s := minAngle(pts[i0], pts[i1], pts[i2]); s > bestScore {
				best, bestScore = k, s
			}
		}
		if best < 0 {
			return nil, false
		}
		k := best
		tris = append(tris, [3]int{idx[(k+len(idx)-1)%len(idx)], idx[k], idx[(k+1)%len(idx)]})
		idx = append(idx[:k], idx[k+1:]...)
	}
	if degenerateTri(pts[idx[0]], pts[idx[1]], pts[idx[2]]) {
		return nil, false
	}
	return append(tris, [3]int{idx[0], idx[1], idx[2]}), true
}

// isEar reports whether corner i1 is strictly convex with respect to n and
// the triangle (i0,i1,i2) contains no other remaining polygon vertex.
func isEar(pts []r3.Vec, idx []int, i0, i1, i2 int, n r3.Vec) bool {
	a, b, c := pts[i0], pts[i1], pts[i2]
	e1, e2 := r3.Sub(b, a), r3.Sub(c, b)
	cr := r3.Dot(r3.Cross(e1, e2), n)
	if cr <= 1e-9*r3.Norm(e1)*r3.Norm(e2) {
		return false
	}
	for _, j := range idx {
		if j == i0 || j == i1 || j == i2 {
			continue
		}
		p := pts[j]
		if p == a || p == b || p == c {
			continue
		}
		if inTriangle(p, a, b, c, n) {
			return false
		}
	}
	return true
}

// inTriangle reports whether p projected along n lies inside or on the
// triangle (a,b,c), which is counter clockwise around n.
func inTriangle(p, a, b, c, n r3.Vec) bool {
	const eps = -1e-12
	side := func(u, v r3.Vec) bool {
		e := r3.Sub(v, u)
		return r3.Dot(r3.Cross(e, r3.Sub(p, u)), n) >= eps*r3.Norm2(e)
	}
	return side(a, b) && side(b, c) && side(c, a)
}

// cornerAngles returns the interior corner angles of the polygon pts,
// measured within the plane of normal n. Reflex corners exceed pi.
func cornerAngles(pts []r3.Vec, n r3.Vec) []float64 {
	out := make([]float64, len(pts))
	for i := range pts {
		prev := pts[(i+len(pts)-1)%len(pts)]
		next := pts[(i+1)%len(pts)]
		u, v := r3.Sub(prev, pts[i]), r3.Sub(next, pts[i])
		ang := d3.Angle(u, v)
		// Corner is convex when (pts[i]-prev)x(next-pts[i]) points along n.
		if r3.Dot(r3.Cross(r3.Sub(pts[i], prev), v), n) < 0 {
			ang = 2*math.Pi - ang
		}
		out[i] = ang
	}
	return out
}
