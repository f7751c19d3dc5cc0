package mesh

import (
	"math"
	"sort"

	"github.com/soypat/remesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxBeautifyPasses bounds the number of sweeps over the edges in Beautify.
const maxBeautifyPasses = 32

// flipGain is the minimum improvement in radians of the smallest angle
// needed to flip an edge. It keeps near-cocircular quads from flipping
// back and forth.
const flipGain = 1e-6

// Beautify flips the diagonal of interior triangle pairs whenever doing
// so increases the smallest interior angle of the pair. Sweeps over the
// edges repeat until no edge flips. It returns the number of flips.
func (m *Mesh) Beautify() int {
	total := 0
	for pass := 0; pass < maxBeautifyPasses; pass++ {
		flipped := 0
		for e := range m.edges {
			if m.edges[e].alive && m.flipEdge(e) {
				flipped++
			}
		}
		total += flipped
		if flipped == 0 {
			break
		}
	}
	return total
}

// trianglePair returns, for an interior edge between two triangles, the
// edge's endpoints a and b oriented as in the first triangle (a,b,c) and
// the apexes c and d, the second triangle being (b,a,d).
func (m *Mesh) trianglePair(e int) (f1, f2, a, b, c, d int, ok bool) {
	ed := &m.edges[e]
	if len(ed.faces) != 2 {
		return
	}
	f1, f2 = ed.faces[0], ed.faces[1]
	t1, t2 := m.faces[f1].v, m.faces[f2].v
	if len(t1) != 3 || len(t2) != 3 {
		return
	}
	a, b = ed.v[0], ed.v[1]
	if !faceHasEdge(t1, a, b) {
		a, b = b, a
	}
	if !faceHasEdge(t1, a, b) || !faceHasEdge(t2, b, a) {
		return // inconsistent winding
	}
	c = rotateTo(t1, a)[2]
	d = rotateTo(t2, b)[2]
	if c == d {
		return
	}
	return f1, f2, a, b, c, d, true
}

func (m *Mesh) flipEdge(e int) bool {
	f1, f2, a, b, c, d, ok := m.trianglePair(e)
	if !ok {
		return false
	}
	if _, exists := m.FindEdge(c, d); exists {
		return false
	}
	pa, pb, pc, pd := m.verts[a].pos, m.verts[b].pos, m.verts[c].pos, m.verts[d].pos
	if degenerateTri(pc, pa, pd) || degenerateTri(pd, pb, pc) {
		return false
	}
	// The new triangles must face the same way as the pair, which also
	// rejects non convex quads.
	n := r3.Add(triNormal(pa, pb, pc), triNormal(pb, pa, pd))
	if r3.Dot(triNormal(pc, pa, pd), n) <= 0 || r3.Dot(triNormal(pd, pb, pc), n) <= 0 {
		return false
	}
	before := math.Min(minAngle(pa, pb, pc), minAngle(pb, pa, pd))
	after := math.Min(minAngle(pc, pa, pd), minAngle(pd, pb, pc))
	if after <= before+flipGain {
		return false
	}
	m.removeFace(f1)
	m.removeFace(f2)
	m.addFace([]int{c, a, d})
	m.addFace([]int{d, b, c})
	return true
}

// JoinTriangles merges pairs of adjacent triangles into quads. A pair is
// eligible when the angle between the triangle normals is at most
// faceAngle and every corner of the resulting quad deviates from a right
// angle by at most shapeAngle. Eligible pairs are merged greedily from the
// smallest combined deviation, each triangle joining at most one quad.
// Concave quads are never produced. It returns the number of quads made.
//
// With both limits at π neither filter rejects anything, so every convex
// pair is a candidate and the greedy order by combined deviation alone
// decides which triangles pair up. The remesher joins this way.
func (m *Mesh) JoinTriangles(faceAngle, shapeAngle float64) int {
	type candidate struct {
		f1, f2 int
		quad   [4]int
		err    float64
	}
	var cands []candidate
	for e := range m.edges {
		if !m.edges[e].alive {
			continue
		}
		f1, f2, a, b, c, d, ok := m.trianglePair(e)
		if !ok {
			continue
		}
		pa, pb, pc, pd := m.verts[a].pos, m.verts[b].pos, m.verts[c].pos, m.verts[d].pos
		n1, n2 := triNormal(pa, pb, pc), triNormal(pb, pa, pd)
		fa := d3.Angle(n1, n2)
		if fa > faceAngle {
			continue
		}
		quad := [4]int{b, c, a, d}
		n := d3.Unit(r3.Add(n1, n2))
		shape := 0.0
		convex := true
		for _, ang := range cornerAngles([]r3.Vec{pb, pc, pa, pd}, n) {
			if ang >= math.Pi-1e-9 {
				convex = false
				break
			}
			shape = math.Max(shape, math.Abs(ang-math.Pi/2))
		}
		if !convex || shape > shapeAngle {
			continue
		}
		cands = append(cands, candidate{f1: f1, f2: f2, quad: quad, err: fa + shape})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].err < cands[j].err })
	used := make(map[int]bool, 2*len(cands))
	joined := 0
	for _, c := range cands {
		if used[c.f1] || used[c.f2] {
			continue
		}
		used[c.f1], used[c.f2] = true, true
		m.removeFace(c.f1)
		m.removeFace(c.f2)
		used[m.addFace(c.quad[:])] = true
		joined++
	}
	return joined
}
