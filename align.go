package remesh

import (
	"math"
	"sort"

	"github.com/soypat/remesh/internal/d3"
	"github.com/soypat/remesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Relaxation rules index the neighbors of a vertex ranked by how
// perpendicular their edge is to the nearest boundary. Negative indices
// count from the end of the ranking.
var (
	// QuadRule averages the two edges most parallel to the boundary with
	// the two most perpendicular ones.
	QuadRule = []int{-1, -2, 0, 1}
	// TriangleRule averages the four edges most perpendicular to the boundary.
	TriangleRule = []int{0, 1, 2, 3}
)

// AlignVertex moves the interior vertex v towards the mean of itself and
// the neighbors picked by rule. The displacement is restricted to the
// tangent plane at v. Boundary and isolated vertices are left untouched
// and false is returned.
func AlignVertex(m *mesh.Mesh, v int, field *BoundaryField, rule []int) bool {
	if len(rule) == 0 || m.IsBoundaryVertex(v) {
		return false
	}
	nb := m.Neighbors(v)
	if len(nb) == 0 {
		return false
	}
	p := m.Position(v)
	dir, err := field.DirectionAt(p)
	if err != nil {
		return false
	}
	ranked := make([]r3.Vec, len(nb))
	key := make([]float64, len(nb))
	for i, u := range nb {
		ranked[i] = m.Position(u)
		key[i] = math.Abs(r3.Dot(d3.Unit(r3.Sub(ranked[i], p)), dir))
	}
	sort.Stable(byKey{pos: ranked, key: key})

	sum := p
	n := len(ranked)
	for _, i := range rule {
		sum = r3.Add(sum, ranked[((i%n)+n)%n])
	}
	target := r3.Scale(1/float64(len(rule)+1), sum)
	disp := d3.RejectFrom(r3.Sub(target, p), m.VertexNormal(v))
	m.SetPosition(v, r3.Add(p, disp))
	return true
}

// alignAll relaxes every interior vertex in handle order. Positions are
// updated in place so later vertices see the moves of earlier ones.
func alignAll(m *mesh.Mesh, field *BoundaryField, rule []int) (moved int) {
	for _, v := range m.Vertices() {
		if AlignVertex(m, v, field, rule) {
			moved++
		}
	}
	return moved
}

// Reproject snaps every interior vertex of m onto s and returns the
// number of vertices moved. Vertices with no answer are skipped.
func Reproject(m *mesh.Mesh, s *Surface) (n int) {
	for _, v := range m.Vertices() {
		if m.IsBoundaryVertex(v) {
			continue
		}
		q, ok := s.NearestPoint(m.Position(v))
		if !ok {
			continue
		}
		m.SetPosition(v, q)
		n++
	}
	return n
}

type byKey struct {
	pos []r3.Vec
	key []float64
}

func (b byKey) Len() int           { return len(b.key) }
func (b byKey) Less(i, j int) bool { return b.key[i] < b.key[j] }
func (b byKey) Swap(i, j int) {
	b.pos[i], b.pos[j] = b.pos[j], b.pos[i]
	b.key[i], b.key[j] = b.key[j], b.key[i]
}

