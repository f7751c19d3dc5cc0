package remesh

import (
	"fmt"

	"github.com/soypat/remesh/internal/d3"
	"github.com/soypat/remesh/mesh"
	"github.com/soypat/remesh/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

// BoundarySample is the midpoint and unit direction of one boundary edge.
type BoundarySample struct {
	Pos, Dir r3.Vec
}

// BoundaryField answers which way the nearest open boundary runs at a
// point. It is captured once and does not follow later changes to the
// mesh it was built from, which keeps the alignment target stable while
// the mesh is reshaped.
type BoundaryField struct {
	samples []BoundarySample
	tree    *spatial.KDTree
}

// NewBoundaryField samples every boundary edge of m.
func NewBoundaryField(m *mesh.Mesh) *BoundaryField {
	var samples []BoundarySample
	var pts []spatial.Point
	for _, e := range m.Edges() {
		if !m.IsBoundaryEdge(e) {
			continue
		}
		ev := m.EdgeVertices(e)
		p0, p1 := m.Position(ev[0]), m.Position(ev[1])
		pts = append(pts, spatial.Point{Pos: d3.Midpoint(p0, p1), Index: len(samples)})
		samples = append(samples, BoundarySample{
			Pos: d3.Midpoint(p0, p1),
			Dir: d3.Unit(r3.Sub(p0, p1)),
		})
	}
	return &BoundaryField{samples: samples, tree: spatial.NewKDTree(pts)}
}

// Len returns the number of boundary samples.
func (b *BoundaryField) Len() int { return len(b.samples) }

// DirectionAt returns the direction of the boundary edge whose midpoint
// is nearest to p. It fails with ErrNoBoundary on fields built from
// closed meshes.
func (b *BoundaryField) DirectionAt(p r3.Vec) (r3.Vec, error) {
	if len(b.samples) == 0 {
		return r3.Vec{}, ErrNoBoundary
	}
	got, _, err := b.tree.Nearest(p)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("%w: %v", ErrNoBoundary, err)
	}
	return b.samples[got.Index].Dir, nil
}
