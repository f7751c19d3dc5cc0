package remesh

import (
	"github.com/soypat/remesh/mesh"
	"github.com/soypat/remesh/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

// Surface is a frozen copy of a mesh's geometry used to pull vertices
// back onto the original shape. It is immutable and safe for concurrent use.
type Surface struct {
	bvh *spatial.BVH
}

// NewSurface snapshots the faces of m. Polygons are triangulated on a
// copy first so concave faces keep their shape. Later changes to m do not
// affect the returned Surface.
func NewSurface(m *mesh.Mesh) *Surface {
	tris := m.Clone()
	tris.Triangulate()
	return &Surface{bvh: spatial.NewBVH(tris.Triangles())}
}

// NearestPoint returns the point on the frozen surface closest to p,
// which may lie in the interior of a face. It returns false only if the
// surface is empty.
func (s *Surface) NearestPoint(p r3.Vec) (r3.Vec, bool) {
	c, _, _, err := s.bvh.Closest(p)
	if err != nil {
		return r3.Vec{}, false
	}
	return c, true
}
