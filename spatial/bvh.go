package spatial

import (
	"math"
	"sort"

	"github.com/soypat/remesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxTrianglesPerLeaf is the threshold for splitting BVH nodes.
const maxTrianglesPerLeaf = 4

// BVH is a bounding volume hierarchy over triangles answering closest
// point queries. Queries snap to the nearest point on any triangle,
// face interiors included. It is safe for concurrent queries.
type BVH struct {
	root *bvhNode
	tris []d3.Triangle
}

// bvhNode has either two children or a list of triangle indices.
type bvhNode struct {
	box         d3.Box
	left, right *bvhNode
	tris        []int
}

// NewBVH builds a BVH over tris. The triangles are copied.
func NewBVH(tris [][3]r3.Vec) *BVH {
	b := &BVH{tris: make([]d3.Triangle, len(tris))}
	for i := range tris {
		b.tris[i] = tris[i]
	}
	if len(tris) == 0 {
		return b
	}
	idx := make([]int, len(tris))
	centroids := make([]r3.Vec, len(tris))
	for i := range b.tris {
		idx[i] = i
		centroids[i] = b.tris[i].Centroid()
	}
	b.root = b.build(idx, centroids)
	return b
}

// Len returns the number of triangles in the hierarchy.
func (b *BVH) Len() int { return len(b.tris) }

func (b *BVH) build(idx []int, centroids []r3.Vec) *bvhNode {
	node := &bvhNode{box: d3.EmptyBox()}
	cbox := d3.EmptyBox()
	for _, i := range idx {
		node.box = node.box.Extend(b.tris[i].Bounds())
		cbox = cbox.Include(centroids[i])
	}
	if len(idx) <= maxTrianglesPerLeaf {
		node.tris = idx
		return node
	}
	// Split at the centroid median along the longest centroid axis.
	axis := cbox.LongestAxis()
	sort.Slice(idx, func(i, j int) bool {
		return component(centroids[idx[i]], axis) < component(centroids[idx[j]], axis)
	})
	mid := len(idx) / 2
	node.left = b.build(idx[:mid], centroids)
	node.right = b.build(idx[mid:], centroids)
	return node
}

// Closest returns the point on the triangle soup closest to p, the index
// of the triangle it lies on and the distance from p.
func (b *BVH) Closest(p r3.Vec) (closest r3.Vec, tri int, dist float64, err error) {
	if b.root == nil {
		return r3.Vec{}, -1, 0, ErrEmptyIndex
	}
	best := math.Inf(1)
	tri = -1
	b.closest(b.root, p, &closest, &tri, &best)
	return closest, tri, math.Sqrt(best), nil
}

func (b *BVH) closest(node *bvhNode, p r3.Vec, closest *r3.Vec, tri *int, best2 *float64) {
	if node.tris != nil {
		for _, i := range node.tris {
			c := b.tris[i].Closest(p)
			if d2 := r3.Norm2(r3.Sub(c, p)); d2 < *best2 {
				*best2 = d2
				*closest = c
				*tri = i
			}
		}
		return
	}
	// Descend into the nearer box first so the farther one is more likely pruned.
	near, far := node.left, node.right
	dnear, dfar := near.box.Dist2(p), far.box.Dist2(p)
	if dfar < dnear {
		near, far = far, near
		dnear, dfar = dfar, dnear
	}
	if dnear < *best2 {
		b.closest(near, p, closest, tri, best2)
	}
	if dfar < *best2 {
		b.closest(far, p, closest, tri, best2)
	}
}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}
