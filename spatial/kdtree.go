// Package spatial implements the build-once, query-many spatial indices used
// by the remesher: a k-d tree over points and a bounding volume hierarchy
// over triangles.
package spatial

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmptyIndex is returned by nearest queries on an index built from no elements.
var ErrEmptyIndex = errors.New("spatial: query on empty index")

var (
	_ kdtree.Interface  = points{}
	_ kdtree.Comparable = Point{}
)

// Point is a position with an integer payload, usually an index into
// caller owned data associated with the position.
type Point struct {
	Pos   r3.Vec
	Index int
}

// KDTree is a static k-d tree over 3D points. It is safe for
// concurrent queries.
type KDTree struct {
	tree *kdtree.Tree
	n    int
}

// NewKDTree builds a KDTree from pts. pts is not modified.
func NewKDTree(pts []Point) *KDTree {
	if len(pts) == 0 {
		return &KDTree{}
	}
	cp := make(points, len(pts))
	copy(cp, pts)
	return &KDTree{
		tree: kdtree.New(cp, false),
		n:    len(cp),
	}
}

// Len returns the number of points in the tree.
func (k *KDTree) Len() int { return k.n }

// Nearest returns the point closest to q and the euclidean distance to it.
func (k *KDTree) Nearest(q r3.Vec) (Point, float64, error) {
	if k.n == 0 {
		return Point{}, 0, ErrEmptyIndex
	}
	got, d2 := k.tree.Nearest(Point{Pos: q, Index: -1})
	if got == nil {
		return Point{}, 0, ErrEmptyIndex
	}
	return got.(Point), math.Sqrt(d2), nil
}

// Within returns all points whose distance to q is at most radius.
// The result is ordered by increasing distance.
func (k *KDTree) Within(q r3.Vec, radius float64) ([]Point, error) {
	if k.n == 0 {
		return nil, ErrEmptyIndex
	}
	keep := kdtree.NewDistKeeper(radius * radius)
	k.tree.NearestSet(keep, Point{Pos: q, Index: -1})
	kept := make([]kdtree.ComparableDist, 0, len(keep.Heap))
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue // sentinel
		}
		kept = append(kept, c)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Dist < kept[j].Dist })
	found := make([]Point, len(kept))
	for i := range kept {
		found[i] = kept[i].Comparable.(Point)
	}
	return found, nil
}

// Compare returns the signed distance of p from the plane passing through
// c and perpendicular to the dimension d.
func (p Point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point)
	switch d {
	case 0:
		return p.Pos.X - q.Pos.X
	case 1:
		return p.Pos.Y - q.Pos.Y
	case 2:
		return p.Pos.Z - q.Pos.Z
	}
	panic("unreachable")
}

// Dims returns the number of dimensions described in the Comparable.
func (p Point) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the receiver and
// the parameter.
func (p Point) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.Pos, c.(Point).Pos))
}

type points []Point

func (p points) Index(i int) kdtree.Comparable { return p[i] }

// Len returns the length of the list.
func (p points) Len() int { return len(p) }

// Pivot partitions the list based on the dimension specified.
func (p points) Pivot(d kdtree.Dim) int {
	pl := plane{dim: d, points: p}
	return kdtree.Partition(pl, kdtree.MedianOfMedians(pl))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (p points) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

type plane struct {
	dim kdtree.Dim
	points
}

func (p plane) Less(i, j int) bool {
	return p.points[i].Compare(p.points[j], p.dim) < 0
}
func (p plane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
