package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is a 3d axis aligned bounding box.
type Box r3.Box

// EmptyBox returns an inverted box that any call to Include will reset.
func EmptyBox() Box {
	return Box{Min: Elem(math.MaxFloat64), Max: Elem(-math.MaxFloat64)}
}

// Empty returns true if the box has not included any point.
func (a Box) Empty() bool {
	return a.Min.X > a.Max.X || a.Min.Y > a.Max.Y || a.Min.Z > a.Max.Z
}

// Extend returns a box enclosing two 3d boxes.
func (a Box) Extend(b Box) Box {
	return Box{
		Min: MinElem(a.Min, b.Min),
		Max: MaxElem(a.Max, b.Max),
	}
}

// Include enlarges a 3d box to include a point.
func (a Box) Include(v r3.Vec) Box {
	return Box{
		Min: MinElem(a.Min, v),
		Max: MaxElem(a.Max, v),
	}
}

// Size returns the size of a 3d box.
func (a Box) Size() r3.Vec {
	return r3.Sub(a.Max, a.Min)
}

// Contains checks if the 3d box contains the given vector (considering bounds as inside).
func (a Box) Contains(v r3.Vec) bool {
	return a.Min.X <= v.X && a.Min.Y <= v.Y && a.Min.Z <= v.Z &&
		v.X <= a.Max.X && v.Y <= a.Max.Y && v.Z <= a.Max.Z
}

// Dist2 returns the squared distance from p to the box.
// Points within the box have distance zero.
func (a Box) Dist2(p r3.Vec) float64 {
	// https://math.stackexchange.com/questions/2133217/minimal-distance-to-a-cube-in-2d-and-3d-from-a-point-lying-outside
	dx := math.Max(0, math.Max(p.X-a.Max.X, a.Min.X-p.X))
	dy := math.Max(0, math.Max(p.Y-a.Max.Y, a.Min.Y-p.Y))
	dz := math.Max(0, math.Max(p.Z-a.Max.Z, a.Min.Z-p.Z))
	return dx*dx + dy*dy + dz*dz
}

// LongestAxis returns 0, 1 or 2 for the X, Y or Z axis, whichever
// the box is longest along.
func (a Box) LongestAxis() int {
	s := a.Size()
	switch {
	case s.Y > s.X && s.Y >= s.Z:
		return 1
	case s.Z > s.X && s.Z > s.Y:
		return 2
	}
	return 0
}
