package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// R3 vector helpers used throughout the remesher. gonum's r3 package
// covers the arithmetic, these fill the element-wise gaps.

// Elem returns a vector with all components set to v.
func Elem(v float64) r3.Vec {
	return r3.Vec{X: v, Y: v, Z: v}
}

// EqualWithin returns true if all components of a and b differ by at most tol.
func EqualWithin(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}

// MinElem return a vector with the minimum components of two vectors.
func MinElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

// MaxElem return a vector with the maximum components of two vectors.
func MaxElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// Max returns the largest component of a.
func Max(a r3.Vec) float64 {
	return math.Max(a.Z, math.Max(a.X, a.Y))
}

// Mean returns the average of the components of a.
func Mean(a r3.Vec) float64 {
	return (a.X + a.Y + a.Z) / 3
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

// Unit returns a unit vector in the direction of a or the zero
// vector if a has zero length. Unlike r3.Unit it never returns NaN.
func Unit(a r3.Vec) r3.Vec {
	n := r3.Norm(a)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, a)
}

// RejectFrom returns the component of v perpendicular to the unit vector n.
func RejectFrom(v, n r3.Vec) r3.Vec {
	return r3.Sub(v, r3.Scale(r3.Dot(v, n), n))
}

// Angle returns the angle in radians between a and b.
// Zero length arguments yield an angle of zero.
func Angle(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	c := r3.Dot(a, b) / (na * nb)
	return math.Acos(clamp(c, -1, 1))
}

// Clamp x between a and b, assume a <= b
func clamp(x, a, b float64) float64 {
	return math.Min(b, math.Max(x, a))
}
