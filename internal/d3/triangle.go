package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle is a triangle in 3D space.
type Triangle [3]r3.Vec

// Normal returns the unit normal of the triangle following the
// right hand rule on its vertex order. Degenerate triangles return
// the zero vector.
func (t Triangle) Normal() r3.Vec {
	return Unit(r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0])))
}

// Area returns the area of the triangle.
func (t Triangle) Area() float64 {
	return 0.5 * r3.Norm(r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0])))
}

// Centroid returns the average of the triangle's vertices.
func (t Triangle) Centroid() r3.Vec {
	return r3.Scale(1./3., r3.Add(r3.Add(t[0], t[1]), t[2]))
}

// Bounds returns the bounding box of the triangle.
func (t Triangle) Bounds() Box {
	return Box{
		Min: MinElem(t[2], MinElem(t[0], t[1])),
		Max: MaxElem(t[2], MaxElem(t[0], t[1])),
	}
}

// MinAngle returns the smallest interior angle of the triangle in radians.
func (t Triangle) MinAngle() float64 {
	a := Angle(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	b := Angle(r3.Sub(t[2], t[1]), r3.Sub(t[0], t[1]))
	return math.Min(a, math.Min(b, math.Pi-a-b))
}

// Closest returns closest point on the triangle to argument point p.
// The search walks the Voronoi regions of the triangle's vertices and
// edges before falling back to the face interior, see
// Ericson, Real-Time Collision Detection, section 5.1.5.
func (t Triangle) Closest(p r3.Vec) r3.Vec {
	a, b, c := t[0], t[1], t[2]
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ap := r3.Sub(p, a)
	d1 := r3.Dot(ab, ap)
	d2 := r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := r3.Sub(p, b)
	d3 := r3.Dot(ab, bp)
	d4 := r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return r3.Add(a, r3.Scale(v, ab))
	}

	cp := r3.Sub(p, c)
	d5 := r3.Dot(ab, cp)
	d6 := r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return r3.Add(a, r3.Scale(w, ac))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b)))
	}

	denom := va + vb + vc
	if denom == 0 {
		// Zero area triangle that escaped the edge tests.
		return a
	}
	v := vb / denom
	w := vc / denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}
