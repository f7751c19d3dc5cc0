// Package render reads and writes STL files and draws previews and
// statistics plots of meshes.
package render

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"github.com/soypat/remesh/internal/d3"
	"github.com/soypat/remesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNormalMismatch is returned by ReadSTL alongside the triangles read when
// stored normals disagree with the vertex winding. The model is usually fine.
var ErrNormalMismatch = errors.New("stl: stored normal not approximately equal to normal calculated from vertices")

const stlTriangleSize = 50

// CreateSTL writes the faces of m to a binary STL file at path. Polygons
// are fanned into triangles.
func CreateSTL(path string, m *mesh.Mesh) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(fp)
	err = WriteSTL(bw, m.Triangles())
	if err == nil {
		err = bw.Flush()
	}
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	return err
}

// LoadSTL reads a binary STL file. See ReadSTL.
func LoadSTL(path string) ([][3]r3.Vec, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ReadSTL(bufio.NewReader(fp))
}

// WriteSTL writes triangles to w in binary STL format.
func WriteSTL(w io.Writer, model [][3]r3.Vec) error {
	if len(model) == 0 {
		return errors.New("stl: empty triangle slice")
	}
	if uint64(len(model)) > math.MaxUint32 {
		return fmt.Errorf("stl: %d triangles do not fit in STL header", len(model))
	}
	header := stlHeader{
		Count: uint32(len(model)),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	var b [stlTriangleSize]byte
	for _, tri := range model {
		d := newSTLTriangle(tri)
		d.put(b[:])
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}

// ReadSTL reads a binary STL stream. If some stored normals do not match
// the vertices the triangles are returned along with ErrNormalMismatch.
func ReadSTL(r io.Reader) (output [][3]r3.Vec, readErr error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errors.New("stl: encountered EOF while reading header")
		}
		return nil, fmt.Errorf("stl: header read failed: %w", err)
	}
	if header.Count == 0 {
		return nil, errors.New("stl: header indicates 0 triangles present")
	}
	var (
		buf            [stlTriangleSize]byte
		d              stlTriangle
		i              int
		normMismatches int
	)
	defer func() {
		if readErr != nil && !errors.Is(readErr, ErrNormalMismatch) {
			readErr = fmt.Errorf("stl: %d/%d triangles read: %w", i, header.Count, readErr)
		}
	}()
	output = make([][3]r3.Vec, 0, min(int(header.Count), 1<<20))
	for i = 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			if !errors.Is(err, ErrNormalMismatch) {
				return nil, err
			}
			normMismatches++
		}
		output = append(output, d.vertices())
	}
	if normMismatches > 0 {
		return output, fmt.Errorf("%w (%d triangles)", ErrNormalMismatch, normMismatches)
	}
	return output, nil
}

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

func newSTLTriangle(t [3]r3.Vec) stlTriangle {
	return stlTriangle{
		Normal:  to3F32(d3.Triangle(t).Normal()),
		Vertex1: to3F32(t[0]),
		Vertex2: to3F32(t[1]),
		Vertex3: to3F32(t[2]),
	}
}

func (t stlTriangle) put(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
	// attributes are ignored.
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

func (t stlTriangle) validate() error {
	const epsilon = 1e-12
	const normTol = 5e-2
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	if t.degenerate(epsilon) {
		return errors.New("triangle is degenerate")
	}
	if t.Normal == ([3]float32{}) {
		// Zero normals are allowed by the format.
		return nil
	}
	calc := t.normalFromVertices()
	neg := [3]float32{-calc[0], -calc[1], -calc[2]}
	if !equalWithin3F32(calc, t.Normal, normTol) && !equalWithin3F32(neg, t.Normal, normTol) {
		return ErrNormalMismatch
	}
	return nil
}

func (t stlTriangle) normalFromVertices() [3]float32 {
	return to3F32(d3.Triangle(t.vertices()).Normal())
}

// degenerate returns true if two vertices of the triangle coincide.
func (t stlTriangle) degenerate(tol float32) bool {
	return equalWithin3F32(t.Vertex1, t.Vertex2, tol) ||
		equalWithin3F32(t.Vertex2, t.Vertex3, tol) ||
		equalWithin3F32(t.Vertex3, t.Vertex1, tol)
}

func (t stlTriangle) vertices() [3]r3.Vec {
	return [3]r3.Vec{
		r3From3F32(t.Vertex1),
		r3From3F32(t.Vertex2),
		r3From3F32(t.Vertex3),
	}
}

func equalWithin3F32(a, b [3]float32, tol float32) bool {
	return math32.Abs(a[0]-b[0]) <= tol &&
		math32.Abs(a[1]-b[1]) <= tol &&
		math32.Abs(a[2]-b[2]) <= tol
}

func r3From3F32(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}

func to3F32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
