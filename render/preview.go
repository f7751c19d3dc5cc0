package render

import (
	"errors"
	"image"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/remesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// View configures a shaded preview of a mesh. The mesh is scaled to fit
// a bi-unit cube centered at the origin before rendering so Eye is given
// in those units.
type View struct {
	Width, Height int
	// Supersampling factor. Images are rendered Scale times larger and
	// downsampled for antialiasing.
	Scale  int
	Eye    r3.Vec
	LookAt r3.Vec
	Up     r3.Vec
	// Vertical field of view in degrees.
	Fovy      float64
	Near, Far float64
	// Wireframe draws every mesh edge over the shaded faces.
	Wireframe bool
}

// DefaultView looks down on the mesh from above and to the side with
// the wireframe overlay enabled.
func DefaultView() View {
	return View{
		Width:     1024,
		Height:    768,
		Scale:     2,
		Eye:       r3.Vec{X: 2, Y: -3, Z: 3},
		Up:        r3.Vec{Z: 1},
		Fovy:      30,
		Near:      1,
		Far:       20,
		Wireframe: true,
	}
}

// Preview renders m with a Phong shader.
func Preview(m *mesh.Mesh, view View) (image.Image, error) {
	if m.NumFaces() == 0 {
		return nil, errors.New("render: no faces to preview")
	}
	if view.Width <= 0 || view.Height <= 0 {
		return nil, errors.New("render: invalid preview size")
	}
	if view.Scale < 1 {
		view.Scale = 1
	}
	var tris []*fauxgl.Triangle
	for _, t := range m.Triangles() {
		tri := fauxgl.NewTriangleForPoints(vec(t[0]), vec(t[1]), vec(t[2]))
		tris = append(tris, tri)
	}
	var lines []*fauxgl.Line
	if view.Wireframe {
		for _, e := range m.Edges() {
			ev := m.EdgeVertices(e)
			lines = append(lines, fauxgl.NewLineForPoints(vec(m.Position(ev[0])), vec(m.Position(ev[1]))))
		}
	}
	fm := fauxgl.NewMesh(tris, lines)
	fm.BiUnitCube()

	var (
		eye    = vec(view.Eye)
		center = vec(view.LookAt)
		up     = vec(view.Up)
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()
	)
	w, h := view.Width*view.Scale, view.Height*view.Scale
	ctx := fauxgl.NewContext(w, h)
	ctx.ClearColorBufferWith(fauxgl.HexColor("#FFF8E3"))
	aspect := float64(view.Width) / float64(view.Height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(view.Fovy, aspect, view.Near, view.Far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor("#468966")
	ctx.Shader = shader
	ctx.DrawTriangles(fm.Triangles)
	if len(fm.Lines) > 0 {
		ctx.Shader = fauxgl.NewSolidColorShader(matrix, fauxgl.HexColor("#1D2A22"))
		ctx.LineWidth = float64(view.Scale)
		ctx.DepthBias = -1e-4
		ctx.DrawLines(fm.Lines)
	}
	img := ctx.Image()
	if view.Scale > 1 {
		img = resize.Resize(uint(view.Width), uint(view.Height), img, resize.Bilinear)
	}
	return img, nil
}

// SavePNG renders m and writes the image to path.
func SavePNG(path string, m *mesh.Mesh, view View) error {
	img, err := Preview(m, view)
	if err != nil {
		return err
	}
	return fauxgl.SavePNG(path, img)
}

func vec(v r3.Vec) fauxgl.Vector {
	return fauxgl.V(v.X, v.Y, v.Z)
}
