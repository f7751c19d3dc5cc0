package remesh_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/soypat/remesh"
	"github.com/soypat/remesh/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// plane returns a size×size square on z=0 cut into n×n cells of two
// counter clockwise triangles each. Vertex (x,y) has index y*(n+1)+x.
func plane(t testing.TB, n int, size float64) *mesh.Mesh {
	t.Helper()
	return heightField(t, n, size, func(x, y float64) float64 { return 0 })
}

func heightField(t testing.TB, n int, size float64, z func(x, y float64) float64) *mesh.Mesh {
	t.Helper()
	var pos []r3.Vec
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			px, py := size*float64(x)/float64(n), size*float64(y)/float64(n)
			pos = append(pos, r3.Vec{X: px, Y: py, Z: z(px, py)})
		}
	}
	var faces [][]int
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			a := y*(n+1) + x
			b, c, d := a+1, a+n+2, a+n+1
			faces = append(faces, []int{a, b, c}, []int{a, c, d})
		}
	}
	m, err := mesh.New(pos, faces)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func octahedron(t testing.TB) *mesh.Mesh {
	t.Helper()
	pos := []r3.Vec{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}}
	faces := [][]int{
		{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
		{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
	}
	m, err := mesh.New(pos, faces)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func boundaryPositions(m *mesh.Mesh) map[r3.Vec]bool {
	out := make(map[r3.Vec]bool)
	for _, v := range m.Vertices() {
		if m.IsBoundaryVertex(v) {
			out[m.Position(v)] = true
		}
	}
	return out
}

func TestParamsValidate(t *testing.T) {
	valid := remesh.Params{TargetEdgeLength: 0.1, Iterations: 3, Bias: 0.3}
	if err := valid.Validate(); err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		name string
		edit func(p *remesh.Params)
	}{
		{"zero length", func(p *remesh.Params) { p.TargetEdgeLength = 0 }},
		{"negative length", func(p *remesh.Params) { p.TargetEdgeLength = -1 }},
		{"NaN length", func(p *remesh.Params) { p.TargetEdgeLength = math.NaN() }},
		{"zero iterations", func(p *remesh.Params) { p.Iterations = 0 }},
		{"bias one", func(p *remesh.Params) { p.Bias = 1 }},
		{"negative bias", func(p *remesh.Params) { p.Bias = -0.1 }},
		{"negative weld", func(p *remesh.Params) { p.WeldDist = -1 }},
		{"empty rule", func(p *remesh.Params) { p.Rule = []int{} }},
	} {
		p := valid
		test.edit(&p)
		err := p.Validate()
		if !errors.Is(err, remesh.ErrInvalidParameters) {
			t.Errorf("%s: got %v, want ErrInvalidParameters", test.name, err)
		}
		if _, err := remesh.Remesh(context.Background(), plane(t, 2, 1), p); !errors.Is(err, remesh.ErrInvalidParameters) {
			t.Errorf("%s: Remesh returned %v", test.name, err)
		}
	}
}

func TestRemeshFlatSquare(t *testing.T) {
	const target, bias = 0.2, 0.3
	in := plane(t, 10, 2)
	before := boundaryPositions(in)
	out, err := remesh.Remesh(context.Background(), in, remesh.Params{
		TargetEdgeLength: target,
		Iterations:       10,
		Bias:             bias,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := out.CheckManifold(); err != nil {
		t.Fatal(err)
	}
	after := boundaryPositions(out)
	for p := range before {
		if !after[p] {
			t.Errorf("boundary vertex %v moved or left the boundary", p)
		}
	}
	for _, corner := range []r3.Vec{{}, {X: 2}, {Y: 2}, {X: 2, Y: 2}} {
		if !after[corner] {
			t.Errorf("corner %v lost", corner)
		}
	}
	for _, v := range out.Vertices() {
		if z := out.Position(v).Z; math.Abs(z) > 1e-12 {
			t.Fatalf("vertex %d left the plane: z=%g", v, z)
		}
	}
	_, upper := remesh.Params{TargetEdgeLength: target, Bias: bias}.Band()
	st := out.ComputeStats(0, upper)
	if st.Triangles != st.Faces {
		t.Errorf("got %d non triangular faces", st.Faces-st.Triangles)
	}
	// The last pass relaxes after it subdivides, which stretches a few
	// edges past the upper bound.
	if st.InBand < 0.9 {
		t.Errorf("only %.3f of edges are shorter than %g", st.InBand, upper)
	}
	if st.MaxEdge > 1.5*upper {
		t.Errorf("longest edge %g", st.MaxEdge)
	}
	expect := 4 / (target * target) * 2
	if got := float64(st.Triangles); got < 0.8*expect || got > 1.2*expect {
		t.Errorf("got %d triangles, expected %g ±20%%", st.Triangles, expect)
	}
}

func TestRemeshDoesNotModifyInput(t *testing.T) {
	in := plane(t, 4, 1)
	pos0, faces0 := in.Polygons()
	_, err := remesh.Remesh(context.Background(), in, remesh.Params{TargetEdgeLength: 0.1, Iterations: 2, Bias: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	pos1, faces1 := in.Polygons()
	if len(pos0) != len(pos1) || len(faces0) != len(faces1) {
		t.Fatal("input mesh changed size")
	}
	for i := range pos0 {
		if pos0[i] != pos1[i] {
			t.Fatalf("vertex %d moved", i)
		}
	}
}

func TestRemeshClosedMesh(t *testing.T) {
	in := octahedron(t)
	pos0, _ := in.Polygons()
	calls := 0
	_, err := remesh.Remesh(context.Background(), in, remesh.Params{
		TargetEdgeLength: 0.3,
		Iterations:       3,
		Bias:             0.3,
		Progress:         func(remesh.PassStats, *mesh.Mesh) { calls++ },
	})
	if !errors.Is(err, remesh.ErrNoBoundary) {
		t.Fatalf("got %v, want ErrNoBoundary", err)
	}
	if calls != 0 {
		t.Error("pass ran on a closed mesh")
	}
	pos1, _ := in.Polygons()
	for i := range pos0 {
		if pos0[i] != pos1[i] {
			t.Fatal("closed mesh was modified")
		}
	}
	field := remesh.NewBoundaryField(in)
	if _, err := field.DirectionAt(r3.Vec{}); !errors.Is(err, remesh.ErrNoBoundary) {
		t.Errorf("DirectionAt on closed mesh: got %v", err)
	}
}

func TestRemeshDegenerate(t *testing.T) {
	p := remesh.Params{TargetEdgeLength: 0.1, Iterations: 1}
	_, err := remesh.Remesh(context.Background(), nil, p)
	if !errors.Is(err, mesh.ErrDegenerateMesh) {
		t.Errorf("nil mesh: got %v", err)
	}
	_, err = remesh.Remesh(context.Background(), &mesh.Mesh{}, p)
	if !errors.Is(err, mesh.ErrDegenerateMesh) {
		t.Errorf("empty mesh: got %v", err)
	}
}

func TestRemeshCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	passes := 0
	_, err := remesh.Remesh(ctx, plane(t, 6, 1), remesh.Params{
		TargetEdgeLength: 0.1,
		Iterations:       10,
		Bias:             0.3,
		Progress: func(st remesh.PassStats, m *mesh.Mesh) {
			passes++
			if st.Pass == 2 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if passes != 2 {
		t.Errorf("ran %d passes after cancel at pass 2", passes)
	}
}

func TestRemeshProgress(t *testing.T) {
	const target, bias, iters = 0.1, 0.3, 8
	p := remesh.Params{TargetEdgeLength: target, Iterations: iters, Bias: bias}
	lower, upper := p.Band()
	var outOfBand []float64
	subdivided := 0
	p.Progress = func(st remesh.PassStats, m *mesh.Mesh) {
		if st.Pass != len(outOfBand)+1 {
			t.Errorf("pass %d reported out of order", st.Pass)
		}
		if err := m.CheckManifold(); err != nil {
			t.Errorf("pass %d: %v", st.Pass, err)
		}
		if st.Aligned > m.NumVertices() || st.Reprojected > m.NumVertices() {
			t.Errorf("pass %d: %+v exceeds %d vertices", st.Pass, st, m.NumVertices())
		}
		subdivided += st.Subdivided
		outOfBand = append(outOfBand, 1-m.ComputeStats(lower, upper).InBand)
	}
	_, err := remesh.Remesh(context.Background(), plane(t, 4, 1), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(outOfBand) != iters {
		t.Fatalf("progress called %d times, want %d", len(outOfBand), iters)
	}
	if subdivided == 0 {
		t.Error("no pass reported subdivisions")
	}
	first, last := outOfBand[0], outOfBand[iters-1]
	if last > first+0.1 {
		t.Errorf("out of band fraction grew from %.3f to %.3f", first, last)
	}
}

// interiorOutOfBand returns the fraction of interior edges with length
// outside [lower, upper].
func interiorOutOfBand(m *mesh.Mesh, lower, upper float64) float64 {
	n, out := 0, 0
	for _, e := range m.Edges() {
		if m.IsBoundaryEdge(e) {
			continue
		}
		n++
		if l := m.EdgeLength(e); l < lower || l > upper {
			out++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(out) / float64(n)
}

func TestRemeshConvergesOverSeeds(t *testing.T) {
	const seeds, target, bias, iters = 12, 0.06, 0.3, 8
	p := remesh.Params{TargetEdgeLength: target, Iterations: iters, Bias: bias}
	lower, upper := p.Band()
	rng := rand.New(rand.NewSource(7))
	var first, last float64
	for seed := 0; seed < seeds; seed++ {
		a, fx, fy := 0.05+0.1*rng.Float64(), 1+3*rng.Float64(), 1+3*rng.Float64()
		in := heightField(t, 4, 1, func(x, y float64) float64 {
			return a * math.Sin(fx*x) * math.Cos(fy*y)
		})
		for _, v := range in.Vertices() {
			if in.IsBoundaryVertex(v) {
				continue
			}
			q := in.Position(v)
			q.X += (rng.Float64()*2 - 1) * 0.06
			q.Y += (rng.Float64()*2 - 1) * 0.06
			in.SetPosition(v, q)
		}
		var bands []float64
		p.Progress = func(st remesh.PassStats, m *mesh.Mesh) {
			bands = append(bands, interiorOutOfBand(m, lower, upper))
		}
		out, err := remesh.Remesh(context.Background(), in, p)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if err := out.CheckManifold(); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if len(bands) != iters {
			t.Fatalf("seed %d: %d passes reported", seed, len(bands))
		}
		first += bands[0] / seeds
		last += bands[iters-1] / seeds
	}
	if last >= first {
		t.Errorf("mean out of band fraction went from %.3f after the first pass to %.3f after the last", first, last)
	}
}

func TestRemeshQuads(t *testing.T) {
	in := plane(t, 6, 1)
	before := boundaryPositions(in)
	out, err := remesh.Remesh(context.Background(), in, remesh.Params{
		TargetEdgeLength: 0.15,
		Iterations:       5,
		Bias:             0.3,
		Quads:            true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := out.CheckManifold(); err != nil {
		t.Fatal(err)
	}
	st := out.ComputeStats(0, 1)
	if st.Quads == 0 {
		t.Error("no quads produced")
	}
	if st.Quads+st.Triangles != st.Faces {
		t.Error("faces with more than four sides produced")
	}
	after := boundaryPositions(out)
	for p := range before {
		if !after[p] {
			t.Errorf("boundary vertex %v lost", p)
		}
	}
}

func TestRemeshPartial(t *testing.T) {
	const weld = 1e-5
	in := plane(t, 10, 2)
	selected := func(f int) bool {
		c := r3.Vec{}
		for _, p := range in.FacePositions(f) {
			c = r3.Add(c, p)
		}
		return c.X/3 < 1
	}
	var outside []r3.Vec
	for _, v := range in.Vertices() {
		if p := in.Position(v); p.X > 1+weld {
			outside = append(outside, p)
		}
	}
	out, err := remesh.Remesh(context.Background(), in, remesh.Params{
		TargetEdgeLength: 0.1,
		Iterations:       4,
		Bias:             0.3,
		Selection:        selected,
		WeldDist:         weld,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := out.CheckManifold(); err != nil {
		t.Fatal(err)
	}
	have := make(map[r3.Vec]bool)
	vs := out.Vertices()
	for _, v := range vs {
		have[out.Position(v)] = true
	}
	for _, p := range outside {
		if !have[p] {
			t.Errorf("vertex %v outside the selection moved", p)
		}
	}
	for i, a := range vs {
		for _, b := range vs[i+1:] {
			if d := r3.Norm(r3.Sub(out.Position(a), out.Position(b))); d < weld {
				t.Fatalf("vertices %d and %d left unwelded at distance %g", a, b, d)
			}
		}
	}
	// The stitched square is a disk: a single boundary loop made of the
	// outer perimeter only.
	for _, e := range out.Edges() {
		if !out.IsBoundaryEdge(e) {
			continue
		}
		ev := out.EdgeVertices(e)
		for _, v := range ev {
			p := out.Position(v)
			if p.X > 1e-9 && p.X < 2-1e-9 && p.Y > 1e-9 && p.Y < 2-1e-9 {
				t.Fatalf("interior boundary edge at %v: seam left open", p)
			}
		}
	}
}

func TestStitchInsertsSeamVertices(t *testing.T) {
	region, err := mesh.New([]r3.Vec{
		{}, {X: 1}, {X: 1, Y: 0.5}, {X: 1, Y: 1}, {Y: 1},
	}, [][]int{{0, 1, 2}, {0, 2, 3}, {0, 3, 4}})
	if err != nil {
		t.Fatal(err)
	}
	rest, err := mesh.New([]r3.Vec{
		{X: 1}, {X: 2}, {X: 2, Y: 1}, {X: 1, Y: 1},
	}, [][]int{{0, 1, 2}, {0, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	merged, err := remesh.Stitch(region, rest, 1e-5)
	if err != nil {
		t.Fatal(err)
	}
	if err := merged.CheckManifold(); err != nil {
		t.Fatal(err)
	}
	st := merged.ComputeStats(0, 10)
	if st.Vertices != 7 || st.Faces != 6 || st.Edges != 12 || st.BoundaryEdges != 6 {
		t.Errorf("got %+v, want 7 vertices, 6 faces, 12 edges of which 6 on the boundary", st)
	}
	if rest.NumVertices() != 4 || region.NumVertices() != 5 {
		t.Error("Stitch modified its arguments")
	}
}

func TestReprojectIdempotent(t *testing.T) {
	m := heightField(t, 6, 1, func(x, y float64) float64 {
		return 0.3 * math.Sin(3*x) * math.Cos(2*y)
	})
	s := remesh.NewSurface(m)
	rng := rand.New(rand.NewSource(1))
	tris := m.Triangles()
	for i := 0; i < 200; i++ {
		tri := tris[rng.Intn(len(tris))]
		u, v := rng.Float64(), rng.Float64()
		if u+v > 1 {
			u, v = 1-u, 1-v
		}
		p := r3.Add(tri[0], r3.Add(r3.Scale(u, r3.Sub(tri[1], tri[0])), r3.Scale(v, r3.Sub(tri[2], tri[0]))))
		q, ok := s.NearestPoint(p)
		if !ok {
			t.Fatal("no nearest point")
		}
		if d := r3.Norm(r3.Sub(p, q)); d > 1e-9 {
			t.Fatalf("point on surface moved by %g", d)
		}
		q2, _ := s.NearestPoint(q)
		if r3.Norm(r3.Sub(q2, q)) > 1e-12 {
			t.Fatalf("second projection moved %v to %v", q, q2)
		}
	}
	// Reproject only moves interior vertices.
	lifted := m.Clone()
	for _, v := range lifted.Vertices() {
		p := lifted.Position(v)
		p.Z += 0.05
		lifted.SetPosition(v, p)
	}
	before := boundaryPositions(lifted)
	n := remesh.Reproject(lifted, s)
	if n != lifted.NumVertices()-len(before) {
		t.Errorf("reprojected %d vertices, want %d interior", n, lifted.NumVertices()-len(before))
	}
	for p := range boundaryPositions(lifted) {
		if !before[p] {
			t.Errorf("boundary vertex moved to %v", p)
		}
	}
}

func TestSurfaceConcavePolygon(t *testing.T) {
	m, err := mesh.New([]r3.Vec{
		{}, {X: 2}, {X: 2, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 2}, {Y: 2},
	}, [][]int{{0, 1, 2, 3, 4, 5}})
	if err != nil {
		t.Fatal(err)
	}
	s := remesh.NewSurface(m)
	// Above the notch of the L, closest to the inner side y=1.
	got, ok := s.NearestPoint(r3.Vec{X: 1.3, Y: 1.2, Z: 0.5})
	if !ok {
		t.Fatal("no nearest point")
	}
	if want := (r3.Vec{X: 1.3, Y: 1}); r3.Norm(r3.Sub(got, want)) > 1e-12 {
		t.Errorf("got %v, want %v on the L", got, want)
	}
	if m.NumFaces() != 1 {
		t.Error("NewSurface modified its argument")
	}
}

// strip returns a long thin boundary along the x axis far below the origin
// so that every query near the origin sees a boundary running along x.
func strip(t testing.TB) *remesh.BoundaryField {
	t.Helper()
	var pos []r3.Vec
	var faces [][]int
	const n = 200
	for i := 0; i <= n; i++ {
		x := float64(i - n/2)
		pos = append(pos, r3.Vec{X: x, Y: -11}, r3.Vec{X: x, Y: -10})
	}
	for i := 0; i < n; i++ {
		a, b, c, d := 2*i, 2*i+2, 2*i+3, 2*i+1
		faces = append(faces, []int{a, b, c}, []int{a, c, d})
	}
	m, err := mesh.New(pos, faces)
	if err != nil {
		t.Fatal(err)
	}
	return remesh.NewBoundaryField(m)
}

// diamond is a center vertex 0 joined to four vertices on the axes.
func diamond(t testing.TB, center r3.Vec, rimZ float64) *mesh.Mesh {
	t.Helper()
	m, err := mesh.New([]r3.Vec{
		center, {X: 1, Z: rimZ}, {Y: 1, Z: rimZ}, {X: -1, Z: rimZ}, {Y: -1, Z: rimZ},
	}, [][]int{{0, 1, 2}, {0, 2, 3}, {0, 3, 4}, {0, 4, 1}})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestBoundaryFieldDirection(t *testing.T) {
	field := strip(t)
	dir, err := field.DirectionAt(r3.Vec{X: 0.3, Y: 2})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(math.Abs(dir.X)-1) > 1e-12 || dir.Y != 0 || dir.Z != 0 {
		t.Errorf("got direction %v, want ±x", dir)
	}
	dir, err = field.DirectionAt(r3.Vec{X: 150, Y: -10.5})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(math.Abs(dir.Y)-1) > 1e-12 {
		t.Errorf("got direction %v past the strip end, want ±y", dir)
	}
}

func TestAlignVertex(t *testing.T) {
	field := strip(t)
	for _, test := range []struct {
		rule []int
		want r3.Vec
	}{
		// Ranked neighbors: (0,-1), (0,1), (1,0), (-1,0).
		{rule: []int{0}, want: r3.Vec{X: 0.1, Y: -0.45}},
		{rule: []int{-1}, want: r3.Vec{X: -0.4, Y: 0.05}},
		{rule: []int{3}, want: r3.Vec{X: -0.4, Y: 0.05}},
		{rule: []int{-4, 5}, want: r3.Vec{X: 0.2 / 3, Y: 0.1 / 3}},
	} {
		m := diamond(t, r3.Vec{X: 0.2, Y: 0.1}, 0)
		if !remesh.AlignVertex(m, 0, field, test.rule) {
			t.Fatalf("rule %v: vertex not aligned", test.rule)
		}
		if got := m.Position(0); r3.Norm(r3.Sub(got, test.want)) > 1e-12 {
			t.Errorf("rule %v: got %v, want %v", test.rule, got, test.want)
		}
	}
	m := diamond(t, r3.Vec{}, 0)
	for v := 1; v < 5; v++ {
		if remesh.AlignVertex(m, v, field, remesh.QuadRule) {
			t.Errorf("boundary vertex %d aligned", v)
		}
	}
}

func TestAlignVertexStaysTangent(t *testing.T) {
	// The rim is lifted so the neighbor mean lies straight above the
	// center, along its normal.
	m := diamond(t, r3.Vec{}, 1)
	remesh.AlignVertex(m, 0, strip(t), remesh.TriangleRule)
	if got := m.Position(0); r3.Norm(got) > 1e-12 {
		t.Errorf("vertex moved along its normal to %v", got)
	}
}

func TestDefaultEdgeLength(t *testing.T) {
	m := plane(t, 2, 2)
	if got, want := remesh.DefaultEdgeLength(m), 0.05*4/3; math.Abs(got-want) > 1e-12 {
		t.Errorf("DefaultEdgeLength: got %g, want %g", got, want)
	}
	got, err := remesh.EdgeLengthFromResolution(m, 10)
	if err != nil || math.Abs(got-0.2) > 1e-12 {
		t.Errorf("EdgeLengthFromResolution: got %g, %v", got, err)
	}
	if _, err := remesh.EdgeLengthFromResolution(m, 0.5); !errors.Is(err, remesh.ErrInvalidParameters) {
		t.Errorf("resolution below 1: got %v", err)
	}
}
