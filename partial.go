package remesh

import (
	"context"
	"fmt"
	"sort"

	"github.com/soypat/remesh/mesh"
	"github.com/soypat/remesh/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

// remeshPartial remeshes the faces picked by p.Selection and stitches the
// result back into the untouched rest of m.
func remeshPartial(ctx context.Context, m *mesh.Mesh, p Params) (*mesh.Mesh, error) {
	region, rest, err := m.Split(p.Selection)
	if err != nil {
		return nil, fmt.Errorf("remesh: splitting selection: %w", err)
	}
	if region.NumFaces() == 0 {
		p.logger().Warn("remesh: empty selection, nothing to do")
		return m.Clone(), nil
	}
	out, err := remeshWhole(ctx, region, p)
	if err != nil {
		return nil, err
	}
	if rest.NumFaces() == 0 {
		return out, nil
	}
	return Stitch(out, rest, p.weldDist())
}

// Stitch merges a remeshed region back into the rest of a mesh. Region
// border vertices that lie inside a border edge of rest are first inserted
// into that edge, then every region border vertex within dist of a rest
// vertex is welded to it. Rest vertices keep their positions. Neither
// argument is modified.
func Stitch(region, rest *mesh.Mesh, dist float64) (*mesh.Mesh, error) {
	rest = rest.Clone()
	insertSeamVertices(rest, region, dist)

	var positions []r3.Vec
	var faces [][]int
	restIdx := make(map[int]int, rest.NumVertices())
	var border []spatial.Point
	for _, v := range rest.Vertices() {
		restIdx[v] = len(positions)
		if rest.IsBoundaryVertex(v) {
			border = append(border, spatial.Point{Pos: rest.Position(v), Index: len(positions)})
		}
		positions = append(positions, rest.Position(v))
	}
	for _, f := range rest.Faces() {
		faces = append(faces, remap(rest.FaceVertices(f), restIdx))
	}

	tree := spatial.NewKDTree(border)
	regionIdx := make(map[int]int, region.NumVertices())
	for _, v := range region.Vertices() {
		pos := region.Position(v)
		if region.IsBoundaryVertex(v) {
			near, d, err := tree.Nearest(pos)
			if err == nil && d <= dist {
				regionIdx[v] = near.Index
				continue
			}
		}
		regionIdx[v] = len(positions)
		positions = append(positions, pos)
	}
	for _, f := range region.Faces() {
		poly := remap(region.FaceVertices(f), regionIdx)
		if hasRepeats(poly) {
			continue
		}
		faces = append(faces, poly)
	}
	merged, err := mesh.New(positions, faces)
	if err != nil {
		return nil, fmt.Errorf("remesh: stitching region: %w", err)
	}
	return merged, nil
}

// insertSeamVertices splits border edges of rest at region border vertices
// that lie on them, so both sides of the seam share the same vertices.
func insertSeamVertices(rest, region *mesh.Mesh, dist float64) int {
	type segment struct{ a, b int }
	var segs []segment
	var mids []spatial.Point
	maxHalf := 0.0
	for _, e := range rest.Edges() {
		if !rest.IsBoundaryEdge(e) {
			continue
		}
		ev := rest.EdgeVertices(e)
		pa, pb := rest.Position(ev[0]), rest.Position(ev[1])
		mids = append(mids, spatial.Point{Pos: r3.Scale(0.5, r3.Add(pa, pb)), Index: len(segs)})
		segs = append(segs, segment{a: ev[0], b: ev[1]})
		if h := r3.Norm(r3.Sub(pb, pa)) / 2; h > maxHalf {
			maxHalf = h
		}
	}
	if len(segs) == 0 {
		return 0
	}
	tree := spatial.NewKDTree(mids)
	cuts := make(map[segment][]r3.Vec)
	for _, v := range region.Vertices() {
		if !region.IsBoundaryVertex(v) {
			continue
		}
		q := region.Position(v)
		cands, err := tree.Within(q, maxHalf+dist)
		if err != nil {
			continue
		}
		for _, c := range cands {
			s := segs[c.Index]
			if onSegmentInterior(q, rest.Position(s.a), rest.Position(s.b), dist) {
				cuts[s] = append(cuts[s], q)
				break
			}
		}
	}
	keys := make([]segment, 0, len(cuts))
	for s := range cuts {
		keys = append(keys, s)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})
	n := 0
	for _, s := range keys {
		added, ok := rest.SplitEdgeAt(s.a, s.b, cuts[s])
		if ok {
			n += len(added)
		}
	}
	return n
}

// onSegmentInterior reports whether q lies within dist of segment ab
// while being farther than dist from both endpoints.
func onSegmentInterior(q, a, b r3.Vec, dist float64) bool {
	if r3.Norm(r3.Sub(q, a)) <= dist || r3.Norm(r3.Sub(q, b)) <= dist {
		return false
	}
	ab := r3.Sub(b, a)
	l2 := r3.Dot(ab, ab)
	if l2 == 0 {
		return false
	}
	t := r3.Dot(r3.Sub(q, a), ab) / l2
	if t <= 0 || t >= 1 {
		return false
	}
	closest := r3.Add(a, r3.Scale(t, ab))
	return r3.Norm(r3.Sub(q, closest)) <= dist
}

func remap(vs []int, idx map[int]int) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = idx[v]
	}
	return out
}

func hasRepeats(vs []int) bool {
	for i := range vs {
		for j := i + 1; j < len(vs); j++ {
			if vs[i] == vs[j] {
				return true
			}
		}
	}
	return false
}
