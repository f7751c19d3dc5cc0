package mesh

import "gonum.org/v1/gonum/spatial/r3"

// Split partitions the faces of m into two new meshes: the faces for which
// selected returns true and the rest. Vertices used by both sets are
// duplicated so the two meshes share no elements. Vertex handles of the
// results are compacted.
func (m *Mesh) Split(selected func(f int) bool) (in, out *Mesh, err error) {
	var inFaces, outFaces []int
	for f := range m.faces {
		if !m.faces[f].alive {
			continue
		}
		if selected(f) {
			inFaces = append(inFaces, f)
		} else {
			outFaces = append(outFaces, f)
		}
	}
	in, err = m.subMesh(inFaces)
	if err != nil {
		return nil, nil, err
	}
	out, err = m.subMesh(outFaces)
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

func (m *Mesh) subMesh(faces []int) (*Mesh, error) {
	if len(faces) == 0 {
		return &Mesh{}, nil
	}
	remap := make(map[int]int)
	var positions []r3.Vec
	polys := make([][]int, len(faces))
	for i, f := range faces {
		fv := m.faces[f].v
		poly := make([]int, len(fv))
		for j, v := range fv {
			nv, ok := remap[v]
			if !ok {
				nv = len(positions)
				remap[v] = nv
				positions = append(positions, m.verts[v].pos)
			}
			poly[j] = nv
		}
		polys[i] = poly
	}
	return New(positions, polys)
}
