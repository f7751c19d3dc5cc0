package mesh

// DissolveLowValenceVertices removes every interior vertex with fewer
// than minValence incident edges. The faces around a removed vertex are
// merged into a single polygon which is then triangulated. Boundary
// vertices are never dissolved. Vertices whose surroundings can not be
// merged without breaking manifoldness are skipped. It returns the number
// of vertices removed.
func (m *Mesh) DissolveLowValenceVertices(minValence int) int {
	var candidates []int
	for v := range m.verts {
		if m.verts[v].alive && m.Valence(v) < minValence && !m.IsBoundaryVertex(v) {
			candidates = append(candidates, v)
		}
	}
	n := 0
	for _, v := range candidates {
		// Earlier dissolves change the valence of neighbors.
		if !m.verts[v].alive || m.Valence(v) >= minValence || m.IsBoundaryVertex(v) {
			continue
		}
		if m.dissolveVertex(v) {
			n++
		}
	}
	return n
}

func (m *Mesh) dissolveVertex(v int) bool {
	if len(m.verts[v].faces) == 0 {
		if len(m.verts[v].edges) != 0 {
			return false
		}
		m.killVertex(v)
		return true
	}
	poly, ok := m.vertexRing(v)
	if !ok || len(poly) < 3 {
		return false
	}
	for i, a := range poly {
		for _, b := range poly[:i] {
			if a == b {
				return false // pinched ring, merged face would not be simple.
			}
		}
	}
	if len(poly) == 3 && m.faceExists(poly) {
		return false
	}
	tris, ok := m.planPolygon(poly)
	if !ok {
		return false
	}
	ring := append([]int(nil), m.verts[v].faces...)
	for _, f := range ring {
		m.removeFace(f)
	}
	m.killVertex(v)
	for _, t := range tris {
		m.addFace(t[:])
	}
	return true
}

// vertexRing returns the polygon formed by the outer boundary of the faces
// around interior vertex v, with the same winding as those faces.
func (m *Mesh) vertexRing(v int) ([]int, bool) {
	faces := m.verts[v].faces
	// chains[i] runs from the vertex after v to the vertex before v in faces[i].
	chains := make([][]int, len(faces))
	for i, f := range faces {
		r := rotateTo(m.faces[f].v, v)
		if r == nil {
			return nil, false
		}
		chains[i] = r[1:]
	}
	used := make([]bool, len(faces))
	poly := make([]int, 0, 2*len(faces))
	cur := 0
	for range faces {
		used[cur] = true
		chain := chains[cur]
		poly = append(poly, chain[:len(chain)-1]...)
		last := chain[len(chain)-1]
		next := -1
		for j, c := range chains {
			if c[0] == last {
				if next >= 0 {
					return nil, false // non-manifold fan
				}
				next = j
			}
		}
		if next < 0 {
			return nil, false // open fan, v is on a boundary
		}
		if used[next] {
			if next != 0 || len(poly) == 0 {
				return nil, false
			}
			break
		}
		cur = next
	}
	for _, u := range used {
		if !u {
			return nil, false // more than one fan around v
		}
	}
	return poly, true
}

func (m *Mesh) faceExists(vs []int) bool {
	for _, f := range m.verts[vs[0]].faces {
		fv := m.faces[f].v
		if len(fv) != len(vs) {
			continue
		}
		all := true
		for _, v := range vs {
			if !containsInt(fv, v) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
