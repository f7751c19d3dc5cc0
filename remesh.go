// Package remesh implements isotropic, boundary aligned remeshing of open
// triangle and polygon meshes.
//
// A run repeatedly enforces an edge length band through local topology
// surgery, relaxes interior vertices so that edges follow the nearest
// boundary and reprojects them onto the input surface. Boundary vertices
// never move.
package remesh

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/soypat/remesh/mesh"
	"go.uber.org/zap"
)

// PassStats counts the work done by one pass. It is handed to
// Params.Progress after every pass.
type PassStats struct {
	Pass        int
	Subdivided  int
	Dissolved   int
	Collapsed   int
	Flipped     int
	Aligned     int
	Reprojected int
}

func (s PassStats) fields(m *mesh.Mesh) []zap.Field {
	return []zap.Field{
		zap.Int("pass", s.Pass),
		zap.Int("vertices", m.NumVertices()),
		zap.Int("faces", m.NumFaces()),
		zap.Int("subdivided", s.Subdivided),
		zap.Int("dissolved", s.Dissolved),
		zap.Int("collapsed", s.Collapsed),
		zap.Int("flipped", s.Flipped),
		zap.Int("aligned", s.Aligned),
		zap.Int("reprojected", s.Reprojected),
	}
}

// Remesh returns a remeshed copy of m. The input mesh is never modified.
//
// Parameter and topology errors are reported before any work is done:
// invalid parameters wrap ErrInvalidParameters, meshes that are not
// 2-manifolds wrap mesh.ErrDegenerateMesh and meshes without an open
// boundary wrap ErrNoBoundary. If ctx is cancelled the run stops between
// passes and the context error is returned.
func Remesh(ctx context.Context, m *mesh.Mesh, p Params) (*mesh.Mesh, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("remesh: nil mesh: %w", mesh.ErrDegenerateMesh)
	}
	if err := m.CheckManifold(); err != nil {
		return nil, fmt.Errorf("remesh: %w", err)
	}
	if p.Selection != nil {
		return remeshPartial(ctx, m, p)
	}
	return remeshWhole(ctx, m.Clone(), p)
}

// remeshWhole runs all passes on work, which is owned by the caller.
func remeshWhole(ctx context.Context, work *mesh.Mesh, p Params) (*mesh.Mesh, error) {
	field := NewBoundaryField(work)
	if field.Len() == 0 {
		return nil, fmt.Errorf("remesh: %w", ErrNoBoundary)
	}
	r := remesher{
		m:       work,
		surface: NewSurface(work),
		field:   field,
		rule:    p.rule(),
		log:     p.logger(),
	}
	r.lower, r.upper = p.Band()
	start := time.Now()
	for pass := 1; pass <= p.Iterations; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("remesh: stopped before pass %d: %w", pass, err)
		}
		stats := r.pass()
		stats.Pass = pass
		r.log.Debug("remesh pass", stats.fields(work)...)
		if p.Progress != nil {
			p.Progress(stats, work)
		}
	}
	joined := 0
	if p.Quads {
		joined = work.JoinTriangles(math.Pi, math.Pi)
	}
	r.log.Info("remesh done",
		zap.Int("iterations", p.Iterations),
		zap.Float64("target", p.TargetEdgeLength),
		zap.Int("vertices", work.NumVertices()),
		zap.Int("faces", work.NumFaces()),
		zap.Int("joined", joined),
		zap.Duration("elapsed", time.Since(start)),
	)
	return work, nil
}

type remesher struct {
	m            *mesh.Mesh
	surface      *Surface
	field        *BoundaryField
	rule         []int
	lower, upper float64
	log          *zap.Logger
}

// pass enforces the edge length band, then relaxes and reprojects.
func (r *remesher) pass() (s PassStats) {
	m := r.m
	s.Subdivided = m.SubdivideLongEdges(r.upper)
	m.Triangulate()
	s.Dissolved = m.DissolveLowValenceVertices(5)
	m.Triangulate()
	s.Collapsed = len(m.CollapseShortEdges(r.lower))
	s.Flipped = m.Beautify()
	s.Aligned = alignAll(m, r.field, r.rule)
	s.Reprojected = Reproject(m, r.surface)
	return s
}
