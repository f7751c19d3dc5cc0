package remesh

import (
	"fmt"
	"math"

	"github.com/soypat/remesh/internal/d3"
	"github.com/soypat/remesh/mesh"
	"go.uber.org/zap"
)

// DefaultWeldDistance is the distance under which border vertices of a
// remeshed region are fused with the untouched rest of the mesh.
const DefaultWeldDistance = 1e-5

// Params configures a remesh run. The zero value is not valid; at least
// TargetEdgeLength and Iterations must be set.
type Params struct {
	// TargetEdgeLength is the desired length of every edge.
	TargetEdgeLength float64
	// Iterations is the fixed number of passes performed.
	Iterations int
	// Bias sets the accepted edge length band to
	// [TargetEdgeLength*(1-Bias), TargetEdgeLength*(1+Bias)]. Must be in [0,1).
	Bias float64
	// Quads joins triangle pairs into quads after the last pass.
	Quads bool
	// Rule overrides the neighbor rank rule used for relaxation.
	// If nil QuadRule or TriangleRule is used depending on Quads.
	Rule []int
	// Selection restricts remeshing to the faces for which it returns true.
	// Nil remeshes the whole mesh.
	Selection func(face int) bool
	// WeldDist is used in partial-region mode. Zero means DefaultWeldDistance.
	WeldDist float64
	// Logger receives one debug record per pass. Nil disables logging.
	Logger *zap.Logger
	// Progress is called after each pass with the work the pass did and
	// the working mesh. It must not modify the mesh.
	Progress func(stats PassStats, m *mesh.Mesh)
}

// Validate checks the parameters. Returned errors wrap ErrInvalidParameters.
func (p Params) Validate() error {
	switch {
	case !(p.TargetEdgeLength > 0) || math.IsInf(p.TargetEdgeLength, 0):
		return fmt.Errorf("%w: target edge length must be positive, got %g", ErrInvalidParameters, p.TargetEdgeLength)
	case p.Iterations <= 0:
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidParameters, p.Iterations)
	case !(p.Bias >= 0 && p.Bias < 1):
		return fmt.Errorf("%w: bias must be in [0,1), got %g", ErrInvalidParameters, p.Bias)
	case p.WeldDist < 0 || math.IsNaN(p.WeldDist):
		return fmt.Errorf("%w: negative weld distance %g", ErrInvalidParameters, p.WeldDist)
	case p.Rule != nil && len(p.Rule) == 0:
		return fmt.Errorf("%w: empty relaxation rule", ErrInvalidParameters)
	}
	return nil
}

// Band returns the accepted edge length interval.
func (p Params) Band() (lower, upper float64) {
	return p.TargetEdgeLength * (1 - p.Bias), p.TargetEdgeLength * (1 + p.Bias)
}

func (p Params) rule() []int {
	switch {
	case p.Rule != nil:
		return p.Rule
	case p.Quads:
		return QuadRule
	}
	return TriangleRule
}

func (p Params) weldDist() float64 {
	if p.WeldDist == 0 {
		return DefaultWeldDistance
	}
	return p.WeldDist
}

func (p Params) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// DefaultEdgeLength returns 5% of the mean bounding box dimension of m.
func DefaultEdgeLength(m *mesh.Mesh) float64 {
	return 0.05 * d3.Mean(d3.Box(m.Bounds()).Size())
}

// EdgeLengthFromResolution returns the edge length that divides the
// largest bounding box dimension of m into resolution segments.
func EdgeLengthFromResolution(m *mesh.Mesh, resolution float64) (float64, error) {
	if !(resolution >= 1) {
		return 0, fmt.Errorf("%w: resolution must be at least 1, got %g", ErrInvalidParameters, resolution)
	}
	return d3.Max(d3.Box(m.Bounds()).Size()) / resolution, nil
}
