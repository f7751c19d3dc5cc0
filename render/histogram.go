package render

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/soypat/remesh/mesh"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const histogramBins = 40

// EdgeHistogram plots the distribution of edge lengths with the accepted
// band [lower, upper] marked by vertical lines. A zero band is not drawn.
func EdgeHistogram(lengths []float64, lower, upper float64) (*plot.Plot, error) {
	if len(lengths) == 0 {
		return nil, errors.New("render: no edge lengths to plot")
	}
	h, err := plotter.NewHist(plotter.Values(lengths), histogramBins)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = "Edge lengths"
	p.X.Label.Text = "length"
	p.Y.Label.Text = "edges"
	p.Add(h)
	if upper > 0 {
		top := 0.0
		for _, b := range h.Bins {
			if b.Weight > top {
				top = b.Weight
			}
		}
		for _, x := range []float64{lower, upper} {
			l, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: top}})
			if err != nil {
				return nil, err
			}
			l.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(l)
		}
	}
	return p, nil
}

// WriteEdgeHistogram writes the edge length histogram of m to w in the
// given image format ("png", "svg", "pdf", ...).
func WriteEdgeHistogram(w io.Writer, format string, m *mesh.Mesh, lower, upper float64) error {
	p, err := EdgeHistogram(m.EdgeLengths(), lower, upper)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("render: histogram: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveEdgeHistogram writes the edge length histogram of m to path. The
// image format is taken from the file extension.
func SaveEdgeHistogram(path string, m *mesh.Mesh, lower, upper float64) error {
	p, err := EdgeHistogram(m.EdgeLengths(), lower, upper)
	if err != nil {
		return err
	}
	if strings.TrimPrefix(filepath.Ext(path), ".") == "" {
		return fmt.Errorf("render: %q has no file extension", path)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
