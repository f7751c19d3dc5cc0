// Command remesh rebuilds the triangles of an open STL surface so that all
// edges approach a target length and line up with the surface boundary.
//
//	remesh -i part.stl -length 0.5 -iterations 20 -png preview.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/soypat/remesh"
	"github.com/soypat/remesh/mesh"
	"github.com/soypat/remesh/render"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gonum.org/v1/gonum/spatial/r3"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, "remesh:", err)
		os.Exit(2)
	}
	log := newLogger(cfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, log); err != nil {
		log.Error("remesh failed", zap.Error(err))
		os.Exit(1)
	}
}

// newLogger logs human readable records to stderr and, if a log file is
// configured, JSON records to a rotated file.
func newLogger(cfg config) *zap.Logger {
	level := zap.InfoLevel
	if cfg.Verbose {
		level = zap.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
	if cfg.LogFile != "" {
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
		jsonCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), file, zap.DebugLevel)
		core = zapcore.NewTee(core, jsonCore)
	}
	return zap.New(core)
}

func run(ctx context.Context, cfg config, log *zap.Logger) error {
	start := time.Now()
	tris, err := render.LoadSTL(cfg.Input)
	if errors.Is(err, render.ErrNormalMismatch) {
		log.Warn("ignoring STL normals", zap.Error(err))
	} else if err != nil {
		return err
	}
	m, err := mesh.FromTriangles(tris, 0)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Input, err)
	}
	log.Info("loaded mesh",
		zap.String("file", cfg.Input),
		zap.Int("triangles", len(tris)),
		zap.Int("vertices", m.NumVertices()),
		zap.Int("faces", m.NumFaces()),
	)

	length := cfg.Length
	if length == 0 && cfg.Resolution > 0 {
		length, err = remesh.EdgeLengthFromResolution(m, cfg.Resolution)
		if err != nil {
			return err
		}
	}
	if length == 0 {
		length = remesh.DefaultEdgeLength(m)
		log.Info("using default edge length", zap.Float64("length", length))
	}
	params := remesh.Params{
		TargetEdgeLength: length,
		Iterations:       cfg.Iterations,
		Bias:             cfg.Bias,
		Quads:            cfg.Quads,
		Rule:             cfg.Rule,
		WeldDist:         cfg.Weld,
		Logger:           log,
	}
	if cfg.Region != nil {
		box := cfg.Region
		params.Selection = func(f int) bool {
			var c r3.Vec
			pts := m.FacePositions(f)
			for _, p := range pts {
				c = r3.Add(c, p)
			}
			return box.contains(r3.Scale(1/float64(len(pts)), c))
		}
	}
	out, err := remesh.Remesh(ctx, m, params)
	if err != nil {
		return err
	}

	lower, upper := params.Band()
	st := out.ComputeStats(lower, upper)
	log.Info("remeshed",
		zap.Int("vertices", st.Vertices),
		zap.Int("triangles", st.Triangles),
		zap.Int("quads", st.Quads),
		zap.Int("boundary_edges", st.BoundaryEdges),
		zap.Float64("min_edge", st.MinEdge),
		zap.Float64("mean_edge", st.MeanEdge),
		zap.Float64("max_edge", st.MaxEdge),
		zap.Float64("in_band", st.InBand),
	)

	output := cfg.output()
	if err := render.CreateSTL(output, out); err != nil {
		return err
	}
	log.Info("wrote STL", zap.String("file", output))
	if cfg.PNG != "" {
		if err := render.SavePNG(cfg.PNG, out, render.DefaultView()); err != nil {
			return err
		}
		log.Info("wrote preview", zap.String("file", cfg.PNG))
	}
	if cfg.Hist != "" {
		if err := render.SaveEdgeHistogram(cfg.Hist, out, lower, upper); err != nil {
			return err
		}
		log.Info("wrote histogram", zap.String("file", cfg.Hist))
	}
	log.Info("finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}
