package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/soypat/remesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// config holds every CLI option. It can be loaded from a YAML file given
// with -config; flags given on the command line take precedence.
type config struct {
	Config     string  `yaml:"-"`
	Input      string  `yaml:"input"`
	Output     string  `yaml:"output"`
	Length     float64 `yaml:"length"`
	Resolution float64 `yaml:"resolution"`
	Iterations int     `yaml:"iterations"`
	Bias       float64 `yaml:"bias"`
	Quads      bool    `yaml:"quads"`
	Rule       intList `yaml:"rule"`
	Weld       float64 `yaml:"weld"`
	Region     *region `yaml:"region"`
	PNG        string  `yaml:"png"`
	Hist       string  `yaml:"hist"`
	LogFile    string  `yaml:"log_file"`
	Verbose    bool    `yaml:"verbose"`
}

func defaultConfig() config {
	return config{
		Iterations: 30,
		Bias:       0.3,
	}
}

func (c config) validate() error {
	if c.Input == "" {
		return errors.New("no input STL file given")
	}
	if c.Length < 0 || c.Resolution < 0 {
		return errors.New("length and resolution must not be negative")
	}
	return nil
}

func (c config) output() string {
	if c.Output != "" {
		return c.Output
	}
	return strings.TrimSuffix(c.Input, ".stl") + "_remesh.stl"
}

func newFlagSet(c *config) *flag.FlagSet {
	fs := flag.NewFlagSet("remesh", flag.ContinueOnError)
	fs.StringVar(&c.Config, "config", c.Config, "YAML file with options. Flags override its values")
	fs.StringVar(&c.Input, "i", c.Input, "input STL `file`")
	fs.StringVar(&c.Output, "o", c.Output, "output STL `file`. Defaults to the input name with a _remesh suffix")
	fs.Float64Var(&c.Length, "length", c.Length, "target edge length. Zero picks 5% of the mean bounding box size")
	fs.Float64Var(&c.Resolution, "resolution", c.Resolution, "edges across the largest bounding box dimension, used when -length is not set")
	fs.IntVar(&c.Iterations, "iterations", c.Iterations, "number of passes")
	fs.Float64Var(&c.Bias, "bias", c.Bias, "accepted relative edge length deviation in [0,1)")
	fs.BoolVar(&c.Quads, "quads", c.Quads, "join triangle pairs into quads after the last pass")
	fs.Var(&c.Rule, "rule", "comma separated neighbor ranks used for relaxation, e.g. -1,-2,0,1")
	fs.Float64Var(&c.Weld, "weld", c.Weld, "weld distance used when stitching a region back")
	fs.Var(regionFlag{&c.Region}, "region", "only remesh faces whose centroid lies in the box `x0,y0,z0,x1,y1,z1`")
	fs.StringVar(&c.PNG, "png", c.PNG, "write a shaded preview of the result to this PNG `file`")
	fs.StringVar(&c.Hist, "hist", c.Hist, "write an edge length histogram to this `file` (png, svg or pdf)")
	fs.StringVar(&c.LogFile, "log", c.LogFile, "also write JSON logs to this rotated `file`")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "log every pass")
	return fs
}

// parseConfig parses args. If a config file is named its values replace
// the defaults and args are parsed again on top of them.
func parseConfig(args []string) (config, error) {
	cfg := defaultConfig()
	fs := newFlagSet(&cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.Config != "" {
		fileCfg, err := loadConfigFile(cfg.Config)
		if err != nil {
			return cfg, err
		}
		fileCfg.Config = cfg.Config
		fs = newFlagSet(&fileCfg)
		if err := fs.Parse(args); err != nil {
			return cfg, err
		}
		cfg = fileCfg
	}
	if cfg.Input == "" && fs.NArg() > 0 {
		cfg.Input = fs.Arg(0)
	}
	return cfg, cfg.validate()
}

func loadConfigFile(path string) (config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

type intList []int

func (l *intList) String() string {
	if l == nil {
		return ""
	}
	s := make([]string, len(*l))
	for i, v := range *l {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ",")
}

func (l *intList) Set(s string) error {
	var out intList
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// region is an axis aligned box.
type region struct {
	Min [3]float64 `yaml:"min"`
	Max [3]float64 `yaml:"max"`
}

func (r *region) contains(p r3.Vec) bool {
	box := d3.Box{
		Min: r3.Vec{X: r.Min[0], Y: r.Min[1], Z: r.Min[2]},
		Max: r3.Vec{X: r.Max[0], Y: r.Max[1], Z: r.Max[2]},
	}
	return box.Contains(p)
}

type regionFlag struct{ r **region }

func (f regionFlag) String() string {
	if f.r == nil || *f.r == nil {
		return ""
	}
	r := *f.r
	return fmt.Sprintf("%g,%g,%g,%g,%g,%g", r.Min[0], r.Min[1], r.Min[2], r.Max[0], r.Max[1], r.Max[2])
}

func (f regionFlag) Set(s string) error {
	fields := strings.Split(s, ",")
	if len(fields) != 6 {
		return errors.New("want 6 comma separated numbers")
	}
	var v [6]float64
	for i, fl := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(fl), 64)
		if err != nil {
			return err
		}
		v[i] = x
	}
	*f.r = &region{Min: [3]float64{v[0], v[1], v[2]}, Max: [3]float64{v[3], v[4], v[5]}}
	return nil
}
