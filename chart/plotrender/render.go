// Package plotrender draws chart descriptors to PNG files with gonum/plot.
//
// Scatter traces become point or line plotters and heatmap traces a heat map
// with nominal axes. Other trace types are skipped with a debug log.
package plotrender

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/ecgstudio/chart"
	"github.com/YuminosukeSato/ecgstudio/core/parallel"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/pkg/log"
)

// Default image size.
const (
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

// Renderer writes one PNG per chart into a directory.
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
	logger log.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSize sets the image size.
func WithSize(width, height vg.Length) Option {
	return func(r *Renderer) {
		r.width = width
		r.height = height
	}
}

// WithLogger sets the logger used for skipped traces.
func WithLogger(logger log.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// New returns a renderer writing into dir.
func New(dir string, opts ...Option) *Renderer {
	r := &Renderer{
		dir:    dir,
		width:  DefaultWidth,
		height: DefaultHeight,
		logger: log.GetLoggerWithName("plotrender"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the file a chart named name is written to.
func (r *Renderer) Path(name string) string {
	return filepath.Join(r.dir, fileName(name)+".png")
}

// Render implements chart.Renderer.
func (r *Renderer) Render(name string, d chart.Descriptor) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return errors.Wrap(err, "plotrender: create output directory")
	}
	f, err := os.Create(r.Path(name))
	if err != nil {
		return errors.Wrapf(err, "plotrender: create %s", name)
	}
	if err := r.WritePNG(f, d); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// parallelThreshold is the chart count above which RenderSet uses workers.
const parallelThreshold = 2

// RenderSet renders every chart of s, concurrently for larger sets. Like
// chart.RenderAll, a failing chart does not stop the others.
func (r *Renderer) RenderSet(s chart.Set) error {
	keys := s.Keys()
	return parallel.ForEachWithThreshold(len(keys), parallelThreshold, func(i int) error {
		return errors.Wrapf(r.Render(keys[i], s[keys[i]]), "render %s", keys[i])
	})
}

// WritePNG draws d and writes the PNG encoding to w.
func (r *Renderer) WritePNG(w io.Writer, d chart.Descriptor) error {
	p, err := r.Plot(d)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(r.width, r.height, "png")
	if err != nil {
		return errors.Wrap(err, "plotrender: encode png")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "plotrender: write png")
}

// Plot builds the gonum plot for d without encoding it.
func (r *Renderer) Plot(d chart.Descriptor) (*plot.Plot, error) {
	var traces []trace
	if data := bytes.TrimSpace(d.Data); len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, &traces); err != nil {
			return nil, errors.Wrap(err, "plotrender: decode traces")
		}
	}
	var lay layout
	if raw := bytes.TrimSpace(d.Layout); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &lay); err != nil {
			return nil, errors.Wrap(err, "plotrender: decode layout")
		}
	}

	p := plot.New()
	p.Title.Text = lay.Title.Text
	p.X.Label.Text = lay.XAxis.Title.Text
	p.Y.Label.Text = lay.YAxis.Title.Text

	for i, tr := range traces {
		var err error
		switch tr.Type {
		case "", "scatter", "scattergl":
			err = addScatter(p, i, tr)
		case "heatmap":
			err = addHeatMap(p, tr)
		default:
			r.logger.Debug("skipping unsupported trace", "trace.type", tr.Type, "trace.index", i)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "plotrender: trace %d", i)
		}
	}
	return p, nil
}

func addScatter(p *plot.Plot, i int, tr trace) error {
	xs, err := decodeSeries(tr.X)
	if err != nil {
		return err
	}
	ys, err := decodeSeries(tr.Y)
	if err != nil {
		return err
	}
	if ys.labels != nil {
		return errors.New("categorical y values are not supported")
	}
	// x may be omitted or categorical; fall back to the sample index
	pts := make(plotter.XYs, 0, len(ys.values))
	for j, y := range ys.values {
		x := float64(j)
		if xs.labels == nil && j < len(xs.values) {
			x = xs.values[j]
		}
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	if len(pts) == 0 {
		return nil
	}

	color := plotutil.Color(i)
	var thumb plot.Thumbnailer
	if strings.Contains(tr.Mode, "lines") {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = color
		p.Add(line)
		thumb = line
	}
	if tr.Mode == "" || strings.Contains(tr.Mode, "markers") {
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		thumb = sc
	}
	if tr.Name != "" && thumb != nil {
		p.Legend.Add(tr.Name, thumb)
	}
	return nil
}

type grid struct {
	z [][]float64
}

func (g grid) Dims() (c, r int)   { return len(g.z[0]), len(g.z) }
func (g grid) Z(c, r int) float64 { return g.z[r][c] }
func (g grid) X(c int) float64    { return float64(c) }
func (g grid) Y(r int) float64    { return float64(r) }

func addHeatMap(p *plot.Plot, tr trace) error {
	z, err := decodeMatrix(tr.Z)
	if err != nil {
		return err
	}
	if len(z) == 0 || len(z[0]) == 0 {
		return nil
	}
	hm := plotter.NewHeatMap(grid{z: z}, palette.Heat(12, 1))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	if xs, err := decodeSeries(tr.X); err == nil && xs.len() == len(z[0]) {
		p.NominalX(seriesLabels(xs)...)
	}
	if ys, err := decodeSeries(tr.Y); err == nil && ys.len() == len(z) {
		p.NominalY(seriesLabels(ys)...)
	}
	return nil
}

func seriesLabels(s series) []string {
	if s.labels != nil {
		return s.labels
	}
	out := make([]string, len(s.values))
	for i, v := range s.values {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
