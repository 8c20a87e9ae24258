package nanomesh

import (
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"
)

// PlotOptions configures mesh plotting.
type PlotOptions struct {
	Scale      float64 // pixels per image unit
	Margin     float64
	LineWidth  float64
	Fill       bool // fill triangles with their label color
	ShowLabels bool // write the label at the centroid of every triangle
}

// DefaultPlotOptions returns the options used by the command line tool.
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		Scale:     20,
		Margin:    10,
		LineWidth: 1,
		Fill:      true,
	}
}

type plotter struct {
	ctx    *gg.Context
	opts   PlotOptions
	offset float64
}

// xy maps a mesh point (row, col) to image coordinates.
func (pl *plotter) xy(p []float64) (float64, float64) {
	return pl.offset + p[1]*pl.opts.Scale, pl.offset + p[0]*pl.opts.Scale
}

func (pl *plotter) draw(m *Mesh) {
	ctx := pl.ctx
	labels := m.Labels(Triangle)
	for i, cell := range m.Cells[Triangle] {
		ctx.Push()
		x0, y0 := pl.xy(m.Points[cell[0]])
		x1, y1 := pl.xy(m.Points[cell[1]])
		x2, y2 := pl.xy(m.Points[cell[2]])
		ctx.MoveTo(x0, y0)
		ctx.LineTo(x1, y1)
		ctx.LineTo(x2, y2)
		ctx.ClosePath()

		if pl.opts.Fill && i < len(labels) {
			ctx.SetFillStyle(gg.NewSolidPattern(LabelColor(labels[i])))
			ctx.FillPreserve()
		}
		ctx.SetStrokeStyle(gg.NewSolidPattern(color.RGBA{R: 40, G: 40, B: 40, A: 160}))
		ctx.SetLineWidth(pl.opts.LineWidth)
		ctx.Stroke()

		if pl.opts.ShowLabels && i < len(labels) {
			ctx.SetColor(color.Black)
			ctx.DrawStringAnchored(strconv.Itoa(labels[i]), (x0+x1+x2)/3, (y0+y1+y2)/3, 0.5, 0.5)
		}
		ctx.Pop()
	}

	ctx.SetStrokeStyle(gg.NewSolidPattern(color.RGBA{R: 200, G: 30, B: 30, A: 255}))
	ctx.SetLineWidth(2 * pl.opts.LineWidth)
	for _, cell := range m.Cells[Line] {
		x0, y0 := pl.xy(m.Points[cell[0]])
		x1, y1 := pl.xy(m.Points[cell[1]])
		ctx.DrawLine(x0, y0, x1, y1)
		ctx.Stroke()
	}
}

// Plot draws the triangle and line cells of a 2D mesh.
func Plot(m *Mesh, opts PlotOptions) (image.Image, error) {
	if m.Dim() != 2 {
		return nil, errors.Errorf("cannot plot %d dimensional mesh", m.Dim())
	}
	if opts.Scale <= 0 {
		opts.Scale = DefaultPlotOptions().Scale
	}
	var rows, cols float64
	for _, p := range m.Points {
		rows, cols = math.Max(rows, p[0]), math.Max(cols, p[1])
	}
	width := int(math.Ceil(cols*opts.Scale + 2*opts.Margin))
	height := int(math.Ceil(rows*opts.Scale + 2*opts.Margin))

	ctx := gg.NewContext(Max(width, 1), Max(height, 1))
	ctx.SetRGB(1, 1, 1)
	ctx.Clear()
	ctx.SetFontFace(basicfont.Face7x13)

	pl := &plotter{ctx: ctx, opts: opts, offset: opts.Margin}
	pl.draw(m)
	return ctx.Image(), nil
}

// CompareWithImage draws the mesh wireframe over the plane, upscaled by an
// integer factor. Pixel centres of the plane line up with mesh coordinates.
func CompareWithImage(m *Mesh, p *Plane, scale int) (image.Image, error) {
	if m.Dim() != 2 {
		return nil, errors.Errorf("cannot plot %d dimensional mesh", m.Dim())
	}
	if scale < 1 {
		return nil, errors.Errorf("invalid scale %d", scale)
	}

	lo, hi := Min(p.Data...), Max(p.Data...)
	gray := image.NewGray(image.Rect(0, 0, p.Cols, p.Rows))
	for r := 0; r < p.Rows; r++ {
		for c := 0; c < p.Cols; c++ {
			v := 0.0
			if hi > lo {
				v = (p.At(r, c) - lo) / (hi - lo)
			}
			gray.Pix[r*gray.Stride+c] = uint8(v * 255)
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, p.Cols*scale, p.Rows*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), gray, gray.Bounds(), draw.Src, nil)

	ctx := gg.NewContextForRGBA(dst)
	ctx.SetFontFace(basicfont.Face7x13)
	opts := PlotOptions{Scale: float64(scale), LineWidth: 1}
	pl := &plotter{ctx: ctx, opts: opts, offset: 0.5 * float64(scale)}
	pl.draw(m)
	return ctx.Image(), nil
}
