package nanomesh

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// blockImage returns an image with the top left and bottom right quadrants set to 1.
func blockImage(rows, cols int) *Plane {
	p, _ := NewPlane(rows, cols)
	i, j := rows/2, cols/2
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if (r < i && c < j) || (r >= rows-i && c >= cols-j) {
				p.Data[r*cols+c] = 1
			}
		}
	}
	return p
}

func TestPlaneFromRows(t *testing.T) {
	tests := []struct {
		name string
		rows [][]float64
		err  error
	}{
		{"valid", [][]float64{{1, 2}, {3, 4}}, nil},
		{"empty", nil, ErrInvalidImageShape},
		{"empty row", [][]float64{{}}, ErrInvalidImageShape},
		{"ragged", [][]float64{{1, 2}, {3}}, ErrInvalidImageShape},
	}
	for _, tt := range tests {
		p, err := PlaneFromRows(tt.rows)
		if !errors.Is(err, tt.err) {
			t.Fatalf("%s: got error %v, want %v", tt.name, err, tt.err)
		}
		if err == nil && (p.Rows != len(tt.rows) || p.At(1, 0) != 3) {
			t.Errorf("%s: unexpected plane %+v", tt.name, p)
		}
	}
}

func TestPlaneLabels(t *testing.T) {
	p, _ := PlaneFromRows([][]float64{{2, 0, 2}, {1, 0, 5}})
	got := p.Labels()
	want := []int{0, 1, 2, 5}
	if len(got) != len(want) {
		t.Fatalf("got labels %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got labels %v, want %v", got, want)
		}
	}
	if !p.Mask(2).EqualData([]float64{1, 0, 1, 0, 0, 0}) {
		t.Errorf("unexpected mask %v", p.Mask(2).Data)
	}
}

func TestPlaneApply(t *testing.T) {
	p := blockImage(4, 4)

	res, err := p.Apply(func(q *Plane) any { return q.Map(func(v float64) float64 { return 1 - v }) })
	if err != nil {
		t.Fatal(err)
	}
	inv, ok := res.(*Plane)
	if !ok {
		t.Fatalf("got %T, want *Plane", res)
	}
	if inv.At(0, 0) != 0 || inv.At(0, 3) != 1 {
		t.Errorf("unexpected inverted plane %v", inv.Data)
	}

	res, err = p.Apply(func(q *Plane) any { return [][]float64{{1, 2, 3}} })
	if err != nil {
		t.Fatal(err)
	}
	if rows, ok := res.(*Plane); !ok || rows.Cols != 3 {
		t.Errorf("got %v, want a 1x3 plane", res)
	}

	res, err = p.Apply(func(q *Plane) any {
		sum := 0.0
		for _, v := range q.Data {
			sum += v
		}
		return sum
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.(float64) != 8 {
		t.Errorf("got sum %v, want 8", res)
	}
	if p.At(0, 0) != 1 {
		t.Error("apply must not modify the plane")
	}
}

func TestPlaneCrop(t *testing.T) {
	p, _ := PlaneFromRows([][]float64{
		{0, 1, 2, 3},
		{4, 5, 6, 7},
		{8, 9, 10, 11},
	})
	c, err := p.Crop(1, 3, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if c.Rows != 2 || c.Cols != 2 || !c.EqualData([]float64{5, 6, 9, 10}) {
		t.Errorf("unexpected crop %+v", c)
	}
	if _, err := p.Crop(0, 5, 3, 0); !errors.Is(err, ErrInvalidImageShape) {
		t.Errorf("got %v, want ErrInvalidImageShape", err)
	}

	b, err := p.CropToBox([]r2.Vec{{X: 2, Y: 3}, {X: 0, Y: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if !b.EqualData([]float64{1, 2, 5, 6}) {
		t.Errorf("unexpected box crop %v", b.Data)
	}
}

func TestPlaneDigitize(t *testing.T) {
	p, _ := PlaneFromRows([][]float64{{0, 1, 2, 3, 4}})
	if got := p.Digitize([]float64{1, 3}); !got.EqualData([]float64{0, 1, 1, 2, 2}) {
		t.Errorf("digitize got %v", got.Data)
	}
	if got := p.BinaryDigitize(2); !got.EqualData([]float64{0, 0, 1, 1, 1}) {
		t.Errorf("binary digitize got %v", got.Data)
	}
}

func TestPlaneOtsuThreshold(t *testing.T) {
	p, _ := PlaneFromRows([][]float64{{10, 10, 12, 200, 202, 205}})
	th := p.OtsuThreshold()
	if th <= 12 || th > 200 {
		t.Fatalf("threshold %v does not separate the two classes", th)
	}
	if got := p.BinaryDigitize(th); !got.EqualData([]float64{0, 0, 0, 1, 1, 1}) {
		t.Errorf("got %v", got.Data)
	}
}

func TestPlaneLiThreshold(t *testing.T) {
	for _, tc := range []struct {
		name   string
		rows   [][]float64
		lo, hi float64
	}{
		{"bimodal", [][]float64{{10, 10, 12, 200, 202, 205}}, 12, 200},
		{"offset", [][]float64{{-50, -48, -47}, {150, 152, 160}}, -47, 150},
		{"zero background", [][]float64{{0, 0, 0, 100}}, 0, 100},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := PlaneFromRows(tc.rows)
			th := p.LiThreshold()
			if th <= tc.lo || th >= tc.hi {
				t.Errorf("threshold %v outside (%v, %v)", th, tc.lo, tc.hi)
			}
		})
	}

	p, _ := PlaneFromRows([][]float64{{7, 7}, {7, 7}})
	if th := p.LiThreshold(); th != 7 {
		t.Errorf("constant plane threshold %v, want 7", th)
	}
}

func TestPlaneGaussian(t *testing.T) {
	flat, _ := PlaneFromRows([][]float64{{3, 3, 3}, {3, 3, 3}, {3, 3, 3}})
	for i, v := range flat.Gaussian(1.5).Data {
		if math.Abs(v-3) > 1e-12 {
			t.Fatalf("pixel %d: constant plane changed to %v", i, v)
		}
	}

	p, _ := NewPlane(7, 7)
	p.Data[3*7+3] = 1
	if !p.Gaussian(0).Equal(p) {
		t.Error("zero sigma changed the plane")
	}
	g := p.Gaussian(1)
	center := g.At(3, 3)
	if center >= 1 || center <= 0 {
		t.Errorf("center %v not smoothed", center)
	}
	for _, n := range [][2]int{{2, 3}, {4, 3}, {3, 2}, {3, 4}} {
		if v := g.At(n[0], n[1]); v >= center || math.Abs(v-g.At(2, 3)) > 1e-12 {
			t.Errorf("neighbour %v = %v, center %v", n, v, center)
		}
	}
	if g.At(2, 2) >= g.At(2, 3) {
		t.Errorf("diagonal %v not below edge neighbour %v", g.At(2, 2), g.At(2, 3))
	}
}

func TestPlaneFFT(t *testing.T) {
	ones, _ := PlaneFromRows([][]float64{{1, 1, 1}, {1, 1, 1}})
	f := ones.FFT()
	if f.Rows != 2 || f.Cols != 3 {
		t.Fatalf("shape %dx%d", f.Rows, f.Cols)
	}
	for i, v := range f.Data {
		want := 0.0
		if i == 0 {
			want = 6
		}
		if math.Abs(v-want) > 1e-9 {
			t.Errorf("coefficient %d = %v, want %v", i, v, want)
		}
	}

	impulse, _ := NewPlane(4, 4)
	impulse.Data[5] = 2
	for i, v := range impulse.FFT().Data {
		if math.Abs(v-2) > 1e-9 {
			t.Errorf("impulse coefficient %d = %v, want 2", i, v)
		}
	}
}

func TestPlaneClearBorder(t *testing.T) {
	p, _ := PlaneFromRows([][]float64{
		{1, 0, 0, 0, 0},
		{0, 1, 0, 0, 0},
		{0, 0, 0, 1, 0},
		{0, 0, 0, 0, 0},
	})
	got := p.ClearBorder(1, 0)
	want := []float64{
		0, 0, 0, 0, 0,
		0, 0, 0, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 0,
	}
	if !got.EqualData(want) {
		t.Errorf("got %v, want %v", got.Data, want)
	}
}

func TestPlaneCompare(t *testing.T) {
	a, _ := PlaneFromRows([][]float64{{1, 2, 3}})
	b, _ := PlaneFromRows([][]float64{{2, 2, 2}})
	tests := []struct {
		op   CompareOp
		want []float64
	}{
		{Greater, []float64{0, 0, 1}},
		{GreaterEqual, []float64{0, 1, 1}},
		{Less, []float64{1, 0, 0}},
		{LessEqual, []float64{1, 1, 0}},
	}
	for _, tt := range tests {
		got, err := a.Compare(b, tt.op)
		if err != nil {
			t.Fatal(err)
		}
		if !got.EqualData(tt.want) {
			t.Errorf("op %d: got %v, want %v", tt.op, got.Data, tt.want)
		}
	}
	if ok, _ := a.Compare(a, GreaterEqual); !ok.All() {
		t.Error("a >= a must hold everywhere")
	}
	c, _ := PlaneFromRows([][]float64{{1}, {2}})
	if _, err := a.Compare(c, Less); !errors.Is(err, ErrInvalidImageShape) {
		t.Errorf("got %v, want ErrInvalidImageShape", err)
	}
}

func TestFilterPipeline(t *testing.T) {
	p, _ := PlaneFromRows([][]float64{
		{0, 0, 0, 0},
		{0, 100, 100, 0},
		{0, 100, 100, 0},
		{0, 0, 0, 0},
	})
	out, err := NewPipeline(BlurFilter(0), ThresholdFilter(-1)).Run(p)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Equal(p.BinaryDigitize(50)) {
		t.Errorf("got %v", out.Data)
	}

	li, err := NewPipeline(GaussianFilter(0), ThresholdFilter(LiThreshold)).Run(p)
	if err != nil {
		t.Fatal(err)
	}
	if !li.Equal(p.BinaryDigitize(50)) {
		t.Errorf("li got %v", li.Data)
	}

	blurred := p.Blur(1)
	if blurred.At(0, 0) <= 0 || blurred.At(1, 1) >= 100 {
		t.Errorf("blur did not smooth the plane: %v", blurred.Data)
	}
}
