package nanomesh

import (
	"image"
	"math"
	"math/cmplx"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/spatial/r2"
)

// Plane is an immutable 2D image of labels or intensities stored in row-major order.
// Coordinates derived from a plane use r2.Vec with X as the row and Y as the column.
type Plane struct {
	Rows, Cols int
	Data       []float64
}

// NewPlane returns a zero filled plane with the given shape.
func NewPlane(rows, cols int) (*Plane, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Wrapf(ErrInvalidImageShape, "shape (%d, %d)", rows, cols)
	}
	return &Plane{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}, nil
}

// PlaneFromRows builds a plane from a rectangular slice of rows.
func PlaneFromRows(rows [][]float64) (*Plane, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.Wrap(ErrInvalidImageShape, "empty image")
	}
	p, err := NewPlane(len(rows), len(rows[0]))
	if err != nil {
		return nil, err
	}
	for r, row := range rows {
		if len(row) != p.Cols {
			return nil, errors.Wrapf(ErrInvalidImageShape, "row %d has %d columns, want %d", r, len(row), p.Cols)
		}
		copy(p.Data[r*p.Cols:], row)
	}
	return p, nil
}

// PlaneFromImage converts the image luminance into a plane with values in [0, 255].
func PlaneFromImage(img image.Image) *Plane {
	gray := Grayscale(ImgToNRGBA(img))
	width, height := gray.Bounds().Dx(), gray.Bounds().Dy()

	p := &Plane{Rows: height, Cols: width, Data: make([]float64, width*height)}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p.Data[y*width+x] = float64(gray.Pix[gray.PixOffset(x, y)])
		}
	}
	return p
}

// Shape returns the number of rows and columns.
func (p *Plane) Shape() (int, int) { return p.Rows, p.Cols }

// At returns the value at row r and column c.
func (p *Plane) At(r, c int) float64 { return p.Data[r*p.Cols+c] }

// Label returns the value at row r and column c rounded to an integer label.
func (p *Plane) Label(r, c int) int { return int(math.Round(p.At(r, c))) }

// Contains reports whether the row and column fall inside the plane.
func (p *Plane) Contains(r, c int) bool {
	return r >= 0 && c >= 0 && r < p.Rows && c < p.Cols
}

// Clone returns a deep copy of the plane.
func (p *Plane) Clone() *Plane {
	data := make([]float64, len(p.Data))
	copy(data, p.Data)
	return &Plane{Rows: p.Rows, Cols: p.Cols, Data: data}
}

// Equal reports whether both planes have the same shape and values.
func (p *Plane) Equal(o *Plane) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Rows != o.Rows || p.Cols != o.Cols {
		return false
	}
	return p.EqualData(o.Data)
}

// EqualData compares the plane values with a raw row-major slice.
func (p *Plane) EqualData(data []float64) bool {
	if len(data) != len(p.Data) {
		return false
	}
	for i, v := range p.Data {
		if v != data[i] {
			return false
		}
	}
	return true
}

// Labels returns the distinct integer labels found in the plane in ascending order.
func (p *Plane) Labels() []int {
	seen := make(map[int]struct{})
	labels := []int{}
	for _, v := range p.Data {
		l := int(math.Round(v))
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			labels = append(labels, l)
		}
	}
	sort.Ints(labels)
	return labels
}

// Mask returns a binary plane set to 1 where the plane equals label.
func (p *Plane) Mask(label int) *Plane {
	return p.Map(func(v float64) float64 {
		if int(math.Round(v)) == label {
			return 1
		}
		return 0
	})
}

// Map applies fn to every value and returns the result as a new plane.
func (p *Plane) Map(fn func(float64) float64) *Plane {
	out := &Plane{Rows: p.Rows, Cols: p.Cols, Data: make([]float64, len(p.Data))}
	for i, v := range p.Data {
		out.Data[i] = fn(v)
	}
	return out
}

// Apply calls fn with a copy of the plane. Image shaped results (*Plane or
// [][]float64) are returned as a new *Plane, anything else is returned as is.
func (p *Plane) Apply(fn func(*Plane) any) (any, error) {
	switch res := fn(p.Clone()).(type) {
	case *Plane:
		if res == nil {
			return nil, errors.Wrap(ErrInvalidImageShape, "apply returned a nil plane")
		}
		return res, nil
	case [][]float64:
		return PlaneFromRows(res)
	default:
		return res, nil
	}
}

// Crop returns the rows [top, bottom) and columns [left, right) of the plane.
func (p *Plane) Crop(left, right, bottom, top int) (*Plane, error) {
	if left < 0 || top < 0 || right > p.Cols || bottom > p.Rows || left >= right || top >= bottom {
		return nil, errors.Wrapf(ErrInvalidImageShape,
			"crop left=%d right=%d bottom=%d top=%d out of (%d, %d)", left, right, bottom, top, p.Rows, p.Cols)
	}
	out, err := NewPlane(bottom-top, right-left)
	if err != nil {
		return nil, err
	}
	for r := top; r < bottom; r++ {
		copy(out.Data[(r-top)*out.Cols:], p.Data[r*p.Cols+left:r*p.Cols+right])
	}
	return out, nil
}

// CropToBox crops the plane to the bounding box of the given (row, col) points.
func (p *Plane) CropToBox(bbox []r2.Vec) (*Plane, error) {
	if len(bbox) == 0 {
		return nil, errors.Wrap(ErrInvalidImageShape, "empty bounding box")
	}
	minR, maxR := bbox[0].X, bbox[0].X
	minC, maxC := bbox[0].Y, bbox[0].Y
	for _, v := range bbox[1:] {
		minR, maxR = Min(minR, v.X), Max(maxR, v.X)
		minC, maxC = Min(minC, v.Y), Max(maxC, v.Y)
	}
	return p.Crop(int(minC), int(maxC), int(maxR), int(minR))
}

// Blur applies a box blur of the given radius.
func (p *Plane) Blur(radius int) *Plane {
	if radius <= 0 {
		return p.Clone()
	}
	return &Plane{Rows: p.Rows, Cols: p.Cols, Data: convolutionFilter(setBlurMatrix(radius), p)}
}

// Gaussian applies a Gaussian blur with standard deviation sigma.
func (p *Plane) Gaussian(sigma float64) *Plane {
	if sigma <= 0 {
		return p.Clone()
	}
	return &Plane{Rows: p.Rows, Cols: p.Cols, Data: convolutionFilter(gaussianMatrix(sigma), p)}
}

// FFT returns the magnitude of the two dimensional discrete Fourier transform.
func (p *Plane) FFT() *Plane {
	data := make([]complex128, len(p.Data))
	for i, v := range p.Data {
		data[i] = complex(v, 0)
	}
	rowFFT := fourier.NewCmplxFFT(p.Cols)
	for r := 0; r < p.Rows; r++ {
		row := data[r*p.Cols : (r+1)*p.Cols]
		rowFFT.Coefficients(row, row)
	}
	colFFT := fourier.NewCmplxFFT(p.Rows)
	col := make([]complex128, p.Rows)
	for c := 0; c < p.Cols; c++ {
		for r := range col {
			col[r] = data[r*p.Cols+c]
		}
		colFFT.Coefficients(col, col)
		for r, v := range col {
			data[r*p.Cols+c] = v
		}
	}
	out := &Plane{Rows: p.Rows, Cols: p.Cols, Data: make([]float64, len(data))}
	for i, v := range data {
		out.Data[i] = cmplx.Abs(v)
	}
	return out
}

// Digitize replaces every value by the index of the bin it falls in: i is
// returned when bins[i-1] <= v < bins[i]. Bins must be increasing.
func (p *Plane) Digitize(bins []float64) *Plane {
	return p.Map(func(v float64) float64 {
		return float64(sort.Search(len(bins), func(i int) bool { return bins[i] > v }))
	})
}

// BinaryDigitize sets values greater or equal to threshold to 1 and the rest to 0.
func (p *Plane) BinaryDigitize(threshold float64) *Plane {
	return p.Digitize([]float64{threshold})
}

// OtsuThreshold computes the threshold maximizing the between-class variance
// over a 256 bin histogram of the plane values.
func (p *Plane) OtsuThreshold() float64 {
	lo, hi := Min(p.Data...), Max(p.Data...)
	if lo == hi {
		return lo
	}
	const nbins = 256
	var hist [nbins]float64
	width := (hi - lo) / nbins
	for _, v := range p.Data {
		i := int((v - lo) / width)
		if i >= nbins {
			i = nbins - 1
		}
		hist[i]++
	}

	var total, sumAll float64
	for i, h := range hist {
		total += h
		sumAll += float64(i) * h
	}

	var (
		wB, sumB, best float64
		bestIdx        int
	)
	for i, h := range hist {
		wB += h
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * h
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			bestIdx = i
		}
	}
	return lo + float64(bestIdx+1)*width
}

// LiThreshold computes Li's minimum cross entropy threshold iteratively.
func (p *Plane) LiThreshold() float64 {
	lo, hi := Min(p.Data...), Max(p.Data...)
	if lo == hi {
		return lo
	}
	values := append([]float64(nil), p.Data...)
	sort.Float64s(values)
	tolerance := hi - lo
	for i := 1; i < len(values); i++ {
		if d := values[i] - values[i-1]; d > 0 && d < tolerance {
			tolerance = d
		}
	}
	tolerance /= 2

	// work on values shifted to start at zero
	next, cur := 0.0, -2*tolerance
	for _, v := range values {
		next += v - lo
	}
	next /= float64(len(values))
	for math.Abs(next-cur) > tolerance {
		cur = next
		var sumF, sumB, nF, nB float64
		for _, v := range values {
			if v-lo > cur {
				sumF += v - lo
				nF++
			} else {
				sumB += v - lo
				nB++
			}
		}
		if nF == 0 || nB == 0 {
			break
		}
		meanF, meanB := sumF/nF, sumB/nB
		if meanB == 0 {
			break
		}
		next = (meanB - meanF) / (math.Log(meanB) - math.Log(meanF))
	}
	return next + lo
}

// ClearBorder replaces the 8-connected objects of the given label touching the
// plane border with fill.
func (p *Plane) ClearBorder(label int, fill float64) *Plane {
	out := p.Clone()
	visited := make([]bool, len(p.Data))
	var stack []int

	push := func(r, c int) {
		if !p.Contains(r, c) {
			return
		}
		i := r*p.Cols + c
		if visited[i] || p.Label(r, c) != label {
			return
		}
		visited[i] = true
		stack = append(stack, i)
	}
	for r := 0; r < p.Rows; r++ {
		push(r, 0)
		push(r, p.Cols-1)
	}
	for c := 0; c < p.Cols; c++ {
		push(0, c)
		push(p.Rows-1, c)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out.Data[i] = fill

		r, c := i/p.Cols, i%p.Cols
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr != 0 || dc != 0 {
					push(r+dr, c+dc)
				}
			}
		}
	}
	return out
}

// CompareOp is an element-wise comparison operator.
type CompareOp int

const (
	Greater CompareOp = iota
	GreaterEqual
	Less
	LessEqual
)

// Compare evaluates op element-wise and returns a binary plane.
func (p *Plane) Compare(o *Plane, op CompareOp) (*Plane, error) {
	if p.Rows != o.Rows || p.Cols != o.Cols {
		return nil, errors.Wrapf(ErrInvalidImageShape, "compare (%d, %d) with (%d, %d)", p.Rows, p.Cols, o.Rows, o.Cols)
	}
	out := &Plane{Rows: p.Rows, Cols: p.Cols, Data: make([]float64, len(p.Data))}
	for i, a := range p.Data {
		b := o.Data[i]
		var ok bool
		switch op {
		case Greater:
			ok = a > b
		case GreaterEqual:
			ok = a >= b
		case Less:
			ok = a < b
		case LessEqual:
			ok = a <= b
		}
		if ok {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// All reports whether every value of the plane is non zero.
func (p *Plane) All() bool {
	for _, v := range p.Data {
		if v == 0 {
			return false
		}
	}
	return true
}
