package nanomesh

// Filter transforms a plane before it is meshed.
type Filter interface {
	Apply(src *Plane) (*Plane, error)
}

// FilterFunc adapts an ordinary function to the Filter interface.
type FilterFunc func(src *Plane) (*Plane, error)

// Apply calls f(src).
func (f FilterFunc) Apply(src *Plane) (*Plane, error) { return f(src) }

// Pipeline implements a list of filters that can be applied to a plane at once.
type Pipeline struct {
	Filters []Filter
}

// NewPipeline creates a new pipeline and initializes it with the given list of filters.
func NewPipeline(filters ...Filter) *Pipeline {
	return &Pipeline{
		Filters: filters,
	}
}

// Run applies all the added filters in order, feeding each one the output of the previous.
func (pl *Pipeline) Run(src *Plane) (*Plane, error) {
	out := src
	for _, f := range pl.Filters {
		next, err := f.Apply(out)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// BlurFilter returns a box blur filter.
func BlurFilter(radius int) Filter {
	return FilterFunc(func(src *Plane) (*Plane, error) {
		return src.Blur(radius), nil
	})
}

// GaussianFilter returns a Gaussian blur filter.
func GaussianFilter(sigma float64) Filter {
	return FilterFunc(func(src *Plane) (*Plane, error) {
		return src.Gaussian(sigma), nil
	})
}

// LiThreshold selects Li's minimum cross entropy threshold in ThresholdFilter.
const LiThreshold = -2

// ThresholdFilter binarizes the plane. LiThreshold selects Li's threshold
// and any other negative threshold selects Otsu's.
func ThresholdFilter(threshold float64) Filter {
	return FilterFunc(func(src *Plane) (*Plane, error) {
		t := threshold
		switch {
		case t == LiThreshold:
			t = src.LiThreshold()
		case t < 0:
			t = src.OtsuThreshold()
		}
		return src.BinaryDigitize(t), nil
	})
}

// DigitizeFilter maps values to bin indices.
func DigitizeFilter(bins []float64) Filter {
	return FilterFunc(func(src *Plane) (*Plane, error) {
		return src.Digitize(bins), nil
	})
}

// ClearBorderFilter replaces border touching objects of label with fill.
func ClearBorderFilter(label int, fill float64) Filter {
	return FilterFunc(func(src *Plane) (*Plane, error) {
		return src.ClearBorder(label, fill), nil
	})
}
