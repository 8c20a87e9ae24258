package nanomesh

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultLevel is the iso-level used on binary label masks.
const DefaultLevel = 0.5

// LevelSpec selects the iso-level for every label. Labels are contoured on
// binary masks, so levels must lie in (0, 1); a zero Default selects
// DefaultLevel.
type LevelSpec struct {
	Default  float64
	PerLabel map[int]float64
}

// For returns the level used for label.
func (l LevelSpec) For(label int) float64 {
	if v, ok := l.PerLabel[label]; ok {
		return v
	}
	if l.Default == 0 {
		return DefaultLevel
	}
	return l.Default
}

// Validate checks that every level lies strictly between 0 and 1.
func (l LevelSpec) Validate() error {
	if l.Default < 0 || l.Default >= 1 {
		return errors.Errorf("level %g outside (0, 1)", l.Default)
	}
	for label, v := range l.PerLabel {
		if v <= 0 || v >= 1 {
			return errors.Errorf("level %g of label %d outside (0, 1)", v, label)
		}
	}
	return nil
}

// cell edges
const (
	edgeTop = iota
	edgeRight
	edgeBottom
	edgeLeft
)

// cell corners, as offsets from the top left pixel of the cell
var cornerOffsets = [4][2]int{
	{0, 0}, // top left
	{0, 1}, // top right
	{1, 1}, // bottom right
	{1, 0}, // bottom left
}

type cellSegment struct {
	from, to int // cell edges
	ref      int // a corner on the high side
}

// squareCases lists the segments of every marching squares configuration. The
// case index has bit i set when corner i is above the level. Saddle cases keep
// the high corners disconnected.
var squareCases = [16][]cellSegment{
	0:  nil,
	1:  {{edgeLeft, edgeTop, 0}},
	2:  {{edgeTop, edgeRight, 1}},
	3:  {{edgeLeft, edgeRight, 0}},
	4:  {{edgeRight, edgeBottom, 2}},
	5:  {{edgeLeft, edgeTop, 0}, {edgeRight, edgeBottom, 2}},
	6:  {{edgeTop, edgeBottom, 1}},
	7:  {{edgeLeft, edgeBottom, 1}},
	8:  {{edgeBottom, edgeLeft, 3}},
	9:  {{edgeTop, edgeBottom, 0}},
	10: {{edgeTop, edgeRight, 1}, {edgeBottom, edgeLeft, 3}},
	11: {{edgeRight, edgeBottom, 0}},
	12: {{edgeLeft, edgeRight, 3}},
	13: {{edgeTop, edgeRight, 3}},
	14: {{edgeLeft, edgeTop, 2}},
	15: nil,
}

type isoSegment struct {
	from, to int // grid edge keys
}

// ExtractContours traces the iso-contours of the plane at level with marching
// squares over pixel centres. Points are (row, col). Closed contours repeat
// their first point, contours reaching the image border are left open.
// Contours are oriented with the values above level on their left.
func ExtractContours(p *Plane, level float64) ([]Polygon, error) {
	return extractContours(p, level, nil)
}

// extractContours is ExtractContours where crossings on the pixel edges
// selected by midpoint are placed halfway between both pixel centres.
func extractContours(p *Plane, level float64, midpoint func(r0, c0, r1, c1 int) bool) ([]Polygon, error) {
	if p == nil || p.Rows <= 0 || p.Cols <= 0 || len(p.Data) != p.Rows*p.Cols {
		return nil, errors.Wrap(ErrInvalidImageShape, "contour extraction needs a 2D plane")
	}

	var (
		segments []isoSegment
		points   = make(map[int]r2.Vec)
	)

	// edgeKey identifies a grid edge shared by two neighbouring cells.
	edgeKey := func(r, c, edge int) int {
		switch edge {
		case edgeTop:
			return (r*p.Cols + c) * 2
		case edgeBottom:
			return ((r+1)*p.Cols + c) * 2
		case edgeLeft:
			return (r*p.Cols+c)*2 + 1
		default:
			return (r*p.Cols+c+1)*2 + 1
		}
	}
	crossing := func(r, c, edge int) r2.Vec {
		var a, b [2]int
		switch edge {
		case edgeTop:
			a, b = cornerOffsets[0], cornerOffsets[1]
		case edgeRight:
			a, b = cornerOffsets[1], cornerOffsets[2]
		case edgeBottom:
			a, b = cornerOffsets[3], cornerOffsets[2]
		default:
			a, b = cornerOffsets[0], cornerOffsets[3]
		}
		ra, ca, rb, cb := r+a[0], c+a[1], r+b[0], c+b[1]
		t := 0.5
		if midpoint == nil || !midpoint(ra, ca, rb, cb) {
			va, vb := p.At(ra, ca), p.At(rb, cb)
			t = (level - va) / (vb - va)
		}
		return r2.Vec{
			X: float64(r+a[0]) + t*float64(b[0]-a[0]),
			Y: float64(c+a[1]) + t*float64(b[1]-a[1]),
		}
	}
	pointAt := func(r, c, edge int) (int, r2.Vec) {
		key := edgeKey(r, c, edge)
		if v, ok := points[key]; ok {
			return key, v
		}
		v := crossing(r, c, edge)
		points[key] = v
		return key, v
	}

	for r := 0; r < p.Rows-1; r++ {
		for c := 0; c < p.Cols-1; c++ {
			idx := 0
			for i, off := range cornerOffsets {
				if p.At(r+off[0], c+off[1]) > level {
					idx |= 1 << i
				}
			}
			for _, s := range squareCases[idx] {
				ka, a := pointAt(r, c, s.from)
				kb, b := pointAt(r, c, s.to)
				ref := r2.Vec{X: float64(r + cornerOffsets[s.ref][0]), Y: float64(c + cornerOffsets[s.ref][1])}
				// high side on the left in image view (x = col, y = row)
				dx, dy := b.Y-a.Y, b.X-a.X
				hx, hy := ref.Y-a.Y, ref.X-a.X
				if dx*hy-dy*hx > 0 {
					ka, kb = kb, ka
				}
				segments = append(segments, isoSegment{from: ka, to: kb})
			}
		}
	}
	return linkSegments(segments, points), nil
}

// linkSegments chains oriented segments sharing grid edges into polygons.
// Open chains are traced first, then the remaining cycles, both in scan order.
func linkSegments(segments []isoSegment, points map[int]r2.Vec) []Polygon {
	next := make(map[int]int, len(segments))
	incoming := make(map[int]bool, len(segments))
	for i, s := range segments {
		next[s.from] = i
		incoming[s.to] = true
	}
	used := make([]bool, len(segments))

	trace := func(start int) Polygon {
		s := segments[start]
		pts := []r2.Vec{points[s.from]}
		first := s.from
		for i := start; ; {
			used[i] = true
			s = segments[i]
			pts = append(pts, points[s.to])
			if s.to == first {
				break
			}
			j, ok := next[s.to]
			if !ok || used[j] {
				break
			}
			i = j
		}
		return NewPolygon(pts)
	}

	contours := []Polygon{}
	for i, s := range segments {
		if !used[i] && !incoming[s.from] {
			contours = append(contours, trace(i))
		}
	}
	for i := range segments {
		if !used[i] {
			contours = append(contours, trace(i))
		}
	}
	return contours
}

// ExtractLabelContours extracts the contours of every label except background
// from its binary mask. Labels without contours map to an empty slice.
// Interfaces between two non background labels are placed halfway between
// the pixel centres whatever the levels, so both labels share them.
func ExtractLabelContours(p *Plane, levels LevelSpec, background int) (map[int][]Polygon, error) {
	if p == nil || p.Rows <= 0 || p.Cols <= 0 {
		return nil, errors.Wrap(ErrInvalidImageShape, "contour extraction needs a 2D plane")
	}
	if err := levels.Validate(); err != nil {
		return nil, err
	}
	shared := func(r0, c0, r1, c1 int) bool {
		l0, l1 := p.Label(r0, c0), p.Label(r1, c1)
		return l0 != l1 && l0 != background && l1 != background
	}
	out := make(map[int][]Polygon)
	for _, label := range p.Labels() {
		if label == background {
			continue
		}
		contours, err := extractContours(p.Mask(label), levels.For(label), shared)
		if err != nil {
			return nil, err
		}
		out[label] = contours
	}
	return out, nil
}
