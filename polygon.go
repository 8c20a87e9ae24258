package nanomesh

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// Polygon is an ordered sequence of (row, col) points. It is closed when the
// first and last points are equal, otherwise it is an open path that usually
// ends on the image border.
type Polygon struct {
	Points []r2.Vec
}

// NewPolygon copies the points into a new polygon, dropping consecutive duplicates.
func NewPolygon(points []r2.Vec) Polygon {
	out := make([]r2.Vec, 0, len(points))
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1] == p {
			continue
		}
		out = append(out, p)
	}
	return Polygon{Points: out}
}

// Len returns the number of points.
func (pg Polygon) Len() int { return len(pg.Points) }

// Closed reports whether the first point is repeated at the end.
func (pg Polygon) Closed() bool {
	n := len(pg.Points)
	return n > 1 && pg.Points[0] == pg.Points[n-1]
}

// Ring returns the polygon as an explicitly closed orb ring.
func (pg Polygon) Ring() orb.Ring {
	ring := make(orb.Ring, 0, len(pg.Points)+1)
	for _, p := range pg.Points {
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	if len(ring) > 0 && !pg.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// Area returns the unsigned area enclosed by the polygon ring.
func (pg Polygon) Area() float64 {
	if len(pg.Points) < 3 {
		return 0
	}
	return planar.Area(orb.Polygon{pg.Ring()})
}

// Distinct returns the number of distinct points.
func (pg Polygon) Distinct() int {
	seen := make(map[r2.Vec]struct{}, len(pg.Points))
	for _, p := range pg.Points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// Validate returns ErrDegenerateContour when the polygon has fewer than three distinct points.
func (pg Polygon) Validate() error {
	if n := pg.Distinct(); n < 3 {
		return errors.Wrapf(ErrDegenerateContour, "%d distinct points", n)
	}
	return nil
}

// Subdivide inserts evenly spaced points on every segment longer than maxDist.
// The original points, their order and the closure state are preserved.
func (pg Polygon) Subdivide(maxDist float64) Polygon {
	if maxDist <= 0 || len(pg.Points) < 2 {
		return pg
	}
	out := make([]r2.Vec, 0, len(pg.Points))
	out = append(out, pg.Points[0])
	for i := 1; i < len(pg.Points); i++ {
		out = append(out, interpolate(pg.Points[i-1], pg.Points[i], maxDist)...)
		out = append(out, pg.Points[i])
	}
	return Polygon{Points: out}
}

// interpolate returns the points strictly between a and b spaced at most
// maxDist apart. Points are computed from the lexicographically smaller end
// so the same segment yields identical coordinates in both directions.
func interpolate(a, b r2.Vec, maxDist float64) []r2.Vec {
	length := r2.Norm(r2.Sub(b, a))
	n := int(math.Ceil(length/maxDist - 1e-9))
	if n <= 1 {
		return nil
	}
	lo, hi, reverse := a, b, false
	if lessVec(b, a) {
		lo, hi, reverse = b, a, true
	}
	d := r2.Sub(hi, lo)
	pts := make([]r2.Vec, n-1)
	for k := 1; k < n; k++ {
		p := r2.Vec{X: lo.X + d.X*float64(k)/float64(n), Y: lo.Y + d.Y*float64(k)/float64(n)}
		if reverse {
			pts[n-1-k] = p
		} else {
			pts[k-1] = p
		}
	}
	return pts
}

func lessVec(a, b r2.Vec) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// Simplify removes points closer than tolerance to the simplified path using
// the Douglas-Peucker algorithm. End points are always kept.
func (pg Polygon) Simplify(tolerance float64) Polygon {
	n := len(pg.Points)
	if tolerance <= 0 || n < 3 {
		return pg
	}
	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true

	type span struct{ first, last int }
	stack := []span{{0, n - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var (
			maxDist float64
			index   = -1
		)
		for i := s.first + 1; i < s.last; i++ {
			if d := segmentDistance(pg.Points[i], pg.Points[s.first], pg.Points[s.last]); d > maxDist {
				maxDist, index = d, i
			}
		}
		if index >= 0 && maxDist > tolerance {
			keep[index] = true
			stack = append(stack, span{s.first, index}, span{index, s.last})
		}
	}

	out := make([]r2.Vec, 0, n)
	for i, p := range pg.Points {
		if keep[i] {
			out = append(out, p)
		}
	}
	return Polygon{Points: out}
}

// segmentDistance returns the distance from p to the segment ab.
func segmentDistance(p, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	l2 := r2.Dot(ab, ab)
	if l2 == 0 {
		return r2.Norm(r2.Sub(p, a))
	}
	t := Max(0, Min(1, r2.Dot(r2.Sub(p, a), ab)/l2))
	return r2.Norm(r2.Sub(p, r2.Add(a, r2.Scale(t, ab))))
}

// Side identifies an edge of the image rectangle.
type Side uint8

const (
	SideRowMin Side = 1 << iota
	SideRowMax
	SideColMin
	SideColMax
)

const (
	rowSides = SideRowMin | SideRowMax
	colSides = SideColMin | SideColMax
)

// BorderSides returns the image edges p lies on for an image with the given
// shape. Points outside the image lie on no edge.
func BorderSides(p r2.Vec, rows, cols int) Side {
	rmax, cmax := float64(rows-1), float64(cols-1)
	if p.X < 0 || p.Y < 0 || p.X > rmax || p.Y > cmax {
		return 0
	}
	var s Side
	if p.X == 0 {
		s |= SideRowMin
	}
	if p.X == rmax {
		s |= SideRowMax
	}
	if p.Y == 0 {
		s |= SideColMin
	}
	if p.Y == cmax {
		s |= SideColMax
	}
	return s
}

// corner returns the image corner shared by the edges the end points lie on.
// same is true when both end points share an image edge.
func (pg Polygon) corner(rows, cols int) (c r2.Vec, ok, same bool) {
	if len(pg.Points) < 2 || pg.Closed() {
		return c, false, false
	}
	first, last := pg.Points[0], pg.Points[len(pg.Points)-1]
	fs, ls := BorderSides(first, rows, cols), BorderSides(last, rows, cols)
	if fs == 0 || ls == 0 {
		return c, false, false
	}
	if fs&ls != 0 {
		return c, false, true
	}
	switch {
	case fs&rowSides != 0 && ls&colSides != 0:
		c = r2.Vec{X: first.X, Y: last.Y}
	case fs&colSides != 0 && ls&rowSides != 0:
		c = r2.Vec{X: last.X, Y: first.Y}
	default:
		// opposite edges, no single corner closes the path
		return c, false, false
	}
	if c == first || c == last {
		return c, false, false
	}
	return c, true, false
}

// CloseCorner appends the image corner shared by the two image edges the open
// end points lie on. The polygon is returned unchanged when the end points are
// on the same edge, on opposite edges, or when the polygon is already closed.
func (pg Polygon) CloseCorner(rows, cols int) Polygon {
	c, ok, _ := pg.corner(rows, cols)
	if !ok {
		return pg
	}
	pts := make([]r2.Vec, len(pg.Points), len(pg.Points)+1)
	copy(pts, pg.Points)
	return Polygon{Points: append(pts, c)}
}

// CornerClosure behaves like CloseCorner but reports end points sharing an
// image edge with ErrAmbiguousCornerClosure.
func (pg Polygon) CornerClosure(rows, cols int) (Polygon, error) {
	if _, _, same := pg.corner(rows, cols); same {
		first, last := pg.Points[0], pg.Points[len(pg.Points)-1]
		return pg, errors.Wrapf(ErrAmbiguousCornerClosure, "end points %v and %v share an image edge", first, last)
	}
	return pg.CloseCorner(rows, cols), nil
}
