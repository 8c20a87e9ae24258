package nanomesh

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// Segment markers carried to the line cells of the mesh.
const (
	MarkerHull    = 0
	MarkerContour = 1
	MarkerFrame   = 2
)

// PSLG is a planar straight-line graph: unique points, segments between them,
// region markers and hole points.
type PSLG struct {
	Points         []r2.Vec
	Segments       [][2]int
	SegmentMarkers []int
	Regions        []RegionMarker
	Holes          []r2.Vec
}

type graphBuilder struct {
	g     *PSLG
	index map[r2.Vec]int
	edges map[edgeKey]bool
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{
		g:     &PSLG{},
		index: make(map[r2.Vec]int),
		edges: make(map[edgeKey]bool),
	}
}

func (b *graphBuilder) point(v r2.Vec) int {
	if i, ok := b.index[v]; ok {
		return i
	}
	i := len(b.g.Points)
	b.g.Points = append(b.g.Points, v)
	b.index[v] = i
	return i
}

func (b *graphBuilder) segment(i, j, marker int) {
	if i == j {
		return
	}
	k := undirected(i, j)
	if b.edges[k] {
		return
	}
	b.edges[k] = true
	b.g.Segments = append(b.g.Segments, [2]int{i, j})
	b.g.SegmentMarkers = append(b.g.SegmentMarkers, marker)
}

// BuildPSLG merges the contours of an image with the given shape into one
// graph. Points are deduplicated on exact coordinates, self loops and repeated
// edges are dropped. Contour edges running along the image frame are replaced
// by the frame itself, subdivided through every border vertex and the four
// image corners so that no segment exceeds maxEdge.
func BuildPSLG(contours []Polygon, rows, cols int, maxEdge float64) (*PSLG, error) {
	if rows < 2 || cols < 2 {
		return nil, errors.Wrapf(ErrInvalidImageShape, "cannot mesh image of shape (%d, %d)", rows, cols)
	}
	var (
		b     = newGraphBuilder()
		frame []r2.Vec
		rmax  = float64(rows - 1)
		cmax  = float64(cols - 1)
	)

	for ci, c := range contours {
		for i, p := range c.Points {
			if p.X < 0 || p.Y < 0 || p.X > rmax || p.Y > cmax {
				return nil, errors.Wrapf(ErrPSLGIntersection, "contour %d point %d (%g, %g) outside the image frame", ci, i, p.X, p.Y)
			}
			idx := b.point(p)
			if BorderSides(p, rows, cols) != 0 {
				frame = append(frame, p)
			}
			if i == 0 {
				continue
			}
			q := c.Points[i-1]
			if BorderSides(p, rows, cols)&BorderSides(q, rows, cols) != 0 {
				continue
			}
			b.segment(b.point(q), idx, MarkerContour)
		}
	}

	frame = append(frame,
		r2.Vec{X: 0, Y: 0}, r2.Vec{X: 0, Y: cmax},
		r2.Vec{X: rmax, Y: cmax}, r2.Vec{X: rmax, Y: 0})
	perimeter := func(p r2.Vec) float64 {
		switch {
		case p.X == 0:
			return p.Y
		case p.Y == cmax:
			return cmax + p.X
		case p.X == rmax:
			return cmax + rmax + (cmax - p.Y)
		default:
			return 2*cmax + rmax + (rmax - p.X)
		}
	}
	sort.SliceStable(frame, func(i, j int) bool { return perimeter(frame[i]) < perimeter(frame[j]) })

	ring := make([]r2.Vec, 0, len(frame)+1)
	for _, p := range frame {
		if n := len(ring); n > 0 && ring[n-1] == p {
			continue
		}
		ring = append(ring, p)
	}
	ring = append(ring, ring[0])
	border := Polygon{Points: ring}.Subdivide(maxEdge)
	for i := 1; i < len(border.Points); i++ {
		b.segment(b.point(border.Points[i-1]), b.point(border.Points[i]), MarkerFrame)
	}

	if err := b.g.Validate(); err != nil {
		return nil, err
	}
	return b.g, nil
}

// NumPoints returns the number of points referenced by the graph.
func (g *PSLG) NumPoints() int { return len(g.Points) }

// Validate checks segment indices, self loops, duplicates, dangling segments
// and intersections between segments.
func (g *PSLG) Validate() error { return g.validate(true) }

func (g *PSLG) validate(closed bool) error {
	index := make(map[r2.Vec]int, len(g.Points))
	for i, p := range g.Points {
		if j, ok := index[p]; ok {
			return errors.Wrapf(ErrPSLGIntersection, "points %d and %d coincide at (%g, %g)", j, i, p.X, p.Y)
		}
		index[p] = i
	}
	if len(g.SegmentMarkers) != 0 && len(g.SegmentMarkers) != len(g.Segments) {
		return errors.Errorf("%d segment markers for %d segments", len(g.SegmentMarkers), len(g.Segments))
	}
	seen := make(map[edgeKey]bool, len(g.Segments))
	degree := make([]int, len(g.Points))
	for i, s := range g.Segments {
		if s[0] < 0 || s[1] < 0 || s[0] >= len(g.Points) || s[1] >= len(g.Points) {
			return errors.Errorf("segment %d references missing point (%d, %d)", i, s[0], s[1])
		}
		if s[0] == s[1] {
			return errors.Wrapf(ErrPSLGIntersection, "segment %d is a self loop", i)
		}
		k := undirected(s[0], s[1])
		if seen[k] {
			return errors.Wrapf(ErrPSLGIntersection, "segment %d duplicates (%d, %d)", i, s[0], s[1])
		}
		seen[k] = true
		degree[s[0]]++
		degree[s[1]]++
	}
	for i, d := range degree {
		if closed && d == 1 {
			return errors.Wrapf(ErrDanglingSegment, "point %d (%g, %g) ends a single segment", i, g.Points[i].X, g.Points[i].Y)
		}
	}
	return g.checkIntersections()
}

// checkIntersections sweeps the segments sorted by their lowest X coordinate
// and reports crossings, overlaps and points lying inside a segment.
func (g *PSLG) checkIntersections() error {
	type span struct {
		lo, hi float64
		idx    int
	}
	spans := make([]span, len(g.Segments))
	for i, s := range g.Segments {
		a, b := g.Points[s[0]], g.Points[s[1]]
		spans[i] = span{Min(a.X, b.X), Max(a.X, b.X), i}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })

	for i := range spans {
		for j := i + 1; j < len(spans) && spans[j].lo <= spans[i].hi; j++ {
			s, t := g.Segments[spans[i].idx], g.Segments[spans[j].idx]
			if g.segmentsConflict(s, t) {
				return errors.Wrapf(ErrPSLGIntersection, "segments (%d, %d) and (%d, %d) intersect", s[0], s[1], t[0], t[1])
			}
		}
	}

	// isolated points must not sit on a segment either
	used := make([]bool, len(g.Points))
	for _, s := range g.Segments {
		used[s[0]], used[s[1]] = true, true
	}
	for i, p := range g.Points {
		if used[i] {
			continue
		}
		for _, s := range g.Segments {
			if onSegment(p, g.Points[s[0]], g.Points[s[1]]) {
				return errors.Wrapf(ErrPSLGIntersection, "point %d lies on segment (%d, %d)", i, s[0], s[1])
			}
		}
	}
	return nil
}

func (g *PSLG) segmentsConflict(s, t [2]int) bool {
	a, b := g.Points[s[0]], g.Points[s[1]]
	c, d := g.Points[t[0]], g.Points[t[1]]

	// o is the shared end, u and w the other ends
	var o, u, w r2.Vec
	switch {
	case s[0] == t[0]:
		o, u, w = a, b, d
	case s[0] == t[1]:
		o, u, w = a, b, c
	case s[1] == t[0]:
		o, u, w = b, a, d
	case s[1] == t[1]:
		o, u, w = b, a, c
	default:
		if segmentsCross(a, b, c, d) {
			return true
		}
		return onSegment(c, a, b) || onSegment(d, a, b) || onSegment(a, c, d) || onSegment(b, c, d)
	}
	// segments sharing an end overlap when collinear and pointing the same way
	return orient(o, u, w) == 0 && r2.Dot(r2.Sub(u, o), r2.Sub(w, o)) > 0
}

// onSegment reports whether p lies strictly inside the segment ab.
func onSegment(p, a, b r2.Vec) bool {
	if p == a || p == b || orient(a, b, p) != 0 {
		return false
	}
	return p.X >= Min(a.X, b.X) && p.X <= Max(a.X, b.X) &&
		p.Y >= Min(a.Y, b.Y) && p.Y <= Max(a.Y, b.Y)
}
