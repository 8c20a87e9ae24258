package nanomesh

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultMinAngle is used by the q switch when no angle follows it.
const DefaultMinAngle = 20.0

// TriangulateOptions holds the quality constraints of a triangulation.
type TriangulateOptions struct {
	MinAngle      float64         // minimum triangle angle in degrees, 0 disables
	MaxArea       float64         // maximum triangle area, 0 disables
	RegionMaxArea map[int]float64 // maximum area per region label
	Epsilon       float64         // tolerance of the in-circle test
	MaxSteiner    int             // cap on inserted points, DefaultMaxSteiner when 0
	ConvexHull    bool            // mesh the convex hull of the points
	DefaultLabel  int             // label of triangles not reached by any marker
}

// ParseSwitches reads a triangle style switch string such as "q30a100".
// Supported switches are q (minimum angle), a (maximum area), e (tolerance)
// and c (convex hull). The p, z and Q switches are accepted and ignored.
func ParseSwitches(s string) (TriangulateOptions, error) {
	var opts TriangulateOptions
	for i := 0; i < len(s); {
		sw := s[i]
		i++
		j := i
		for j < len(s) && (s[j] == '.' || (s[j] >= '0' && s[j] <= '9')) {
			j++
		}
		num := s[i:j]
		i = j

		value := func(def float64) (float64, error) {
			if num == "" {
				return def, nil
			}
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, errors.Wrapf(err, "switch %q", string(sw))
			}
			return v, nil
		}
		var err error
		switch sw {
		case 'q':
			opts.MinAngle, err = value(DefaultMinAngle)
		case 'a':
			opts.MaxArea, err = value(0)
		case 'e':
			opts.Epsilon, err = value(0)
		case 'c':
			opts.ConvexHull = true
		case 'p', 'z', 'Q':
		default:
			err = errors.Errorf("unknown switch %q in %q", string(sw), s)
		}
		if err != nil {
			return opts, err
		}
		if num != "" && strings.IndexByte("qae", sw) < 0 {
			return opts, errors.Errorf("switch %q takes no value", string(sw))
		}
	}
	return opts, nil
}

// Triangulate computes the constrained Delaunay triangulation of g. Triangles
// are labeled from the region markers of g, hole regions and everything outside
// the segment boundary are removed. The mesh holds triangle cells and the line
// cells of the constrained segments, both with a physical cell data array.
func Triangulate(g *PSLG, opts TriangulateOptions) (*Mesh, error) {
	mesh, _, err := triangulate(g, opts)
	return mesh, err
}

// SimpleTriangulate triangulates points and segments without region markers.
// When no segments are given the convex hull of the points is meshed.
func SimpleTriangulate(points []r2.Vec, segments [][2]int, opts TriangulateOptions) (*Mesh, error) {
	return Triangulate(&PSLG{Points: points, Segments: segments}, opts)
}

func triangulate(g *PSLG, opts TriangulateOptions) (*Mesh, []RegionMarker, error) {
	if g == nil || len(g.Points) < 3 {
		return nil, nil, errors.Wrap(ErrTriangulationFailure, "at least three points are required")
	}
	hull := opts.ConvexHull || len(g.Segments) == 0
	if err := g.validate(!hull); err != nil {
		return nil, nil, err
	}
	if opts.MinAngle >= 60 {
		return nil, nil, errors.Wrapf(ErrTriangulationFailure, "minimum angle %g cannot be met", opts.MinAngle)
	}

	d := new(Delaunay).Init(g.Points, opts.Epsilon)
	for i, p := range g.Points {
		v, err := d.Insert(p)
		if err != nil {
			return nil, nil, err
		}
		if v != i+boxVertices {
			return nil, nil, errors.Wrapf(ErrPSLGIntersection, "point %d coincides with vertex %d", i, v-boxVertices)
		}
	}
	for i, s := range g.Segments {
		marker := MarkerContour
		if len(g.SegmentMarkers) > 0 {
			marker = g.SegmentMarkers[i]
		}
		if err := d.InsertSegment(s[0]+boxVertices, s[1]+boxVertices, marker); err != nil {
			return nil, nil, err
		}
	}
	if hull {
		ring, err := convexHull(g.Points)
		if err != nil {
			return nil, nil, err
		}
		for i := range ring {
			a, b := ring[i], ring[(i+1)%len(ring)]
			if err := d.InsertSegment(a+boxVertices, b+boxVertices, MarkerHull); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := d.Legalize(); err != nil {
		return nil, nil, err
	}
	skipped := d.Classify(g.Regions, g.Holes, opts.DefaultLabel)
	if err := d.Refine(opts); err != nil {
		return nil, nil, err
	}

	mesh, err := d.mesh()
	if err != nil {
		return nil, nil, err
	}
	return mesh, skipped, nil
}

// mesh collects the region triangles and the segments bordering them.
func (d *Delaunay) mesh() (*Mesh, error) {
	var tris []int
	used := make(map[int]bool)
	for t, tri := range d.triangles {
		if !tri.alive || tri.state != stateRegion {
			continue
		}
		tris = append(tris, t)
		for _, v := range tri.v {
			used[v] = true
		}
	}
	if len(tris) == 0 {
		return nil, errors.Wrap(ErrTriangulationFailure, "no triangles inside the segment boundary")
	}

	vertices := make([]int, 0, len(used))
	for v := range used {
		vertices = append(vertices, v)
	}
	sort.Ints(vertices)
	index := make(map[int]int, len(vertices))
	points := make([][]float64, len(vertices))
	for i, v := range vertices {
		index[v] = i
		points[i] = []float64{d.points[v].X, d.points[v].Y}
	}

	triangles := make([][]int, len(tris))
	labels := make([]int, len(tris))
	for i, t := range tris {
		v := d.triangles[t].v
		triangles[i] = []int{index[v[0]], index[v[1]], index[v[2]]}
		labels[i] = d.triangles[t].label
	}

	var (
		lines   [][]int
		markers []int
	)
	for _, k := range d.segOrder {
		marker, ok := d.segments[k]
		if !ok || !d.bordersRegion(k) {
			continue
		}
		lines = append(lines, []int{index[k[0]], index[k[1]]})
		markers = append(markers, marker)
	}

	m := NewMesh(points)
	m.AddCells(Triangle, triangles, labels)
	if len(lines) > 0 {
		m.AddCells(Line, lines, markers)
	}
	return m, nil
}

func (d *Delaunay) bordersRegion(k edgeKey) bool {
	for _, e := range [2]edgeKey{{k[0], k[1]}, {k[1], k[0]}} {
		if t, ok := d.half[e]; ok && d.triangles[t].state == stateRegion {
			return true
		}
	}
	return false
}

// convexHull returns the indices of the hull of points in counter-clockwise
// order, keeping points lying on hull edges.
func convexHull(points []r2.Vec) ([]int, error) {
	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return lessVec(points[idx[i]], points[idx[j]]) })

	chain := func(order []int) []int {
		var h []int
		for _, i := range order {
			for len(h) >= 2 && orient(points[h[len(h)-2]], points[h[len(h)-1]], points[i]) < 0 {
				h = h[:len(h)-1]
			}
			h = append(h, i)
		}
		return h
	}
	lower := chain(idx)
	rev := make([]int, len(idx))
	for i, v := range idx {
		rev[len(idx)-1-i] = v
	}
	upper := chain(rev)

	ring := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	area := 0.0
	for i := range ring {
		area += orient(r2.Vec{}, points[ring[i]], points[ring[(i+1)%len(ring)]])
	}
	if area == 0 {
		return nil, errors.Wrap(ErrTriangulationFailure, "points are collinear")
	}
	return ring, nil
}
