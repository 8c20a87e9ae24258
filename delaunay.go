package nanomesh

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// number of bounding quad vertices stored ahead of the input points
const boxVertices = 4

type regionState uint8

const (
	stateUnassigned regionState = iota
	stateExterior
	stateHole
	stateRegion
)

type triangle struct {
	v     [3]int
	alive bool
	state regionState
	label int
}

type edgeKey [2]int

func undirected(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Delaunay is a constrained Delaunay triangulation over a bounding quad.
// Triangles are kept counter-clockwise. Removed triangles keep their slot with
// alive unset until a new triangle reuses it.
type Delaunay struct {
	points    []r2.Vec
	triangles []triangle
	half      map[edgeKey]int // directed edge -> owning triangle
	segments  map[edgeKey]int // constrained edge -> marker
	segOrder  []edgeKey
	free      []int // slots of removed triangles
	eps       float64
}

// Init creates the bounding quad enclosing the given points with a margin
// large enough to keep its corners away from the input.
func (d *Delaunay) Init(points []r2.Vec, eps float64) *Delaunay {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX, maxX = Min(minX, p.X), Max(maxX, p.X)
		minY, maxY = Min(minY, p.Y), Max(maxY, p.Y)
	}
	if len(points) == 0 {
		minX, minY, maxX, maxY = 0, 0, 1, 1
	}
	margin := Max(maxX-minX, maxY-minY, 1) * 2

	d.eps = eps
	d.points = []r2.Vec{
		{X: minX - margin, Y: minY - margin},
		{X: maxX + margin, Y: minY - margin},
		{X: maxX + margin, Y: maxY + margin},
		{X: minX - margin, Y: maxY + margin},
	}
	d.triangles = nil
	d.half = make(map[edgeKey]int)
	d.segments = make(map[edgeKey]int)
	d.segOrder = nil
	d.free = nil

	d.addTriangle(0, 1, 2, stateUnassigned, 0)
	d.addTriangle(0, 2, 3, stateUnassigned, 0)
	return d
}

func (d *Delaunay) addTriangle(a, b, c int, state regionState, label int) int {
	tri := triangle{v: [3]int{a, b, c}, alive: true, state: state, label: label}
	var t int
	if n := len(d.free); n > 0 {
		t = d.free[n-1]
		d.free = d.free[:n-1]
		d.triangles[t] = tri
	} else {
		t = len(d.triangles)
		d.triangles = append(d.triangles, tri)
	}
	d.half[edgeKey{a, b}] = t
	d.half[edgeKey{b, c}] = t
	d.half[edgeKey{c, a}] = t
	return t
}

func (d *Delaunay) removeTriangle(t int) {
	tri := &d.triangles[t]
	tri.alive = false
	for i := 0; i < 3; i++ {
		k := edgeKey{tri.v[i], tri.v[(i+1)%3]}
		if d.half[k] == t {
			delete(d.half, k)
		}
	}
	d.free = append(d.free, t)
}

// neighbor returns the triangle across the directed edge (a, b) of its owner.
func (d *Delaunay) neighbor(a, b int) (int, bool) {
	t, ok := d.half[edgeKey{b, a}]
	return t, ok
}

func (d *Delaunay) hasEdge(a, b int) bool {
	_, ok := d.half[edgeKey{a, b}]
	if !ok {
		_, ok = d.half[edgeKey{b, a}]
	}
	return ok
}

func (d *Delaunay) isSegment(a, b int) bool {
	_, ok := d.segments[undirected(a, b)]
	return ok
}

func (d *Delaunay) addSegment(a, b, marker int) {
	k := undirected(a, b)
	if _, ok := d.segments[k]; ok {
		return
	}
	d.segments[k] = marker
	d.segOrder = append(d.segOrder, k)
}

func (d *Delaunay) corners(t int) (r2.Vec, r2.Vec, r2.Vec) {
	v := d.triangles[t].v
	return d.points[v[0]], d.points[v[1]], d.points[v[2]]
}

func (d *Delaunay) contains(t int, p r2.Vec) bool {
	a, b, c := d.corners(t)
	return orient(a, b, p) >= 0 && orient(b, c, p) >= 0 && orient(c, a, p) >= 0
}

// locate returns the first live triangle containing p.
func (d *Delaunay) locate(p r2.Vec) (int, bool) {
	for t := range d.triangles {
		if d.triangles[t].alive && d.contains(t, p) {
			return t, true
		}
	}
	return -1, false
}

type cavity struct {
	triangles []int
	boundary  []cavityEdge
	blocked   *edgeKey // segment preventing a star shaped cavity
}

type cavityEdge struct {
	a, b  int
	owner int
}

// cavity collects the triangles whose circumcircle contains p starting from
// the triangle t containing it, without crossing constrained segments. The
// cavity is grown until every boundary edge sees p on its left.
func (d *Delaunay) cavity(t int, p r2.Vec) cavity {
	in := map[int]bool{t: true}
	cav := cavity{triangles: []int{t}}

	for i := 0; i < len(cav.triangles); i++ {
		tri := d.triangles[cav.triangles[i]]
		for j := 0; j < 3; j++ {
			a, b := tri.v[j], tri.v[(j+1)%3]
			if d.isSegment(a, b) {
				continue
			}
			n, ok := d.neighbor(a, b)
			if !ok || in[n] {
				continue
			}
			na, nb, nc := d.corners(n)
			if inCircle(na, nb, nc, p) > d.eps {
				in[n] = true
				cav.triangles = append(cav.triangles, n)
			}
		}
	}

	for {
		cav.boundary = cav.boundary[:0]
		grown := false
		for _, ct := range cav.triangles {
			tri := d.triangles[ct]
			for j := 0; j < 3; j++ {
				a, b := tri.v[j], tri.v[(j+1)%3]
				n, ok := d.neighbor(a, b)
				if ok && in[n] {
					continue
				}
				if orient(d.points[a], d.points[b], p) <= d.eps {
					if d.isSegment(a, b) || !ok {
						k := undirected(a, b)
						cav.blocked = &k
						return cav
					}
					in[n] = true
					cav.triangles = append(cav.triangles, n)
					grown = true
					continue
				}
				cav.boundary = append(cav.boundary, cavityEdge{a: a, b: b, owner: ct})
			}
		}
		if !grown {
			return cav
		}
	}
}

// commit replaces the cavity by a fan of triangles around the new vertex v.
// New triangles inherit the region of the cavity triangle they replace.
func (d *Delaunay) commit(cav cavity, v int) []int {
	type inherit struct {
		state regionState
		label int
	}
	owners := make([]inherit, len(cav.boundary))
	for i, e := range cav.boundary {
		tri := d.triangles[e.owner]
		owners[i] = inherit{tri.state, tri.label}
	}
	for _, t := range cav.triangles {
		d.removeTriangle(t)
	}
	created := make([]int, 0, len(cav.boundary))
	for i, e := range cav.boundary {
		created = append(created, d.addTriangle(e.a, e.b, v, owners[i].state, owners[i].label))
	}
	return created
}

// Insert adds a point to the triangulation and returns its vertex index.
// A point equal to an existing vertex returns that vertex.
func (d *Delaunay) Insert(p r2.Vec) (int, error) {
	t, ok := d.locate(p)
	if !ok {
		return -1, errors.Wrapf(ErrTriangulationFailure, "point (%g, %g) outside the bounding quad", p.X, p.Y)
	}
	for _, v := range d.triangles[t].v {
		if d.points[v] == p {
			return v, nil
		}
	}
	cav := d.cavity(t, p)
	if cav.blocked != nil {
		k := *cav.blocked
		return -1, errors.Wrapf(ErrPSLGIntersection, "point (%g, %g) lies on segment (%d, %d)", p.X, p.Y, k[0], k[1])
	}
	v := len(d.points)
	d.points = append(d.points, p)
	d.commit(cav, v)
	return v, nil
}

// flip replaces the edge (a, b) shared by two triangles with the other
// diagonal of their quad. It reports false when the quad is not strictly convex.
func (d *Delaunay) flip(a, b int) bool {
	t1, ok1 := d.half[edgeKey{a, b}]
	t2, ok2 := d.half[edgeKey{b, a}]
	if !ok1 || !ok2 {
		return false
	}
	p := d.apex(t1, a, b)
	q := d.apex(t2, b, a)
	pa, pb, pp, pq := d.points[a], d.points[b], d.points[p], d.points[q]
	if orient(pa, pq, pp) <= 0 || orient(pb, pp, pq) <= 0 {
		return false
	}
	tri := d.triangles[t1]
	d.removeTriangle(t1)
	d.removeTriangle(t2)
	d.addTriangle(a, q, p, tri.state, tri.label)
	d.addTriangle(b, p, q, tri.state, tri.label)
	return true
}

// apex returns the vertex of t opposite to its directed edge (a, b).
func (d *Delaunay) apex(t, a, b int) int {
	for _, v := range d.triangles[t].v {
		if v != a && v != b {
			return v
		}
	}
	return -1
}

func segmentsCross(a, b, c, e r2.Vec) bool {
	d1, d2 := orient(c, e, a), orient(c, e, b)
	d3, d4 := orient(a, b, c), orient(a, b, e)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// InsertSegment forces the edge (a, b) into the triangulation by flipping the
// edges crossing it. When flipping makes no progress the segment is split at
// its midpoint and both halves are inserted instead.
func (d *Delaunay) InsertSegment(a, b, marker int) error {
	return d.insertSegment(a, b, marker, 0)
}

const maxSegmentSplits = 32

func (d *Delaunay) insertSegment(a, b, marker, depth int) error {
	if a == b {
		return nil
	}
	pa, pb := d.points[a], d.points[b]
	limit := 4*len(d.triangles) + 16

	for iter := 0; iter < limit; iter++ {
		if d.hasEdge(a, b) {
			d.addSegment(a, b, marker)
			return nil
		}
		var (
			candidates []edgeKey
			preferred  = -1
		)
		for t := range d.triangles {
			tri := d.triangles[t]
			if !tri.alive {
				continue
			}
			for j := 0; j < 3; j++ {
				u, v := tri.v[j], tri.v[(j+1)%3]
				if u > v {
					continue
				}
				if !segmentsCross(pa, pb, d.points[u], d.points[v]) {
					continue
				}
				if d.isSegment(u, v) {
					return errors.Wrapf(ErrPSLGIntersection, "segment (%d, %d) crosses segment (%d, %d)", a-boxVertices, b-boxVertices, u-boxVertices, v-boxVertices)
				}
				candidates = append(candidates, edgeKey{u, v})
			}
		}
		flipped := false
		for i, e := range candidates {
			if preferred < 0 && d.flipResolves(e, pa, pb) {
				preferred = i
			}
		}
		if preferred >= 0 {
			flipped = d.flip(candidates[preferred][0], candidates[preferred][1])
		}
		for i := 0; !flipped && i < len(candidates); i++ {
			flipped = d.flip(candidates[i][0], candidates[i][1])
		}
		if !flipped {
			break
		}
	}

	if depth >= maxSegmentSplits {
		return errors.Wrapf(ErrTriangulationFailure, "unable to recover segment (%d, %d)", a-boxVertices, b-boxVertices)
	}
	m, err := d.Insert(r2.Scale(0.5, r2.Add(pa, pb)))
	if err != nil {
		return err
	}
	if err := d.insertSegment(a, m, marker, depth+1); err != nil {
		return err
	}
	return d.insertSegment(m, b, marker, depth+1)
}

// flipResolves reports whether flipping e yields a convex flip whose new
// diagonal no longer crosses the segment ab.
func (d *Delaunay) flipResolves(e edgeKey, pa, pb r2.Vec) bool {
	t1, ok1 := d.half[edgeKey{e[0], e[1]}]
	t2, ok2 := d.half[edgeKey{e[1], e[0]}]
	if !ok1 || !ok2 {
		return false
	}
	p := d.points[d.apex(t1, e[0], e[1])]
	q := d.points[d.apex(t2, e[1], e[0])]
	u, v := d.points[e[0]], d.points[e[1]]
	if orient(u, q, p) <= 0 || orient(v, p, q) <= 0 {
		return false
	}
	return !segmentsCross(pa, pb, p, q)
}

// Legalize flips unconstrained edges until every one of them is locally
// Delaunay, turning the triangulation into a constrained Delaunay one. Quads
// with four cocircular corners take the diagonal with the larger minimum angle.
func (d *Delaunay) Legalize() error {
	var stack []edgeKey
	for _, tri := range d.triangles {
		if !tri.alive {
			continue
		}
		for j := 0; j < 3; j++ {
			if a, b := tri.v[j], tri.v[(j+1)%3]; a < b {
				stack = append(stack, edgeKey{a, b})
			}
		}
	}
	limit := 8*len(stack) + 1024
	for flips := 0; len(stack) > 0; {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		a, b := e[0], e[1]
		if d.isSegment(a, b) || !d.illegal(a, b) {
			continue
		}
		t1, t2 := d.half[edgeKey{a, b}], d.half[edgeKey{b, a}]
		p, q := d.apex(t1, a, b), d.apex(t2, b, a)
		if !d.flip(a, b) {
			continue
		}
		if flips++; flips > limit {
			return errors.Wrap(ErrTriangulationFailure, "edge legalization did not converge")
		}
		stack = append(stack, undirected(a, q), undirected(q, b), undirected(b, p), undirected(p, a))
	}
	return nil
}

// illegal reports whether the edge (a, b) shared by two triangles should be
// replaced by the other diagonal of their quad.
func (d *Delaunay) illegal(a, b int) bool {
	t1, ok1 := d.half[edgeKey{a, b}]
	t2, ok2 := d.half[edgeKey{b, a}]
	if !ok1 || !ok2 {
		return false
	}
	p, q := d.apex(t1, a, b), d.apex(t2, b, a)
	pa, pb, pp, pq := d.points[a], d.points[b], d.points[p], d.points[q]
	ic := inCircle(pa, pb, pp, pq)
	if ic > d.eps {
		return true
	}
	if ic < -d.eps || orient(pa, pq, pp) <= 0 || orient(pb, pp, pq) <= 0 {
		return false
	}
	const minGain = 1e-9 // degrees
	return minAngle(pa, pq, pp, pb, pp, pq) > minAngle(pa, pb, pp, pb, pa, pq)+minGain
}

// minAngle returns the smallest angle of the triangles abc and def.
func minAngle(a, b, c, e, f, g r2.Vec) float64 {
	m := 180.0
	for _, ang := range angles(a, b, c) {
		m = Min(m, ang)
	}
	for _, ang := range angles(e, f, g) {
		m = Min(m, ang)
	}
	return m
}

// flood assigns state and label to every unassigned triangle reachable from t
// without crossing a constrained segment.
func (d *Delaunay) flood(t int, state regionState, label int) {
	stack := []int{t}
	d.triangles[t].state, d.triangles[t].label = state, label
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		tri := d.triangles[cur]
		for j := 0; j < 3; j++ {
			a, b := tri.v[j], tri.v[(j+1)%3]
			if d.isSegment(a, b) {
				continue
			}
			n, ok := d.neighbor(a, b)
			if !ok || d.triangles[n].state != stateUnassigned {
				continue
			}
			d.triangles[n].state, d.triangles[n].label = state, label
			stack = append(stack, n)
		}
	}
}

// Classify removes the triangles outside the segment boundary and inside holes,
// and labels the rest from the region markers. Triangles no marker reaches get
// defaultLabel. Earlier markers win over later ones covering the same region.
// Markers falling outside the boundary or inside a hole are returned.
func (d *Delaunay) Classify(regions []RegionMarker, holes []r2.Vec, defaultLabel int) (skipped []RegionMarker) {
	for t, tri := range d.triangles {
		if !tri.alive || tri.state != stateUnassigned {
			continue
		}
		for _, v := range tri.v {
			if v < boxVertices {
				d.flood(t, stateExterior, 0)
				break
			}
		}
	}
	for _, h := range holes {
		if t, ok := d.locate(h); ok && d.triangles[t].state == stateUnassigned {
			d.flood(t, stateHole, 0)
		}
	}
	for _, m := range regions {
		t, ok := d.locate(m.Point)
		switch {
		case !ok || d.triangles[t].state == stateExterior || d.triangles[t].state == stateHole:
			skipped = append(skipped, m)
		case d.triangles[t].state == stateUnassigned:
			d.flood(t, stateRegion, m.Label)
		}
	}
	for t, tri := range d.triangles {
		if tri.alive && tri.state == stateUnassigned {
			d.triangles[t].state, d.triangles[t].label = stateRegion, defaultLabel
		}
	}
	return skipped
}
