package nanomesh

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultMaxSteiner bounds the number of points added while refining.
const DefaultMaxSteiner = 100000

type refiner struct {
	*Delaunay
	opts    TriangulateOptions
	steiner int
	limit   int
	queue   []int
}

func (r *refiner) areaLimit(label int) float64 {
	if a, ok := r.opts.RegionMaxArea[label]; ok && a > 0 {
		return a
	}
	return r.opts.MaxArea
}

func triangleArea(a, b, c r2.Vec) float64 { return orient(a, b, c) / 2 }

// angles returns the interior angles of abc in degrees.
func angles(a, b, c r2.Vec) [3]float64 {
	angle := func(o, p, q r2.Vec) float64 {
		u, v := r2.Sub(p, o), r2.Sub(q, o)
		return math.Atan2(math.Abs(r2.Cross(u, v)), r2.Dot(u, v)) * 180 / math.Pi
	}
	return [3]float64{angle(a, b, c), angle(b, c, a), angle(c, a, b)}
}

func circumcenter(a, b, c r2.Vec) r2.Vec {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	return r2.Vec{
		X: a.X + (cy*b2-by*c2)/d,
		Y: a.Y + (bx*c2-cx*b2)/d,
	}
}

// bad reports whether triangle t violates the area or angle constraints. Small
// angles enclosed by two segments are input features and never refined.
func (r *refiner) bad(t int) bool {
	tri := r.triangles[t]
	a, b, c := r.corners(t)
	if limit := r.areaLimit(tri.label); limit > 0 && triangleArea(a, b, c) > limit {
		return true
	}
	if r.opts.MinAngle <= 0 {
		return false
	}
	for i, ang := range angles(a, b, c) {
		if ang >= r.opts.MinAngle {
			continue
		}
		v := tri.v[i]
		prev, next := tri.v[(i+2)%3], tri.v[(i+1)%3]
		if r.isSegment(v, prev) && r.isSegment(v, next) {
			continue
		}
		return true
	}
	return false
}

// encroached reports whether a region vertex opposite to the segment lies
// inside its diametral circle.
func (r *refiner) encroached(k edgeKey) bool {
	a, b := r.points[k[0]], r.points[k[1]]
	for _, e := range [2]edgeKey{{k[0], k[1]}, {k[1], k[0]}} {
		t, ok := r.half[e]
		if !ok || r.triangles[t].state != stateRegion {
			continue
		}
		c := r.points[r.apex(t, e[0], e[1])]
		if r2.Dot(r2.Sub(a, c), r2.Sub(b, c)) < 0 {
			return true
		}
	}
	return false
}

func (r *refiner) count() error {
	r.steiner++
	if r.steiner > r.limit {
		return errors.Wrapf(ErrTriangulationFailure, "refinement did not converge after %d points", r.limit)
	}
	return nil
}

// splitSegment inserts the midpoint of segment k, replacing it with its two halves.
func (r *refiner) splitSegment(k edgeKey) error {
	if err := r.count(); err != nil {
		return err
	}
	marker := r.segments[k]
	a, b := k[0], k[1]
	m := r2.Scale(0.5, r2.Add(r.points[a], r.points[b]))

	t, ok := r.half[edgeKey{a, b}]
	if !ok {
		t = r.half[edgeKey{b, a}]
	}
	delete(r.segments, k)
	cav := r.cavity(t, m)
	if cav.blocked != nil {
		r.segments[k] = marker
		return errors.Wrapf(ErrTriangulationFailure, "cannot split segment (%d, %d)", a-boxVertices, b-boxVertices)
	}
	v := len(r.points)
	r.points = append(r.points, m)
	created := r.commit(cav, v)
	r.addSegment(a, v, marker)
	r.addSegment(v, b, marker)
	r.queue = append(r.queue, created...)
	return r.splitEncroachedAround(created)
}

// splitEncroachedAround splits the segments bordering the given triangles that
// are encroached, repeating on the triangles this creates.
func (r *refiner) splitEncroachedAround(tris []int) error {
	for _, t := range tris {
		if !r.triangles[t].alive {
			continue
		}
		v := r.triangles[t].v
		for j := 0; j < 3; j++ {
			k := undirected(v[j], v[(j+1)%3])
			if _, ok := r.segments[k]; ok && r.encroached(k) {
				if err := r.splitSegment(k); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

// walk moves from triangle t towards p, preferring edges crossed by the line
// from the centroid of t to p. It stops at the triangle containing p or at the
// first constrained segment in the way.
func (r *refiner) walk(t int, p r2.Vec) (int, *edgeKey) {
	a, b, c := r.corners(t)
	origin := r2.Scale(1.0/3, r2.Add(a, r2.Add(b, c)))

	for steps := 0; steps <= len(r.triangles); steps++ {
		v := r.triangles[t].v
		exit := -1
		for j := 0; j < 3; j++ {
			pa, pb := r.points[v[j]], r.points[v[(j+1)%3]]
			if orient(pa, pb, p) >= 0 {
				continue
			}
			if exit < 0 {
				exit = j
			}
			if orient(origin, p, pa)*orient(origin, p, pb) <= 0 {
				exit = j
				break
			}
		}
		if exit < 0 {
			return t, nil
		}
		ea, eb := v[exit], v[(exit+1)%3]
		if r.isSegment(ea, eb) {
			k := undirected(ea, eb)
			return t, &k
		}
		n, ok := r.neighbor(ea, eb)
		if !ok {
			return -1, nil
		}
		t = n
	}
	if found, ok := r.locate(p); ok {
		return found, nil
	}
	return -1, nil
}

// improve splits triangle t by inserting its circumcentre, or splits the
// segment the circumcentre encroaches upon.
func (r *refiner) improve(t int) error {
	a, b, c := r.corners(t)
	cc := circumcenter(a, b, c)
	if math.IsNaN(cc.X) || math.IsInf(cc.X, 0) || math.IsNaN(cc.Y) || math.IsInf(cc.Y, 0) {
		return nil
	}

	target, blocked := r.walk(t, cc)
	if blocked != nil {
		if err := r.splitSegment(*blocked); err != nil {
			return err
		}
		r.queue = append(r.queue, t)
		return nil
	}
	if target < 0 || r.triangles[target].state != stateRegion {
		return nil
	}
	for _, v := range r.triangles[target].v {
		if r.points[v] == cc {
			return nil
		}
	}

	cav := r.cavity(target, cc)
	if cav.blocked != nil {
		if err := r.splitSegment(*cav.blocked); err != nil {
			return err
		}
		r.queue = append(r.queue, t)
		return nil
	}
	for _, e := range cav.boundary {
		k := undirected(e.a, e.b)
		if _, ok := r.segments[k]; !ok {
			continue
		}
		pa, pb := r.points[e.a], r.points[e.b]
		if r2.Dot(r2.Sub(pa, cc), r2.Sub(pb, cc)) < 0 {
			if err := r.splitSegment(k); err != nil {
				return err
			}
			r.queue = append(r.queue, t)
			return nil
		}
	}

	if err := r.count(); err != nil {
		return err
	}
	v := len(r.points)
	r.points = append(r.points, cc)
	created := r.commit(cav, v)
	r.queue = append(r.queue, created...)
	return r.splitEncroachedAround(created)
}

// Refine inserts Steiner points until no region triangle violates the minimum
// angle or maximum area constraints of opts.
func (d *Delaunay) Refine(opts TriangulateOptions) error {
	if opts.MinAngle <= 0 && opts.MaxArea <= 0 && len(opts.RegionMaxArea) == 0 {
		return nil
	}
	if opts.MinAngle >= 60 {
		return errors.Wrapf(ErrTriangulationFailure, "minimum angle %g cannot be met", opts.MinAngle)
	}
	r := &refiner{Delaunay: d, opts: opts, limit: opts.MaxSteiner}
	if r.limit <= 0 {
		r.limit = DefaultMaxSteiner
	}

	for _, k := range d.segOrder {
		if _, ok := d.segments[k]; ok && r.encroached(k) {
			if err := r.splitSegment(k); err != nil {
				return err
			}
		}
	}

	for t := range d.triangles {
		if d.triangles[t].alive && d.triangles[t].state == stateRegion {
			r.queue = append(r.queue, t)
		}
	}
	for i := 0; i < len(r.queue); i++ {
		t := r.queue[i]
		if !d.triangles[t].alive || d.triangles[t].state != stateRegion || !r.bad(t) {
			continue
		}
		if err := r.improve(t); err != nil {
			return err
		}
	}
	return nil
}
