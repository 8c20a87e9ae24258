package nanomesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// markerInset moves markers found on the image frame inside the domain.
const markerInset = 0.125

// RegionMarker is a point known to lie inside a labeled region. The
// triangulator assigns Label to every triangle reachable from Point without
// crossing a constrained segment.
type RegionMarker struct {
	Label int
	Point r2.Vec
	Name  string
}

// String implements fmt.Stringer.
func (m RegionMarker) String() string {
	return fmt.Sprintf("%s(%d) at (%g, %g)", m.Name, m.Label, m.Point.X, m.Point.Y)
}

// RegionMarkers returns one marker per 4-connected component of every label.
// The marker sits on the component pixel farthest from any label boundary;
// ties go to the first pixel in raster order. Components of a label listed in
// holes are returned as hole points instead.
func RegionMarkers(p *Plane, holes ...int) (regions []RegionMarker, holePoints []r2.Vec) {
	isHole := make(map[int]bool, len(holes))
	for _, h := range holes {
		isHole[h] = true
	}

	var (
		dist      = chamferDistance(p)
		component = make([]int, len(p.Data))
		stack     []int
		count     = map[int]int{}
	)
	for i := range component {
		component[i] = -1
	}

	id := 0
	for start := range p.Data {
		if component[start] >= 0 {
			continue
		}
		label := p.Label(start/p.Cols, start%p.Cols)
		best := start

		component[start] = id
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if dist[i] > dist[best] || (dist[i] == dist[best] && i < best) {
				best = i
			}

			r, c := i/p.Cols, i%p.Cols
			for _, n := range [4][2]int{{r - 1, c}, {r + 1, c}, {r, c - 1}, {r, c + 1}} {
				if !p.Contains(n[0], n[1]) {
					continue
				}
				j := n[0]*p.Cols + n[1]
				if component[j] < 0 && p.Label(n[0], n[1]) == label {
					component[j] = id
					stack = append(stack, j)
				}
			}
		}
		id++

		pt := insetPoint(r2.Vec{X: float64(best / p.Cols), Y: float64(best % p.Cols)}, p.Rows, p.Cols)
		if isHole[label] {
			holePoints = append(holePoints, pt)
			continue
		}
		regions = append(regions, RegionMarker{
			Label: label,
			Point: pt,
			Name:  fmt.Sprintf("label%d_%d", label, count[label]),
		})
		count[label]++
	}
	return regions, holePoints
}

// insetPoint nudges a pixel centre lying on the image frame into the domain.
func insetPoint(pt r2.Vec, rows, cols int) r2.Vec {
	rmax, cmax := float64(rows-1), float64(cols-1)
	if pt.X == 0 && rmax > 0 {
		pt.X += markerInset
	} else if pt.X == rmax && rmax > 0 {
		pt.X -= markerInset
	}
	if pt.Y == 0 && cmax > 0 {
		pt.Y += markerInset
	} else if pt.Y == cmax && cmax > 0 {
		pt.Y -= markerInset
	}
	return pt
}
