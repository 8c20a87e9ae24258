package nanomesh

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

func cellVec(m *Mesh, i int) r2.Vec {
	return r2.Vec{X: m.Points[i][0], Y: m.Points[i][1]}
}

func centroid(m *Mesh, cell []int) r2.Vec {
	a, b, c := cellVec(m, cell[0]), cellVec(m, cell[1]), cellVec(m, cell[2])
	return r2.Scale(1.0/3, r2.Add(a, r2.Add(b, c)))
}

func areaByLabel(m *Mesh) map[int]float64 {
	areas := make(map[int]float64)
	labels := m.Labels(Triangle)
	for i, cell := range m.Cells[Triangle] {
		areas[labels[i]] += triangleArea(cellVec(m, cell[0]), cellVec(m, cell[1]), cellVec(m, cell[2]))
	}
	return areas
}

func totalArea(m *Mesh) float64 {
	sum := 0.0
	for _, a := range areaByLabel(m) {
		sum += a
	}
	return sum
}

func checkTriangles(t *testing.T, m *Mesh) {
	t.Helper()
	labels := m.Labels(Triangle)
	if len(labels) != m.NumCells(Triangle) {
		t.Fatalf("got %d labels for %d triangles", len(labels), m.NumCells(Triangle))
	}
	for i, cell := range m.Cells[Triangle] {
		a, b, c := cellVec(m, cell[0]), cellVec(m, cell[1]), cellVec(m, cell[2])
		if orient(a, b, c) <= 0 {
			t.Fatalf("triangle %d %v is not counter-clockwise", i, cell)
		}
	}
}

func TestSimpleTriangulateHull(t *testing.T) {
	tests := []struct {
		name      string
		points    []r2.Vec
		triangles int
		area      float64
	}{
		{"square", vecs([][2]float64{{0, 0}, {0, 1}, {1, 1}, {1, 0}}), 2, 1},
		{"grid", vecs([][2]float64{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}, {2, 0}, {2, 1}, {2, 2}}), 8, 4},
		{"triangle", vecs([][2]float64{{0, 0}, {4, 0}, {0, 3}}), 1, 6},
	}
	for _, tt := range tests {
		m, err := SimpleTriangulate(tt.points, nil, TriangulateOptions{})
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		checkTriangles(t, m)
		if m.NumCells(Triangle) != tt.triangles {
			t.Errorf("%s: got %d triangles, want %d", tt.name, m.NumCells(Triangle), tt.triangles)
		}
		if a := totalArea(m); math.Abs(a-tt.area) > 1e-9 {
			t.Errorf("%s: got area %v, want %v", tt.name, a, tt.area)
		}
		if len(m.Points) != len(tt.points) {
			t.Errorf("%s: got %d points, want %d", tt.name, len(m.Points), len(tt.points))
		}
		for _, l := range m.Labels(Line) {
			if l != MarkerHull {
				t.Errorf("%s: hull line with marker %d", tt.name, l)
			}
		}
	}
}

func TestTriangulateRegions(t *testing.T) {
	g := &PSLG{
		Points:   vecs([][2]float64{{0, 0}, {0, 2}, {0, 4}, {2, 4}, {2, 2}, {2, 0}}),
		Segments: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 0}, {1, 4}},
		Regions: []RegionMarker{
			{Label: 1, Point: r2.Vec{X: 1, Y: 1}},
			{Label: 2, Point: r2.Vec{X: 1, Y: 3}},
		},
	}
	for _, opts := range []TriangulateOptions{{}, {MinAngle: 20, MaxArea: 0.2}} {
		m, err := Triangulate(g, opts)
		if err != nil {
			t.Fatal(err)
		}
		checkTriangles(t, m)
		labels := m.Labels(Triangle)
		for i, cell := range m.Cells[Triangle] {
			want := 1
			if centroid(m, cell).Y > 2 {
				want = 2
			}
			if labels[i] != want {
				t.Errorf("triangle %d at %v: got label %d, want %d", i, centroid(m, cell), labels[i], want)
			}
		}
		areas := areaByLabel(m)
		if math.Abs(areas[1]-4) > 1e-9 || math.Abs(areas[2]-4) > 1e-9 {
			t.Errorf("got areas %v", areas)
		}
	}
}

func TestTriangulateHole(t *testing.T) {
	g := &PSLG{
		Points: vecs([][2]float64{
			{0, 0}, {0, 4}, {4, 4}, {4, 0},
			{1, 1}, {1, 3}, {3, 3}, {3, 1},
		}),
		Segments: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}, {5, 6}, {6, 7}, {7, 4}},
		Regions:  []RegionMarker{{Label: 3, Point: r2.Vec{X: 0.5, Y: 0.5}}},
		Holes:    []r2.Vec{{X: 2, Y: 2}},
	}
	m, err := Triangulate(g, TriangulateOptions{MinAngle: 20})
	if err != nil {
		t.Fatal(err)
	}
	checkTriangles(t, m)
	if a := totalArea(m); math.Abs(a-12) > 1e-9 {
		t.Errorf("got area %v, want 12", a)
	}
	for _, cell := range m.Cells[Triangle] {
		c := centroid(m, cell)
		if c.X > 1 && c.X < 3 && c.Y > 1 && c.Y < 3 {
			t.Errorf("triangle %v inside the hole", cell)
		}
	}
	if counts := m.LabelCounts(Triangle); len(counts) != 1 || counts[3] != m.NumCells(Triangle) {
		t.Errorf("got label counts %v", counts)
	}
}

func TestTriangulateQuality(t *testing.T) {
	g := &PSLG{
		Points:   vecs([][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}}),
		Segments: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
	}
	opts := TriangulateOptions{MinAngle: 20, MaxArea: 5}
	m, err := Triangulate(g, opts)
	if err != nil {
		t.Fatal(err)
	}
	checkTriangles(t, m)
	for i, cell := range m.Cells[Triangle] {
		a, b, c := cellVec(m, cell[0]), cellVec(m, cell[1]), cellVec(m, cell[2])
		if area := triangleArea(a, b, c); area > opts.MaxArea+1e-9 {
			t.Errorf("triangle %d has area %v", i, area)
		}
		for _, ang := range angles(a, b, c) {
			if ang < opts.MinAngle-1e-9 {
				t.Errorf("triangle %d has angle %v", i, ang)
			}
		}
	}
	if a := totalArea(m); math.Abs(a-100) > 1e-6 {
		t.Errorf("got area %v, want 100", a)
	}

	again, err := Triangulate(g, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Equal(m) {
		t.Error("triangulation is not deterministic")
	}
}

func TestTriangulateErrors(t *testing.T) {
	square := vecs([][2]float64{{0, 0}, {0, 2}, {2, 2}, {2, 0}})
	ring := [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}
	tests := []struct {
		name string
		g    *PSLG
		opts TriangulateOptions
		err  error
	}{
		{"nil", nil, TriangulateOptions{}, ErrTriangulationFailure},
		{"two points", &PSLG{Points: square[:2]}, TriangulateOptions{}, ErrTriangulationFailure},
		{"collinear", &PSLG{Points: vecs([][2]float64{{0, 0}, {1, 1}, {2, 2}})}, TriangulateOptions{}, ErrTriangulationFailure},
		{"crossing", &PSLG{Points: square, Segments: append(append([][2]int{}, ring...), [2]int{0, 2}, [2]int{1, 3})}, TriangulateOptions{}, ErrPSLGIntersection},
		{"dangling", &PSLG{Points: append(append([]r2.Vec{}, square...), r2.Vec{X: 1, Y: 1}), Segments: append(append([][2]int{}, ring...), [2]int{0, 4})}, TriangulateOptions{}, ErrDanglingSegment},
		{"angle", &PSLG{Points: square, Segments: ring}, TriangulateOptions{MinAngle: 60}, ErrTriangulationFailure},
		{"steiner", &PSLG{Points: square, Segments: ring}, TriangulateOptions{MaxArea: 0.001, MaxSteiner: 10}, ErrTriangulationFailure},
	}
	for _, tt := range tests {
		m, err := Triangulate(tt.g, tt.opts)
		if !errors.Is(err, tt.err) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.err)
		}
		if m != nil {
			t.Errorf("%s: partial mesh returned", tt.name)
		}
	}

	// interior segments are allowed to dangle when meshing the convex hull
	g := &PSLG{Points: append(append([]r2.Vec{}, square...), r2.Vec{X: 1, Y: 1}), Segments: [][2]int{{0, 4}}}
	m, err := Triangulate(g, TriangulateOptions{ConvexHull: true})
	if err != nil {
		t.Fatal(err)
	}
	if m.NumCells(Triangle) != 4 {
		t.Errorf("got %d triangles, want 4", m.NumCells(Triangle))
	}
}

func TestTriangulateSkippedMarkers(t *testing.T) {
	g := &PSLG{
		Points:   vecs([][2]float64{{0, 0}, {0, 2}, {2, 2}, {2, 0}}),
		Segments: [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		Regions: []RegionMarker{
			{Label: 5, Point: r2.Vec{X: 1, Y: 1}},
			{Label: 6, Point: r2.Vec{X: 20, Y: 20}},
			{Label: 7, Point: r2.Vec{X: 1.5, Y: 0.5}},
		},
	}
	m, skipped, err := triangulate(g, TriangulateOptions{DefaultLabel: 9})
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 1 || skipped[0].Label != 6 {
		t.Errorf("got skipped markers %v", skipped)
	}
	if counts := m.LabelCounts(Triangle); counts[5] != m.NumCells(Triangle) {
		t.Errorf("the first marker must label the whole region, got %v", counts)
	}
}

func TestTriangulateBlockRegions(t *testing.T) {
	g := blockGraph(t)
	m, err := Triangulate(g, TriangulateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	checkTriangles(t, m)

	// every marker lies in a triangle carrying its label
	labels := m.Labels(Triangle)
	for _, marker := range g.Regions {
		found := false
		for i, cell := range m.Cells[Triangle] {
			a, b, c := cellVec(m, cell[0]), cellVec(m, cell[1]), cellVec(m, cell[2])
			if orient(a, b, marker.Point) >= 0 && orient(b, c, marker.Point) >= 0 && orient(c, a, marker.Point) >= 0 {
				found = true
				if labels[i] != marker.Label {
					t.Errorf("marker %v lies in a triangle labeled %d", marker, labels[i])
				}
			}
		}
		if !found {
			t.Errorf("marker %v not covered by the mesh", marker)
		}
	}

	// triangles inside the label 1 contours carry label 1
	contours, err := NewProcessor(Options{MaxEdgeLength: 4}).Contours(blockImage(10, 10))
	if err != nil {
		t.Fatal(err)
	}
	for i, cell := range m.Cells[Triangle] {
		c := centroid(m, cell)
		want := 0
		for _, pg := range contours {
			if planar.RingContains(pg.Ring(), orb.Point{c.X, c.Y}) {
				want = 1
			}
		}
		if labels[i] != want {
			t.Errorf("triangle %d at %v: got label %d, want %d", i, c, labels[i], want)
		}
	}

	areas := areaByLabel(m)
	if math.Abs(areas[1]-40.25) > 1e-9 || math.Abs(areas[0]-40.75) > 1e-9 {
		t.Errorf("got areas %v", areas)
	}
}

func TestTriangulateRoundTrip(t *testing.T) {
	switches := []string{"", "q30a100", "q20a2"}
	for _, sw := range switches {
		opts, err := ParseSwitches(sw)
		if err != nil {
			t.Fatal(err)
		}
		m, err := Triangulate(blockGraph(t), opts)
		if err != nil {
			t.Fatalf("%q: %v", sw, err)
		}
		b, err := m.Boundary()
		if err != nil {
			t.Fatal(err)
		}
		again, err := Triangulate(b, opts)
		if err != nil {
			t.Fatalf("%q: boundary: %v", sw, err)
		}
		if len(again.Points) != len(m.Points) {
			t.Errorf("%q: got %d points, want %d", sw, len(again.Points), len(m.Points))
		}
		for _, ct := range []CellType{Triangle, Line} {
			if again.NumCells(ct) != m.NumCells(ct) {
				t.Errorf("%q: %s: got %d cells, want %d", sw, ct, again.NumCells(ct), m.NumCells(ct))
			}
		}
	}
}

func TestTriangulateCocircular(t *testing.T) {
	circle := make([]r2.Vec, 12)
	for i := range circle {
		a := float64(i) * math.Pi / 6
		circle[i] = r2.Vec{X: 3 * math.Cos(a), Y: 3 * math.Sin(a)}
	}
	grid := func(n int, step float64) []r2.Vec {
		var pts []r2.Vec
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				pts = append(pts, r2.Vec{X: float64(i) * step, Y: float64(j) * step})
			}
		}
		return pts
	}
	tests := []struct {
		name      string
		points    []r2.Vec
		triangles int
		area      float64
	}{
		{"circle", circle, 10, 27},
		{"grid 0.1", grid(6, 0.1), 50, 0.25},
		{"grid 0.3", grid(6, 0.3), 50, 2.25},
		{"grid 1", grid(6, 1), 50, 25},
	}
	for _, tt := range tests {
		m, err := SimpleTriangulate(tt.points, nil, TriangulateOptions{})
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		checkTriangles(t, m)
		if m.NumCells(Triangle) != tt.triangles {
			t.Errorf("%s: got %d triangles, want %d", tt.name, m.NumCells(Triangle), tt.triangles)
		}
		if a := totalArea(m); math.Abs(a-tt.area) > 1e-9 {
			t.Errorf("%s: got area %v, want %v", tt.name, a, tt.area)
		}
		again, err := SimpleTriangulate(tt.points, nil, TriangulateOptions{})
		if err != nil || !again.Equal(m) {
			t.Errorf("%s: triangulation is not deterministic", tt.name)
		}
	}
}

func TestDelaunayReusesSlots(t *testing.T) {
	var pts []r2.Vec
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			pts = append(pts, r2.Vec{X: float64(i), Y: float64(j)})
		}
	}
	d := new(Delaunay).Init(pts, 0)
	for _, p := range pts {
		if _, err := d.Insert(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.InsertSegment(boxVertices, boxVertices+15, MarkerContour); err != nil {
		t.Fatal(err)
	}
	if err := d.Legalize(); err != nil {
		t.Fatal(err)
	}
	alive := 0
	for _, tri := range d.triangles {
		if tri.alive {
			alive++
		}
	}
	if want := 2*(len(d.points)-boxVertices) + 2; alive != want {
		t.Errorf("got %d triangles, want %d", alive, want)
	}
	if len(d.triangles) != alive {
		t.Errorf("%d removed triangles kept their slot", len(d.triangles)-alive)
	}
}

func TestInCircleExact(t *testing.T) {
	a, b, c := r2.Vec{X: 0, Y: 0}, r2.Vec{X: 1, Y: 0}, r2.Vec{X: 1, Y: 1}
	if got := inCircle(a, b, c, r2.Vec{X: 0, Y: 1}); got != 0 {
		t.Errorf("cocircular point: got %v, want 0", got)
	}
	if got := inCircle(a, b, c, r2.Vec{X: 0.5, Y: 0.5}); got <= 0 {
		t.Errorf("inner point: got %v", got)
	}
	if got := inCircle(a, b, c, r2.Vec{X: 0, Y: 1 + 1e-15}); got >= 0 {
		t.Errorf("outer point: got %v", got)
	}
	off := 1e8
	p, q, r := r2.Vec{X: off, Y: off}, r2.Vec{X: off + 1, Y: off}, r2.Vec{X: off + 1, Y: off + 1}
	if got := inCircle(p, q, r, r2.Vec{X: off, Y: off + 1}); got != 0 {
		t.Errorf("offset cocircular point: got %v, want 0", got)
	}
	if got := inCircle(p, q, r, r2.Vec{X: off + 0.5, Y: off + 1.5}); got >= 0 {
		t.Errorf("offset outer point: got %v", got)
	}
	if got := orient(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 1, Y: 1}, r2.Vec{X: 3, Y: 3}); got != 0 {
		t.Errorf("collinear points: got %v, want 0", got)
	}
}

func TestParseSwitches(t *testing.T) {
	tests := []struct {
		in   string
		want TriangulateOptions
		ok   bool
	}{
		{"", TriangulateOptions{}, true},
		{"q30a100", TriangulateOptions{MinAngle: 30, MaxArea: 100}, true},
		{"q", TriangulateOptions{MinAngle: DefaultMinAngle}, true},
		{"pzQq25.5a3e0.001", TriangulateOptions{MinAngle: 25.5, MaxArea: 3, Epsilon: 0.001}, true},
		{"qc", TriangulateOptions{MinAngle: DefaultMinAngle, ConvexHull: true}, true},
		{"c5", TriangulateOptions{}, false},
		{"x", TriangulateOptions{}, false},
		{"q1.2.3", TriangulateOptions{}, false},
	}
	for _, tt := range tests {
		got, err := ParseSwitches(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("%q: got error %v", tt.in, err)
			continue
		}
		if !tt.ok {
			continue
		}
		if got.MinAngle != tt.want.MinAngle || got.MaxArea != tt.want.MaxArea ||
			got.Epsilon != tt.want.Epsilon || got.ConvexHull != tt.want.ConvexHull {
			t.Errorf("%q: got %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
