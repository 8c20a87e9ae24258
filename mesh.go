package nanomesh

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r2"
)

// CellType names a block of cells of the same kind.
type CellType string

// Supported cell types.
const (
	Line     CellType = "line"
	Triangle CellType = "triangle"
	Tetra    CellType = "tetra"
)

// PhysicalKey is the cell data key holding region labels and segment markers.
const PhysicalKey = "physical"

// Mesh holds points, cells grouped by type and per-cell data arrays.
type Mesh struct {
	Points   [][]float64
	Cells    map[CellType][][]int
	CellData map[string]map[CellType][]int
}

// NewMesh returns an empty mesh over the given points.
func NewMesh(points [][]float64) *Mesh {
	return &Mesh{
		Points:   points,
		Cells:    make(map[CellType][][]int),
		CellData: make(map[string]map[CellType][]int),
	}
}

// AddCells stores a cell block. Labels, when given, become its physical data.
func (m *Mesh) AddCells(ct CellType, cells [][]int, labels []int) {
	m.Cells[ct] = cells
	if labels == nil {
		return
	}
	if m.CellData[PhysicalKey] == nil {
		m.CellData[PhysicalKey] = make(map[CellType][]int)
	}
	m.CellData[PhysicalKey][ct] = labels
}

// Dim returns the number of coordinates per point.
func (m *Mesh) Dim() int {
	if len(m.Points) == 0 {
		return 0
	}
	return len(m.Points[0])
}

// CellTypes returns the stored cell types in sorted order.
func (m *Mesh) CellTypes() []CellType {
	types := maps.Keys(m.Cells)
	slices.Sort(types)
	return types
}

// NumCells returns the number of cells of type ct.
func (m *Mesh) NumCells(ct CellType) int { return len(m.Cells[ct]) }

// Labels returns the physical data of the cells of type ct.
func (m *Mesh) Labels(ct CellType) []int { return m.CellData[PhysicalKey][ct] }

// LabelCounts returns how many cells of type ct carry each physical label.
func (m *Mesh) LabelCounts(ct CellType) map[int]int {
	counts := make(map[int]int)
	for _, l := range m.Labels(ct) {
		counts[l]++
	}
	return counts
}

// Equal reports whether both meshes have identical points, cells and cell data.
func (m *Mesh) Equal(o *Mesh) bool {
	if m == nil || o == nil {
		return m == o
	}
	if len(m.Points) != len(o.Points) {
		return false
	}
	for i := range m.Points {
		if !slices.Equal(m.Points[i], o.Points[i]) {
			return false
		}
	}
	if !slices.Equal(m.CellTypes(), o.CellTypes()) {
		return false
	}
	for ct, cells := range m.Cells {
		other := o.Cells[ct]
		if len(cells) != len(other) {
			return false
		}
		for i := range cells {
			if !slices.Equal(cells[i], other[i]) {
				return false
			}
		}
	}
	if len(m.CellData) != len(o.CellData) {
		return false
	}
	for key, data := range m.CellData {
		odata, ok := o.CellData[key]
		if !ok || len(data) != len(odata) {
			return false
		}
		for ct, values := range data {
			if !slices.Equal(values, odata[ct]) {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	points := make([][]float64, len(m.Points))
	for i, p := range m.Points {
		points[i] = slices.Clone(p)
	}
	c := NewMesh(points)
	for ct, cells := range m.Cells {
		cp := make([][]int, len(cells))
		for i, cell := range cells {
			cp[i] = slices.Clone(cell)
		}
		c.Cells[ct] = cp
	}
	for key, data := range m.CellData {
		c.CellData[key] = make(map[CellType][]int, len(data))
		for ct, values := range data {
			c.CellData[key][ct] = slices.Clone(values)
		}
	}
	return c
}

// Subset returns a copy of the mesh holding only the given cell types.
// Points are kept unchanged so cell indices stay valid.
func (m *Mesh) Subset(types ...CellType) *Mesh {
	c := m.Clone()
	for ct := range c.Cells {
		if slices.Contains(types, ct) {
			continue
		}
		delete(c.Cells, ct)
		for _, data := range c.CellData {
			delete(data, ct)
		}
	}
	return c
}

// Transform returns a copy of the mesh with fn applied to every point.
func (m *Mesh) Transform(fn func(p []float64) []float64) *Mesh {
	c := m.Clone()
	for i, p := range c.Points {
		c.Points[i] = fn(p)
	}
	return c
}

// Scale multiplies each coordinate by the matching spacing value.
func (m *Mesh) Scale(spacing ...float64) (*Mesh, error) {
	if len(spacing) != m.Dim() {
		return nil, errors.Wrapf(ErrInvalidImageShape, "%d spacing values for %d dimensional points", len(spacing), m.Dim())
	}
	return m.Transform(func(p []float64) []float64 {
		for i := range p {
			p[i] *= spacing[i]
		}
		return p
	}), nil
}

// Boundary returns the mesh points and its line cells as a graph, ready to be
// triangulated again.
func (m *Mesh) Boundary() (*PSLG, error) {
	if m.Dim() != 2 {
		return nil, errors.Wrapf(ErrInvalidImageShape, "boundary of %d dimensional mesh", m.Dim())
	}
	g := &PSLG{Points: make([]r2.Vec, len(m.Points))}
	for i, p := range m.Points {
		g.Points[i] = r2.Vec{X: p[0], Y: p[1]}
	}
	markers := m.Labels(Line)
	for i, cell := range m.Cells[Line] {
		g.Segments = append(g.Segments, [2]int{cell[0], cell[1]})
		marker := MarkerContour
		if i < len(markers) {
			marker = markers[i]
		}
		g.SegmentMarkers = append(g.SegmentMarkers, marker)
	}
	return g, nil
}
