package nanomesh

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

// Format names a mesh file format.
type Format string

// Supported export formats.
const (
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
	FormatGmsh    Format = "msh"
)

// Exporter writes a mesh in a given file format.
type Exporter interface {
	Export(w io.Writer, m *Mesh) error
	Extension() string
	Name() string
}

// ParseFormat maps a format name or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "geojson":
		return FormatGeoJSON, nil
	case "msh", "gmsh":
		return FormatGmsh, nil
	}
	return "", errors.Errorf("unsupported mesh format %q", s)
}

// NewExporter returns the exporter of the given format.
func NewExporter(f Format) (Exporter, error) {
	switch f {
	case FormatJSON:
		return jsonExporter{}, nil
	case FormatGeoJSON:
		return geojsonExporter{}, nil
	case FormatGmsh:
		return gmshExporter{}, nil
	}
	return nil, errors.Errorf("unsupported mesh format %q", f)
}

type meshJSON struct {
	Points   [][]float64                   `json:"points"`
	Cells    map[CellType][][]int          `json:"cells"`
	CellData map[string]map[CellType][]int `json:"cell_data,omitempty"`
}

type jsonExporter struct{}

func (jsonExporter) Name() string      { return "json" }
func (jsonExporter) Extension() string { return ".json" }

func (jsonExporter) Export(w io.Writer, m *Mesh) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(meshJSON{Points: m.Points, Cells: m.Cells, CellData: m.CellData})
}

// ReadJSON decodes a mesh written by the json exporter.
func ReadJSON(r io.Reader) (*Mesh, error) {
	var mj meshJSON
	if err := json.NewDecoder(r).Decode(&mj); err != nil {
		return nil, errors.Wrap(err, "decoding mesh")
	}
	m := NewMesh(mj.Points)
	for ct, cells := range mj.Cells {
		m.Cells[ct] = cells
	}
	for key, data := range mj.CellData {
		m.CellData[key] = data
	}
	return m, nil
}

type geojsonExporter struct{}

func (geojsonExporter) Name() string      { return "geojson" }
func (geojsonExporter) Extension() string { return ".geojson" }

// Export writes one feature per line and triangle cell. Image rows map to the
// y axis and columns to the x axis.
func (geojsonExporter) Export(w io.Writer, m *Mesh) error {
	if m.Dim() != 2 {
		return errors.Errorf("geojson export needs 2D points, got %d", m.Dim())
	}
	point := func(i int) orb.Point {
		return orb.Point{m.Points[i][1], m.Points[i][0]}
	}

	fc := geojson.NewFeatureCollection()
	for _, ct := range m.CellTypes() {
		labels := m.Labels(ct)
		for i, cell := range m.Cells[ct] {
			var geom orb.Geometry
			switch ct {
			case Line:
				geom = orb.LineString{point(cell[0]), point(cell[1])}
			case Triangle:
				geom = orb.Polygon{orb.Ring{point(cell[0]), point(cell[1]), point(cell[2]), point(cell[0])}}
			default:
				continue
			}
			f := geojson.NewFeature(geom)
			f.Properties["cell_type"] = string(ct)
			if i < len(labels) {
				f.Properties[PhysicalKey] = labels[i]
			}
			fc.Append(f)
		}
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encoding geojson")
	}
	_, err = w.Write(data)
	return err
}

type gmshExporter struct{}

func (gmshExporter) Name() string      { return "gmsh" }
func (gmshExporter) Extension() string { return ".msh" }

var gmshElementType = map[CellType]int{
	Line:     1,
	Triangle: 2,
	Tetra:    4,
}

// Export writes the mesh in the Gmsh 2.2 ASCII format. The physical data is
// written both as physical and elementary tag.
func (gmshExporter) Export(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "$MeshFormat")
	fmt.Fprintln(bw, "2.2 0 8")
	fmt.Fprintln(bw, "$EndMeshFormat")

	fmt.Fprintln(bw, "$Nodes")
	fmt.Fprintln(bw, len(m.Points))
	for i, p := range m.Points {
		var xyz [3]float64
		copy(xyz[:], p)
		fmt.Fprintf(bw, "%d %.17g %.17g %.17g\n", i+1, xyz[0], xyz[1], xyz[2])
	}
	fmt.Fprintln(bw, "$EndNodes")

	total := 0
	for _, ct := range m.CellTypes() {
		if _, ok := gmshElementType[ct]; !ok {
			return errors.Errorf("cell type %q has no gmsh element type", ct)
		}
		total += m.NumCells(ct)
	}
	fmt.Fprintln(bw, "$Elements")
	fmt.Fprintln(bw, total)
	id := 1
	for _, ct := range m.CellTypes() {
		labels := m.Labels(ct)
		for i, cell := range m.Cells[ct] {
			tag := 0
			if i < len(labels) {
				tag = labels[i]
			}
			fmt.Fprintf(bw, "%d %d 2 %d %d", id, gmshElementType[ct], tag, tag)
			for _, v := range cell {
				fmt.Fprintf(bw, " %d", v+1)
			}
			fmt.Fprintln(bw)
			id++
		}
	}
	fmt.Fprintln(bw, "$EndElements")
	return bw.Flush()
}
