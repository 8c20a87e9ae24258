package nanomesh

import (
	"io"
	"log"
	"sort"

	"github.com/pkg/errors"
)

// DefaultSwitches are the quality constraints used when none are given.
const DefaultSwitches = "q30a100"

// Options configures the image to mesh pipeline.
type Options struct {
	MaxEdgeLength float64         // maximum distance between contour points
	MinAngle      float64         // overrides the q switch when set
	MaxArea       float64         // overrides the a switch when set
	RegionMaxArea map[int]float64 // maximum triangle area per label
	Level         LevelSpec
	Precision     float64 // Douglas-Peucker tolerance, 0 keeps every contour point
	Background    int     // label left uncontoured, also given to unreached triangles
	Holes         []int   // labels removed from the mesh
	Strict        bool    // fail on ambiguous corners and degenerate contours
	Switches      string
	Filters       []Filter // preprocessing applied to the plane
}

// DefaultOptions returns the options used by the command line tool.
func DefaultOptions() Options {
	return Options{
		MaxEdgeLength: 5,
		Switches:      DefaultSwitches,
	}
}

// Processor turns labeled planes into triangle meshes.
type Processor struct {
	Options
	Logger *log.Logger
}

// NewProcessor returns a processor with the given options and no logging.
func NewProcessor(opts Options) *Processor {
	return &Processor{Options: opts}
}

func (pr *Processor) log() *log.Logger {
	if pr.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return pr.Logger
}

// TriangulateOptions resolves the switch string and the explicit constraints.
func (pr *Processor) TriangulateOptions() (TriangulateOptions, error) {
	topts, err := ParseSwitches(pr.Switches)
	if err != nil {
		return topts, err
	}
	if pr.MinAngle > 0 {
		topts.MinAngle = pr.MinAngle
	}
	if pr.MaxArea > 0 {
		topts.MaxArea = pr.MaxArea
	}
	topts.RegionMaxArea = pr.RegionMaxArea
	topts.DefaultLabel = pr.Background
	return topts, nil
}

// Contours extracts and regularizes the contours of every non background label.
// Labels are processed in increasing order.
func (pr *Processor) Contours(p *Plane) ([]Polygon, error) {
	if p == nil || p.Rows < 2 || p.Cols < 2 {
		return nil, stageError(StageExtract, errors.Wrap(ErrInvalidImageShape, "meshing needs a plane of at least 2x2 pixels"))
	}
	byLabel, err := ExtractLabelContours(p, pr.Level, pr.Background)
	if err != nil {
		return nil, stageError(StageExtract, err)
	}
	labels := make([]int, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	var out []Polygon
	for _, label := range labels {
		pr.log().Printf("label %d: %d contours", label, len(byLabel[label]))
		for i, c := range byLabel[label] {
			rc, err := pr.regularize(c, p.Rows, p.Cols)
			if err != nil {
				return nil, stageError(StageRegularize, errors.Wrapf(err, "label %d contour %d", label, i))
			}
			if rc.Len() > 0 {
				out = append(out, rc)
			}
		}
	}
	return out, nil
}

func (pr *Processor) regularize(c Polygon, rows, cols int) (Polygon, error) {
	if pr.Precision > 0 {
		c = c.Simplify(pr.Precision)
	}
	if !c.Closed() {
		if pr.Strict {
			var err error
			if c, err = c.CornerClosure(rows, cols); err != nil {
				return c, err
			}
		} else {
			c = c.CloseCorner(rows, cols)
		}
	}
	if pr.MaxEdgeLength > 0 {
		c = c.Subdivide(pr.MaxEdgeLength)
	}
	if c.Closed() {
		if err := c.Validate(); err != nil {
			if pr.Strict {
				return c, err
			}
			pr.log().Printf("dropping contour: %v", err)
			return Polygon{}, nil
		}
	}
	return c, nil
}

// Graph builds the planar graph of the plane with its region and hole markers.
func (pr *Processor) Graph(p *Plane) (*PSLG, error) {
	contours, err := pr.Contours(p)
	if err != nil {
		return nil, err
	}
	maxEdge := pr.MaxEdgeLength
	if maxEdge <= 0 {
		maxEdge = float64(Max(p.Rows, p.Cols))
	}
	g, err := BuildPSLG(contours, p.Rows, p.Cols, maxEdge)
	if err != nil {
		return nil, stageError(StageBuildGraph, err)
	}
	g.Regions, g.Holes = RegionMarkers(p, pr.Holes...)
	pr.log().Printf("graph: %d points, %d segments, %d regions, %d holes",
		len(g.Points), len(g.Segments), len(g.Regions), len(g.Holes))
	return g, nil
}

// Process runs the filters, contour extraction, graph building and
// triangulation stages on p. Errors are returned as *StageError.
func (pr *Processor) Process(p *Plane) (*Mesh, error) {
	if len(pr.Filters) > 0 {
		if p == nil {
			return nil, stageError(StageExtract, errors.Wrap(ErrInvalidImageShape, "nil plane"))
		}
		var err error
		if p, err = NewPipeline(pr.Filters...).Run(p); err != nil {
			return nil, stageError(StageExtract, err)
		}
	}
	topts, err := pr.TriangulateOptions()
	if err != nil {
		return nil, stageError(StageTriangulate, err)
	}
	g, err := pr.Graph(p)
	if err != nil {
		return nil, err
	}

	mesh, skipped, err := triangulate(g, topts)
	if err != nil {
		return nil, stageError(StageTriangulate, err)
	}
	for _, m := range skipped {
		pr.log().Printf("region marker %v outside the meshed domain", m)
	}
	pr.log().Printf("mesh: %d points, %d triangles, %d lines",
		len(mesh.Points), mesh.NumCells(Triangle), mesh.NumCells(Line))
	return mesh, nil
}

// PlaneToMesh meshes p with the given options.
func PlaneToMesh(p *Plane, opts Options) (*Mesh, error) {
	return NewProcessor(opts).Process(p)
}
