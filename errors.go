package nanomesh

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds returned by the meshing pipeline. Use errors.Is to test for them,
// the returned errors usually carry additional context.
var (
	ErrInvalidImageShape      = errors.New("invalid image shape")
	ErrDegenerateContour      = errors.New("degenerate contour")
	ErrAmbiguousCornerClosure = errors.New("ambiguous corner closure")
	ErrPSLGIntersection       = errors.New("pslg edges intersect")
	ErrDanglingSegment        = errors.New("pslg has a dangling segment")
	ErrTriangulationFailure   = errors.New("triangulation failed")
	ErrUnavailable            = errors.New("capability unavailable")
)

// Pipeline stage names reported by StageError.
const (
	StageExtract     = "extract"
	StageRegularize  = "regularize"
	StageBuildGraph  = "build-graph"
	StageTriangulate = "triangulate"
	StageVolume      = "volume"
)

// StageError identifies the pipeline stage that aborted a meshing call.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

// Cause is used by errors.Cause from github.com/pkg/errors.
func (e *StageError) Cause() error { return e.Err }

func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
