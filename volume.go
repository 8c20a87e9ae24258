package nanomesh

import (
	"github.com/pkg/errors"
)

// Volume is a 3D image stored slice by slice in row-major order.
type Volume struct {
	Depth, Rows, Cols int
	Data              []float64
}

// NewVolume returns a zero filled volume with the given shape.
func NewVolume(depth, rows, cols int) (*Volume, error) {
	if depth <= 0 || rows <= 0 || cols <= 0 {
		return nil, errors.Wrapf(ErrInvalidImageShape, "shape (%d, %d, %d)", depth, rows, cols)
	}
	return &Volume{Depth: depth, Rows: rows, Cols: cols, Data: make([]float64, depth*rows*cols)}, nil
}

func (v *Volume) validate() error {
	if v == nil || v.Depth <= 0 || v.Rows <= 0 || v.Cols <= 0 || len(v.Data) != v.Depth*v.Rows*v.Cols {
		return errors.Wrap(ErrInvalidImageShape, "volume meshing needs a 3D image")
	}
	return nil
}

// At returns the value of voxel (z, r, c).
func (v *Volume) At(z, r, c int) float64 {
	return v.Data[(z*v.Rows+r)*v.Cols+c]
}

// Slice returns a copy of slice z as a plane.
func (v *Volume) Slice(z int) (*Plane, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	if z < 0 || z >= v.Depth {
		return nil, errors.Errorf("slice %d out of range [0, %d)", z, v.Depth)
	}
	n := v.Rows * v.Cols
	p := &Plane{Rows: v.Rows, Cols: v.Cols, Data: make([]float64, n)}
	copy(p.Data, v.Data[z*n:(z+1)*n])
	return p, nil
}

// VolumeMesher is an external tetrahedral mesh generator.
type VolumeMesher interface {
	MeshVolume(v *Volume, switches string) (*Mesh, error)
}

// GenerateVolumeMesh meshes v with engine and scales the result by the voxel
// spacing. ErrUnavailable is returned when no engine is configured.
func GenerateVolumeMesh(v *Volume, spacing [3]float64, switches string, engine VolumeMesher) (*Mesh, error) {
	if err := v.validate(); err != nil {
		return nil, stageError(StageVolume, err)
	}
	if engine == nil {
		return nil, stageError(StageVolume, errors.Wrap(ErrUnavailable, "no volume mesher configured"))
	}
	m, err := engine.MeshVolume(v, switches)
	if err != nil {
		return nil, stageError(StageVolume, errors.Wrap(ErrTriangulationFailure, err.Error()))
	}
	if m == nil || m.Dim() != 3 || m.NumCells(Tetra) == 0 {
		return nil, stageError(StageVolume, errors.Wrap(ErrTriangulationFailure, "volume mesher returned no tetrahedra"))
	}
	for i, s := range spacing {
		if s == 0 {
			spacing[i] = 1
		}
	}
	scaled, err := m.Scale(spacing[:]...)
	if err != nil {
		return nil, stageError(StageVolume, err)
	}
	return scaled, nil
}
