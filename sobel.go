package nanomesh

import "math"

type kernel [][]int32

// chamferKernel holds the 3-4 chamfer weights, an integer approximation of the
// euclidean distance between neighbouring pixels scaled by 3.
var chamferKernel = kernel{
	{4, 3, 4},
	{3, 0, 3},
	{4, 3, 4},
}

// chamferDistance returns, for every pixel, the chamfer distance to the closest
// label boundary. Pixels with a 4-neighbour of another label and pixels on the
// image border are boundary pixels with distance zero.
func chamferDistance(p *Plane) []int32 {
	var (
		width  = p.Cols
		height = p.Rows
		dist   = make([]int32, width*height)
	)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if isLabelBoundary(p, y, x) {
				dist[y*width+x] = 0
			} else {
				dist[y*width+x] = math.MaxInt32 / 2
			}
		}
	}

	relax := func(y, x, row, col int) {
		sy, sx := y+row, x+col
		if sy < 0 || sy >= height || sx < 0 || sx >= width {
			return
		}
		if d := dist[sy*width+sx] + chamferKernel[row+1][col+1]; d < dist[y*width+x] {
			dist[y*width+x] = d
		}
	}

	// forward pass uses the neighbours already visited in raster order
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			relax(y, x, -1, -1)
			relax(y, x, -1, 0)
			relax(y, x, -1, 1)
			relax(y, x, 0, -1)
		}
	}
	// backward pass
	for y := height - 1; y >= 0; y-- {
		for x := width - 1; x >= 0; x-- {
			relax(y, x, 1, 1)
			relax(y, x, 1, 0)
			relax(y, x, 1, -1)
			relax(y, x, 0, 1)
		}
	}
	return dist
}

func isLabelBoundary(p *Plane, r, c int) bool {
	if r == 0 || c == 0 || r == p.Rows-1 || c == p.Cols-1 {
		return true
	}
	l := p.Label(r, c)
	return p.Label(r-1, c) != l || p.Label(r+1, c) != l ||
		p.Label(r, c-1) != l || p.Label(r, c+1) != l
}
