package nanomesh

import (
	"image"
	"testing"
)

func TestLabelColor(t *testing.T) {
	seen := make(map[[3]uint8]int)
	for l := -2; l < 10; l++ {
		c := LabelColor(l)
		if c != LabelColor(l) {
			t.Fatalf("label %d: color is not stable", l)
		}
		if c.A != 255 {
			t.Errorf("label %d: got alpha %d", l, c.A)
		}
		for _, v := range []uint8{c.R, c.G, c.B} {
			if v < 64 || v > 224 {
				t.Errorf("label %d: channel %d out of range", l, v)
			}
		}
		key := [3]uint8{c.R, c.G, c.B}
		if prev, ok := seen[key]; ok {
			t.Errorf("labels %d and %d share color %v", prev, l, c)
		}
		seen[key] = l
	}
	if p := Palette([]int{0, 1, 1}); len(p) != 2 || p[1] != LabelColor(1) {
		t.Errorf("got palette %v", p)
	}
}

func TestPlot(t *testing.T) {
	img, err := Plot(squareMesh(), DefaultPlotOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds(); got != image.Rect(0, 0, 40, 40) {
		t.Errorf("got bounds %v", got)
	}

	opts := DefaultPlotOptions()
	opts.Scale, opts.Margin, opts.ShowLabels = 10, 0, true
	img, err = Plot(squareMesh(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds(); got != image.Rect(0, 0, 10, 10) {
		t.Errorf("got bounds %v", got)
	}

	if _, err := Plot(NewMesh([][]float64{{0, 0, 0}}), opts); err == nil {
		t.Error("expected error for 3D mesh")
	}
}

func TestCompareWithImage(t *testing.T) {
	p := blockImage(3, 4)
	img, err := CompareWithImage(squareMesh(), p, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds(); got != image.Rect(0, 0, 20, 15) {
		t.Errorf("got bounds %v", got)
	}
	if _, err := CompareWithImage(squareMesh(), p, 0); err == nil {
		t.Error("expected error for zero scale")
	}
}
