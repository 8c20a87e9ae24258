/*
Package nanomesh converts segmented images into triangle meshes suitable for numerical simulation.

The contours of every label are traced with marching squares, regularized against the image
frame, merged into a planar straight-line graph and meshed with a constrained Delaunay
triangulation. Every triangle carries the label of the image region it belongs to.

The package provides a command line utility. Check the supported flags by typing:

	$ nanomesh --help

Example meshing a labeled image with a minimum angle of 30 degrees:

	package main

	import (
		"fmt"
		"os"

		"github.com/prashjha/nanomesh"
	)

	func main() {
		p, err := nanomesh.PlaneFromRows(rows)
		if err != nil {
			fmt.Printf("Error reading image: %s", err.Error())
			return
		}

		opts := nanomesh.DefaultOptions()
		opts.Switches = "q30a100"

		mesh, err := nanomesh.PlaneToMesh(p, opts)
		if err != nil {
			fmt.Printf("Error on meshing process: %s", err.Error())
			return
		}

		exp, _ := nanomesh.NewExporter(nanomesh.FormatGmsh)
		exp.Export(os.Stdout, mesh)
	}

*/
package nanomesh
