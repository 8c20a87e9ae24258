package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/prashjha/nanomesh"
	"github.com/prashjha/nanomesh/utils"
	"golang.org/x/term"
)

var (
	// Flags
	source      = flag.String("in", "", "Source image, directory or URL")
	destination = flag.String("out", "", "Destination mesh file or directory")
	format      = flag.String("format", "", "Mesh format: json, geojson or msh (default from the -out extension)")
	plotOut     = flag.String("plot", "", "Write a PNG plot of the mesh")
	compareOut  = flag.String("compare", "", "Write a PNG of the mesh drawn over the image")
	maxEdge     = flag.Float64("max-edge", 5, "Maximum contour edge length")
	switches    = flag.String("switches", nanomesh.DefaultSwitches, "Triangle quality switches")
	minAngle    = flag.Float64("min-angle", 0, "Minimum triangle angle, overrides the q switch")
	maxArea     = flag.Float64("max-area", 0, "Maximum triangle area, overrides the a switch")
	precision   = flag.Float64("precision", 0, "Contour simplification tolerance")
	level       = flag.Float64("level", nanomesh.DefaultLevel, "Contour level on label masks")
	background  = flag.Int("background", 0, "Background label")
	holes       = flag.String("holes", "", "Comma separated labels removed from the mesh")
	threshold   = flag.String("threshold", "", "Binarize the image: a value, otsu or li")
	blur        = flag.Int("blur", 0, "Box blur radius applied before thresholding")
	sigma       = flag.Float64("gaussian", 0, "Gaussian blur sigma applied before thresholding")
	strict      = flag.Bool("strict", false, "Fail on ambiguous corners and degenerate contours")
	verbose     = flag.Bool("v", false, "Log pipeline stages")
)

func main() {
	flag.Parse()

	if len(*source) == 0 || len(*destination) == 0 {
		log.Fatal("Usage: nanomesh -in image.png -out mesh.msh")
	}

	p, err := newProcessor()
	if err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	toProcess := make(map[string]string)
	many := false
	if strings.HasPrefix(*source, "http://") || strings.HasPrefix(*source, "https://") {
		f, err := utils.DownloadImage(*source)
		if err != nil {
			log.Fatalf("%v", err)
		}
		f.Close()
		defer os.Remove(f.Name())
		toProcess[f.Name()] = *destination
	} else {
		fs, err := os.Stat(*source)
		if err != nil {
			log.Fatalf("Unable to open source: %v", err)
		}
		switch mode := fs.Mode(); {
		case mode.IsDir():
			many = true
			if toProcess, err = directoryJobs(*source, *destination); err != nil {
				log.Fatalf("%v", err)
			}
		case mode.IsRegular():
			toProcess[*source] = *destination
		}
	}

	spinning := term.IsTerminal(int(os.Stderr.Fd()))
	failed := false
	for in, out := range toProcess {
		var s *utils.Spinner
		if spinning {
			s = utils.NewSpinner(os.Stderr)
			s.Start("Meshing " + filepath.Base(in) + "...")
		}
		start := time.Now()
		mesh, err := run(p, in, out, many)
		if s != nil {
			s.Stop()
		}

		if err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "%s\n", utils.Colorize(fmt.Sprintf("Error meshing %s: %v", in, err), utils.ErrorColor, spinning))
			continue
		}
		fmt.Printf("Generated in: %s\n", utils.Colorize(utils.FormatTime(time.Since(start)), utils.SuccessColor, spinning))
		fmt.Printf("Total number of %d triangles and %d lines over %d points\n",
			mesh.NumCells(nanomesh.Triangle), mesh.NumCells(nanomesh.Line), len(mesh.Points))
		fmt.Printf("Saved as: %s\n", filepath.Base(out))
	}
	if failed {
		os.Exit(1)
	}
}

func newProcessor() (*nanomesh.Processor, error) {
	opts := nanomesh.DefaultOptions()
	opts.MaxEdgeLength = *maxEdge
	opts.Switches = *switches
	opts.MinAngle = *minAngle
	opts.MaxArea = *maxArea
	opts.Precision = *precision
	if *level <= 0 || *level >= 1 {
		return nil, errors.Errorf("level %v must lie in (0, 1)", *level)
	}
	opts.Level = nanomesh.LevelSpec{Default: *level}
	opts.Background = *background
	opts.Strict = *strict

	if *holes != "" {
		for _, h := range strings.Split(*holes, ",") {
			label, err := strconv.Atoi(strings.TrimSpace(h))
			if err != nil {
				return nil, errors.Wrapf(err, "hole label %q", h)
			}
			opts.Holes = append(opts.Holes, label)
		}
	}
	if *blur > 0 {
		opts.Filters = append(opts.Filters, nanomesh.BlurFilter(*blur))
	}
	if *sigma > 0 {
		opts.Filters = append(opts.Filters, nanomesh.GaussianFilter(*sigma))
	}
	switch *threshold {
	case "":
	case "otsu":
		opts.Filters = append(opts.Filters, nanomesh.ThresholdFilter(-1))
	case "li":
		opts.Filters = append(opts.Filters, nanomesh.ThresholdFilter(nanomesh.LiThreshold))
	default:
		t, err := strconv.ParseFloat(*threshold, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "threshold %q", *threshold)
		}
		opts.Filters = append(opts.Filters, nanomesh.ThresholdFilter(t))
	}

	p := nanomesh.NewProcessor(opts)
	if *verbose {
		p.Logger = log.New(os.Stderr, "nanomesh: ", log.Ltime)
	}
	// fail early on a malformed switch string
	if _, err := p.TriangulateOptions(); err != nil {
		return nil, err
	}
	return p, nil
}

// directoryJobs maps every image of dir to a mesh file in the destination directory.
func directoryJobs(dir, dst string) (map[string]string, error) {
	fs, err := os.Stat(dst)
	if err != nil {
		return nil, errors.Wrap(err, "unable to get dir stats")
	}
	if !fs.Mode().IsDir() {
		return nil, errors.New("please specify a directory as destination")
	}
	ext := ".msh"
	if *format != "" {
		f, err := nanomesh.ParseFormat(*format)
		if err != nil {
			return nil, err
		}
		exp, err := nanomesh.NewExporter(f)
		if err != nil {
			return nil, err
		}
		ext = exp.Extension()
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read dir")
	}
	jobs := make(map[string]string)
	for _, f := range files {
		switch filepath.Ext(f.Name()) {
		case ".png", ".jpg", ".jpeg":
			name := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
			jobs[filepath.Join(dir, f.Name())] = filepath.Join(dst, name+ext)
		}
	}
	return jobs, nil
}

// artifactPath returns where a plot requested as name is written for the mesh out.
// When several meshes are written the plot is named after each mesh.
func artifactPath(name, out string, many bool) string {
	if name == "" || !many {
		return name
	}
	base := strings.TrimSuffix(out, filepath.Ext(out))
	return base + "-" + filepath.Base(name)
}

func run(p *nanomesh.Processor, in, out string, many bool) (*nanomesh.Mesh, error) {
	file, err := os.Open(in)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open source file")
	}
	defer file.Close()

	src, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode image")
	}
	plane := nanomesh.PlaneFromImage(src)

	mesh, err := p.Process(plane)
	if err != nil {
		return nil, err
	}

	name := *format
	if name == "" {
		name = filepath.Ext(out)
	}
	f, err := nanomesh.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	exp, err := nanomesh.NewExporter(f)
	if err != nil {
		return nil, err
	}
	if err := writeFile(out, func(w io.Writer) error { return exp.Export(w, mesh) }); err != nil {
		return nil, err
	}

	if path := artifactPath(*plotOut, out, many); path != "" {
		img, err := nanomesh.Plot(mesh, nanomesh.DefaultPlotOptions())
		if err != nil {
			return nil, err
		}
		if err := gg.SavePNG(path, img); err != nil {
			return nil, errors.Wrap(err, "unable to save plot")
		}
	}
	if path := artifactPath(*compareOut, out, many); path != "" {
		img, err := nanomesh.CompareWithImage(mesh, plane, 8)
		if err != nil {
			return nil, err
		}
		if err := gg.SavePNG(path, img); err != nil {
			return nil, errors.Wrap(err, "unable to save comparison")
		}
	}
	return mesh, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create output file")
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
