// Package visualization exports reconstruction grids as grayscale images for
// quick inspection.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"pradfield/pkg/diagnostics"
	"pradfield/pkg/reconstruction"
)

// Layers lists the grids a Viewer can extract, in the order SaveAll writes
// them.
var Layers = []string{"contrast", "source", "initial", "potential", "bx", "by", "magnitude"}

// Viewer renders the grids of one reconstruction.
type Viewer struct {
	// result holds the reconstructed grids
	result *reconstruction.Result
}

// NewViewer creates a new viewer over a reconstruction result
func NewViewer(result *reconstruction.Result) *Viewer {
	return &Viewer{result: result}
}

// Layer returns the named grid of the result.
func (v *Viewer) Layer(name string) (mat.Matrix, error) {
	switch name {
	case "contrast":
		return v.result.Contrast, nil
	case "source":
		return v.result.Source, nil
	case "initial":
		return v.result.Initial, nil
	case "potential":
		return v.result.Potential, nil
	case "bx":
		return v.result.Bperp.X, nil
	case "by":
		return v.result.Bperp.Y, nil
	case "magnitude":
		return diagnostics.Magnitude(v.result.Bperp), nil
	default:
		return nil, fmt.Errorf("invalid layer: %s", name)
	}
}

// ExtractLayer renders the named grid as an image. Bin (i, j) maps to pixel
// (i, j), so x runs left to right.
func (v *Viewer) ExtractLayer(name string) (image.Image, error) {
	m, err := v.Layer(name)
	if err != nil {
		return nil, err
	}
	return Render(m), nil
}

// Render maps the finite values of m linearly onto the full 16-bit gray
// range. Non-finite bins are black; a constant grid renders mid-gray.
func Render(m mat.Matrix) *image.Gray16 {
	r, c := m.Dims()
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			val := m.At(i, j)
			if math.IsNaN(val) || math.IsInf(val, 0) {
				continue
			}
			lo = math.Min(lo, val)
			hi = math.Max(hi, val)
		}
	}

	img := image.NewGray16(image.Rect(0, 0, r, c))
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			val := m.At(i, j)
			var level float64
			switch {
			case math.IsNaN(val) || math.IsInf(val, 0):
				level = 0
			case hi == lo:
				level = 0.5
			default:
				level = (val - lo) / (hi - lo)
			}
			img.SetGray16(i, j, color.Gray16{Y: uint16(math.Max(0, math.Min(65535, level*65535)))})
		}
	}
	return img
}

// SaveLayer saves an extracted layer as a JPEG image
func (v *Viewer) SaveLayer(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveAll extracts and saves every layer to outputDir
func (v *Viewer) SaveAll(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for _, name := range Layers {
		img, err := v.ExtractLayer(name)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s.jpg", name))
		if err := v.SaveLayer(img, filename); err != nil {
			return fmt.Errorf("failed to save layer %s: %w", name, err)
		}
	}

	return nil
}
