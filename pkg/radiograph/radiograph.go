// Package radiograph supplies reconstruction inputs: a YAML run file with
// the flux images and setup, and binning of raw detector samples into
// count images.
package radiograph

import (
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"pradfield/internal/models"
	"pradfield/pkg/geometry"
)

var (
	// ErrMissingImage is returned when a run file lacks flux or flux_ref.
	ErrMissingImage = errors.New("radiograph: missing flux image")

	// ErrRaggedGrid is returned when the rows of a grid differ in length.
	ErrRaggedGrid = errors.New("radiograph: ragged grid")

	// ErrBadSample is returned for a sample row that is not [x, y] or
	// [x, y, bx, by].
	ErrBadSample = errors.New("radiograph: malformed sample")
)

// Radiograph is one reconstruction problem.
type Radiograph struct {
	// Flux is the count image with the interaction region present
	Flux *mat.Dense

	// FluxRef is the count image without the interaction region
	FluxRef *mat.Dense

	// Physical is the source/region/detector setup
	Physical models.PhysicalParameters

	// BinUM is the bin side length in microns
	BinUM float64

	// Truth is the path-integrated field, when known
	Truth *models.VectorField

	// Fluence and Dropped are set when the images were binned from samples
	Fluence *Fluence
	Dropped int
}

// runFile is the on-disk layout. Grids are lists of rows.
type runFile struct {
	Physical models.PhysicalParameters `yaml:",inline"`
	BinUM    float64                   `yaml:"bin_um"`
	Flux     [][]float64               `yaml:"flux"`
	FluxRef  [][]float64               `yaml:"flux_ref"`
	Truth    *truthFile                `yaml:"bperp_true,omitempty"`

	// Raw detector samples, binned when no flux image is given
	ApertureCM float64     `yaml:"aperture_cm,omitempty"`
	Samples    [][]float64 `yaml:"samples,omitempty"`
}

type truthFile struct {
	X [][]float64 `yaml:"x"`
	Y [][]float64 `yaml:"y"`
}

// Load reads a run file.
func Load(path string) (*Radiograph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading run file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a run file held in memory. A run file without a flux image
// may instead list raw samples, which are binned onto a grid sized from the
// aperture.
func Parse(data []byte) (*Radiograph, error) {
	var rf runFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("error parsing run file: %w", err)
	}
	if len(rf.Flux) == 0 && len(rf.Samples) > 0 {
		return fromSamples(&rf)
	}
	if len(rf.Flux) == 0 || len(rf.FluxRef) == 0 {
		return nil, ErrMissingImage
	}

	rg := &Radiograph{Physical: rf.Physical, BinUM: rf.BinUM}
	var err error
	if rg.Flux, err = toDense(rf.Flux); err != nil {
		return nil, fmt.Errorf("flux: %w", err)
	}
	if rg.FluxRef, err = toDense(rf.FluxRef); err != nil {
		return nil, fmt.Errorf("flux_ref: %w", err)
	}
	if rf.Truth != nil {
		rg.Truth = &models.VectorField{}
		if rg.Truth.X, err = toDense(rf.Truth.X); err != nil {
			return nil, fmt.Errorf("bperp_true.x: %w", err)
		}
		if rg.Truth.Y, err = toDense(rf.Truth.Y); err != nil {
			return nil, fmt.Errorf("bperp_true.y: %w", err)
		}
		if err := models.ValidateSameShape(rg.Truth.X, rg.Truth.Y); err != nil {
			return nil, fmt.Errorf("bperp_true: %w", err)
		}
	}
	return rg, nil
}

// fromSamples bins the samples of rf. The reference is uniform at the mean
// count, and the truth field is the per-bin mean when every sample carries
// one.
func fromSamples(rf *runFile) (*Radiograph, error) {
	spec, err := geometry.FromAperture(rf.ApertureCM, rf.Physical.SourceToRegionCM,
		rf.Physical.SourceToDetectorCM, rf.BinUM)
	if err != nil {
		return nil, err
	}

	samples := make([]models.Sample, len(rf.Samples))
	withField := true
	for i, row := range rf.Samples {
		switch len(row) {
		case 2:
			withField = false
		case 4:
			samples[i].BX, samples[i].BY = row[2], row[3]
		default:
			return nil, fmt.Errorf("%w: sample %d has %d values", ErrBadSample, i, len(row))
		}
		samples[i].X, samples[i].Y = row[0], row[1]
	}

	b := Bin(spec, samples)
	fluence := b.Fluences(spec, rf.ApertureCM*rf.Physical.Magnification())
	rg := &Radiograph{
		Flux:     b.Flux,
		FluxRef:  UniformReference(b.Flux),
		Physical: rf.Physical,
		BinUM:    spec.BinPitch * geometry.MicronsPerCM,
		Fluence:  &fluence,
		Dropped:  b.Dropped,
	}
	if withField {
		if rg.Truth, err = b.Truth(); err != nil {
			return nil, err
		}
	}
	return rg, nil
}

// Save writes a run file, the inverse of Load. Binned samples are written as
// flux images.
func Save(rg *Radiograph, path string) error {
	rf := runFile{
		Physical: rg.Physical,
		BinUM:    rg.BinUM,
		Flux:     fromDense(rg.Flux),
		FluxRef:  fromDense(rg.FluxRef),
	}
	if rg.Truth != nil {
		rf.Truth = &truthFile{X: fromDense(rg.Truth.X), Y: fromDense(rg.Truth.Y)}
	}
	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("error marshaling run file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing run file: %w", err)
	}
	return nil
}

func toDense(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, models.ErrEmptyGrid
	}
	r, c := len(rows), len(rows[0])
	data := make([]float64, 0, r*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRaggedGrid, i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data), nil
}

func fromDense(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		for j := range rows[i] {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}

// GridSpec returns the geometry implied by the run's bin pitch and the flux
// image size.
func (rg *Radiograph) GridSpec() (geometry.GridSpec, error) {
	if rg.Flux == nil {
		return geometry.GridSpec{}, ErrMissingImage
	}
	n, _ := rg.Flux.Dims()
	return geometry.NewGridSpec(rg.BinUM, n)
}
