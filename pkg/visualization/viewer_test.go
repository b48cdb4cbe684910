package visualization

import (
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"pradfield/internal/models"
	"pradfield/pkg/reconstruction"
)

func testResult(t *testing.T) *reconstruction.Result {
	flux := mat.NewDense(4, 4, nil)
	ref := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			flux.Set(i, j, float64(100+10*i+j))
			ref.Set(i, j, 100)
		}
	}
	r := reconstruction.NewReconstructor(&reconstruction.Params{
		BinUM: 100,
		Physical: models.PhysicalParameters{
			SourceToRegionCM:   1,
			SourceToDetectorCM: 30,
			ProtonEnergyMeV:    14.7,
		},
	})
	res, err := r.Process(flux, ref)
	require.NoError(t, err)
	return res
}

func TestRender(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{0, 1, 2, 3, 4, math.Inf(-1)})
	img := Render(m)

	b := img.Bounds()
	assert.Equal(t, 2, b.Dx())
	assert.Equal(t, 3, b.Dy())
	assert.Equal(t, uint16(0), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(65535), img.Gray16At(1, 1).Y)
	// -Inf is not part of the range and renders black
	assert.Equal(t, uint16(0), img.Gray16At(1, 2).Y)
	assert.Equal(t, uint16(32767), img.Gray16At(0, 2).Y)
}

func TestRenderConstant(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{7, 7, 7, 7})
	img := Render(m)
	assert.Equal(t, uint16(32767), img.Gray16At(1, 1).Y)
}

func TestExtractLayer(t *testing.T) {
	v := NewViewer(testResult(t))

	for _, name := range Layers {
		img, err := v.ExtractLayer(name)
		require.NoError(t, err, name)
		assert.Equal(t, 4, img.Bounds().Dx(), name)
	}

	_, err := v.ExtractLayer("flux")
	assert.Error(t, err)
}

func TestSaveAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	v := NewViewer(testResult(t))
	require.NoError(t, v.SaveAll(dir))

	for _, name := range Layers {
		f, err := os.Open(filepath.Join(dir, name+".jpg"))
		require.NoError(t, err, name)
		img, err := jpeg.Decode(f)
		f.Close()
		require.NoError(t, err, name)
		assert.Equal(t, 4, img.Bounds().Dx())
	}
}
