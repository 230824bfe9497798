package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunshineplan/imgconv"
)

func TestOtsuThresholdSplitsBimodalImage(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			v := uint8(40)
			if x >= 5 {
				v = 200
			}
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}

	th := OtsuThreshold(g)

	assert.GreaterOrEqual(t, th, uint8(40))
	assert.Less(t, th, uint8(200))
}

func TestOtsuThresholdEmptyImage(t *testing.T) {
	assert.Equal(t, uint8(0), OtsuThreshold(image.NewGray(image.Rect(0, 0, 0, 0))))
}

func TestBinarizeProducesOnlyBlackAndWhite(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 1))
	g.SetGray(0, 0, color.Gray{Y: 10})
	g.SetGray(1, 0, color.Gray{Y: 128})
	g.SetGray(2, 0, color.Gray{Y: 129})

	out := Binarize(g, 128)

	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), out.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(255), out.GrayAt(2, 0).Y)
}

func TestDilateGrowsWhiteRegions(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 5, 5))
	g.SetGray(2, 2, color.Gray{Y: 255})

	out := Dilate(g, 3)

	assert.Equal(t, 9, countWhite(out))
	assert.Equal(t, uint8(255), out.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), out.GrayAt(4, 2).Y)
}

func TestDilateIgnoresPixelsOutsideImage(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 4))
	g.SetGray(0, 0, color.Gray{Y: 255})

	out := Dilate(g, 3)

	assert.Equal(t, 4, countWhite(out))
}

func TestPreprocessKeepsBoundsAndBinarizes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 12, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 12; x++ {
			img.Set(x, y, color.RGBA{R: uint8(20 * x), G: uint8(20 * x), B: uint8(20 * x), A: 255})
		}
	}

	out := NewPreprocessor().Preprocess(img)

	require.Equal(t, img.Bounds(), out.Bounds())
	for _, v := range out.Pix {
		assert.Contains(t, []uint8{0, 255}, v)
	}
}

func TestPreprocessFileWritesProcessedPNG(t *testing.T) {
	src := writeCardPNG(t)

	out, err := NewPreprocessor().PreprocessFile(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src+ProcessedSuffix, out)

	f, err := os.Open(out)
	require.NoError(t, err)
	img, err := imgconv.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())

	require.NoError(t, RemoveProcessed(src))
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is not an error
	assert.NoError(t, RemoveProcessed(src))
}

func TestPreprocessFileRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an image"), 0o644))

	_, err := NewPreprocessor().PreprocessFile(context.Background(), path)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidImage))
	var ocrErr *OCRError
	assert.ErrorAs(t, err, &ocrErr)
	assert.Equal(t, "PreprocessFile", ocrErr.Op)
}

func TestPreprocessFileMissingFile(t *testing.T) {
	_, err := NewPreprocessor().PreprocessFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func countWhite(g *image.Gray) int {
	n := 0
	for _, v := range g.Pix {
		if v == 255 {
			n++
		}
	}
	return n
}
