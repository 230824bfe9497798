package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeCardPNG writes a light image with a dark bar, roughly what a text line
// looks like after scanning.
func writeCardPNG(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{R: 210, G: 205, B: 200, A: 255}
			if y >= 8 && y < 12 && x >= 5 && x < 35 {
				c = color.RGBA{R: 30, G: 35, B: 40, A: 255}
			}
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(t.TempDir(), "card.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}
