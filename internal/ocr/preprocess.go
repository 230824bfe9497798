package ocr

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sunshineplan/imgconv"

	"idscan/internal/logger"
)

// ProcessedSuffix is appended to the source path for the preprocessed image.
const ProcessedSuffix = "_processed.png"

// Preprocessor prepares uploaded images for OCR.
type Preprocessor struct {
	// DilateSize is the side of the square structuring element, default 3.
	DilateSize int

	log zerolog.Logger
}

// NewPreprocessor creates a preprocessor with a 3x3 dilation kernel.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		DilateSize: 3,
		log:        logger.WithComponent("preprocess"),
	}
}

// PreprocessFile decodes the image at srcPath, normalizes it and writes the
// result as PNG next to it. It returns the path of the written file, which
// the caller is responsible for removing.
func (p *Preprocessor) PreprocessFile(ctx context.Context, srcPath string) (string, error) {
	const op = "PreprocessFile"

	if err := ctx.Err(); err != nil {
		return "", WrapOCRError(op, err, "canceled before decoding")
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return "", WrapOCRError(op, err, "failed to open image")
	}
	defer in.Close()

	src, err := imgconv.Decode(in)
	if err != nil {
		return "", WrapOCRError(op, ErrInvalidImage, err.Error())
	}

	processed := p.Preprocess(src)

	outPath := srcPath + ProcessedSuffix
	out, err := os.Create(outPath)
	if err != nil {
		return "", WrapOCRError(op, err, "failed to create processed image")
	}
	if err := imgconv.Write(out, processed, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", WrapOCRError(op, err, "failed to encode processed image")
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", WrapOCRError(op, err, "failed to write processed image")
	}

	b := processed.Bounds()
	p.log.Debug().
		Str("source", srcPath).
		Str("processed", outPath).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Msg("Image preprocessed")

	return outPath, nil
}

// Preprocess converts img to grayscale, binarizes it with Otsu's threshold
// and dilates the result to connect broken character strokes.
func (p *Preprocessor) Preprocess(img image.Image) *image.Gray {
	gray := Grayscale(img)
	bin := Binarize(gray, OtsuThreshold(gray))
	size := p.DilateSize
	if size <= 0 {
		size = 3
	}
	return Dilate(bin, size)
}

// Grayscale converts img to 8-bit luma.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// OtsuThreshold returns the threshold that maximizes between-class variance
// of the grayscale histogram.
func OtsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var (
		sumB, best float64
		wB         int
		threshold  uint8
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(t)
		}
	}
	return threshold
}

// Binarize maps pixels above t to white and the rest to black.
func Binarize(gray *image.Gray, t uint8) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y > t {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// Dilate applies a size x size maximum filter. Pixels outside the image are ignored.
func Dilate(gray *image.Gray, size int) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(b)
	r := size / 2
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint8
			for dy := -r; dy <= size-1-r; dy++ {
				for dx := -r; dx <= size-1-r; dx++ {
					pt := image.Pt(x+dx, y+dy)
					if !pt.In(b) {
						continue
					}
					if g := gray.GrayAt(pt.X, pt.Y).Y; g > v {
						v = g
					}
				}
			}
			out.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return out
}

// RemoveProcessed deletes the preprocessed companion of srcPath, if any.
func RemoveProcessed(srcPath string) error {
	path := srcPath
	if !strings.HasSuffix(path, ProcessedSuffix) {
		path += ProcessedSuffix
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
