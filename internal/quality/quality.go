// Package quality performs local image checks before any remote inference
// is attempted. It is deliberately cheap: a single decode pass plus a few
// pixel statistics.
package quality

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	dErrors "kycgate/pkg/domain-errors"
)

const (
	maxFileSize = 10 * 1024 * 1024
	minFileSize = 1024

	blurThreshold     = 100.0
	darkThreshold     = 40.0
	brightThreshold   = 235.0
	lowContrastStdDev = 30.0
	minDimension      = 200
	orientationAspect = 1.1
)

// Orientation describes the aspect of the uploaded image.
type Orientation string

const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
	OrientationSquare    Orientation = "square"
)

// Assessment is the result of the local prefilter. It is a plain value and
// safe to copy.
type Assessment struct {
	BlurScore     float64
	Brightness    float64
	Contrast      float64
	IsBlurry      bool
	IsTooDark     bool
	IsTooBright   bool
	IsLowContrast bool
	ResolutionOK  bool
	Orientation   Orientation
	Width         int
	Height        int
	FileSizeKB    float64
	Format        string
	Checksum      string
}

// Analyzer validates and scores raw image uploads.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze decodes the image and computes quality statistics. Input problems
// (size, format) return coded invalid_input errors and must not be retried.
func (a *Analyzer) Analyze(imageBytes []byte) (Assessment, error) {
	if len(imageBytes) > maxFileSize {
		return Assessment{}, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("image too large: %d bytes (max %d)", len(imageBytes), maxFileSize))
	}
	if len(imageBytes) < minFileSize {
		return Assessment{}, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("image too small: %d bytes (min %d)", len(imageBytes), minFileSize))
	}

	img, format, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return Assessment{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unsupported image format: expected JPEG or PNG")
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	gray := toGray(img)
	mean, stddev := grayStats(gray, width, height)
	blur := edgeVariance(gray, width, height)

	sum := md5.Sum(imageBytes)

	return Assessment{
		BlurScore:     blur,
		Brightness:    mean,
		Contrast:      stddev,
		IsBlurry:      blur < blurThreshold,
		IsTooDark:     mean < darkThreshold,
		IsTooBright:   mean > brightThreshold,
		IsLowContrast: stddev < lowContrastStdDev,
		ResolutionOK:  width >= minDimension && height >= minDimension,
		Orientation:   orientation(width, height),
		Width:         width,
		Height:        height,
		FileSizeKB:    float64(len(imageBytes)) / 1024.0,
		Format:        format,
		Checksum:      hex.EncodeToString(sum[:]),
	}, nil
}

func orientation(width, height int) Orientation {
	ratio := float64(width) / float64(height)
	switch {
	case ratio > orientationAspect:
		return OrientationLandscape
	case ratio < 1.0/orientationAspect:
		return OrientationPortrait
	default:
		return OrientationSquare
	}
}

// toGray flattens the image into a row-major luminance buffer.
func toGray(img image.Image) []float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]float64, w*h)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, 16-bit channels scaled to 0..255.
			out[i] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
			i++
		}
	}
	return out
}

func grayStats(gray []float64, width, height int) (mean, stddev float64) {
	n := float64(width * height)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range gray {
		sum += v
	}
	mean = sum / n
	var sq float64
	for _, v := range gray {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}

// edgeVariance applies a 3x3 Laplacian kernel and returns the variance of
// the responses. Sharp images have strong edges and a high variance.
func edgeVariance(gray []float64, width, height int) float64 {
	if width < 3 || height < 3 {
		return 0
	}
	responses := make([]float64, 0, (width-2)*(height-2))
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			center := gray[y*width+x]
			v := 4*center -
				gray[(y-1)*width+x] -
				gray[(y+1)*width+x] -
				gray[y*width+x-1] -
				gray[y*width+x+1]
			responses = append(responses, v)
		}
	}
	n := float64(len(responses))
	var sum float64
	for _, v := range responses {
		sum += v
	}
	mean := sum / n
	var sq float64
	for _, v := range responses {
		d := v - mean
		sq += d * d
	}
	return sq / n
}
