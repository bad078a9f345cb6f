package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/local/qrprint/internal/filetype"
)

// Loader opens one image and returns it ready for placement.
type Loader interface {
	Load(path string) (image.Image, error)
}

// ImageLoader sniffs, decodes and resamples card images to a fixed pixel size.
type ImageLoader struct {
	detector *filetype.Detector
	width    int
	height   int
}

// NewImageLoader returns a loader that resamples every image to width x height.
func NewImageLoader(width, height int) *ImageLoader {
	return &ImageLoader{detector: filetype.New(), width: width, height: height}
}

// Load reads path, checks its content is a supported image and resamples it.
// Transparent areas are flattened onto white.
func (l *ImageLoader) Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	info := l.detector.DetectBytes(data)
	if !info.Supported {
		return nil, fmt.Errorf("unsupported content: %s", info.Description)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", info.MIMEType, err)
	}
	return Resample(src, l.width, l.height), nil
}

// Resample scales src to exactly w x h with Catmull-Rom filtering, ignoring its aspect ratio.
func Resample(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}
