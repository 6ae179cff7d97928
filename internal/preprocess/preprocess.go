// Package preprocess normalizes uploaded page images before they reach the
// transcription engines: flatten transparency onto white and cap the longest
// dimension so vision providers see a consistent input.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

type Result struct {
	Data           []byte
	MIME           string
	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
	Steps          []string
}

// Normalize decodes PNG or JPEG input, flattens any alpha channel onto a
// white background, downscales so neither dimension exceeds maxDimension
// (Catmull-Rom), and re-encodes as PNG. Images already within bounds are
// still flattened and re-encoded so every engine receives the same format.
func Normalize(data []byte, maxDimension int) (Result, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	res := Result{
		MIME:           "image/png",
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}

	flattened := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flattened, flattened.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flattened, flattened.Bounds(), src, bounds.Min, draw.Over)
	res.Steps = append(res.Steps, "flatten")

	out := flattened
	width, height := bounds.Dx(), bounds.Dy()
	if maxDimension > 0 && (width > maxDimension || height > maxDimension) {
		scale := float64(maxDimension) / float64(width)
		if height > width {
			scale = float64(maxDimension) / float64(height)
		}
		newW := int(float64(width) * scale)
		newH := int(float64(height) * scale)
		if newW < 1 {
			newW = 1
		}
		if newH < 1 {
			newH = 1
		}

		scaled := image.NewRGBA(image.Rect(0, 0, newW, newH))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), out, out.Bounds(), xdraw.Over, nil)
		out = scaled
		res.Steps = append(res.Steps, fmt.Sprintf("downscale %dx%d", newW, newH))
	}

	res.Width = out.Bounds().Dx()
	res.Height = out.Bounds().Dy()

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return Result{}, fmt.Errorf("encode image: %w", err)
	}
	res.Data = buf.Bytes()
	return res, nil
}
