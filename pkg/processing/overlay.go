package processing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/moodlens/pkg/types"
)

// MaxOverlayBoxSide is the largest box side, in pixels, that gets highlighted
const MaxOverlayBoxSide = 300

// CreateDetectionOverlay draws the detected object boxes and a swatch strip of
// the palette along the bottom edge. Boxes wider or taller than
// MaxOverlayBoxSide pixels are not drawn.
func (p *Processor) CreateDetectionOverlay(img image.Image, objects []types.DetectedObject, palette []types.Color) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	if w == 0 || h == 0 {
		return nrgba
	}

	red := color.NRGBA{255, 0, 0, 255}
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))

	for _, obj := range objects {
		x0, y0, x1, y1 := boxToPixels(obj, w, h)
		if x1-x0 > MaxOverlayBoxSide || y1-y0 > MaxOverlayBoxSide {
			continue
		}
		drawBox(nrgba, x0, y0, x1, y1, red, stroke)
	}

	drawSwatches(nrgba, palette)
	return nrgba
}

// drawSwatches fills equal-width blocks of each palette color along the bottom edge
func drawSwatches(img *image.NRGBA, palette []types.Color) {
	if len(palette) == 0 {
		return
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	height := min(h, max(8, int(0.06*float64(h))))
	width := max(1, w/len(palette))

	for i, c := range palette {
		x0 := i * width
		x1 := x0 + width
		if i == len(palette)-1 {
			x1 = w
		}
		fill := color.NRGBA{uint8(c.Red), uint8(c.Green), uint8(c.Blue), 255}
		for y := h - height; y < h; y++ {
			drawHLine(img, y, x0, x1, fill)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// boxToPixels converts a normalized box to pixel bounds
func boxToPixels(obj types.DetectedObject, w, h int) (int, int, int, int) {
	x0 := int(clamp(math.Min(obj.XMin, obj.XMax), 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(math.Min(obj.YMin, obj.YMax), 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(math.Max(obj.XMin, obj.XMax), 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(math.Max(obj.YMin, obj.YMax), 0, 1)*float64(h) + 0.5)
	return x0, y0, x1, y1
}

func drawBox(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
