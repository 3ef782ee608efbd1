package engine

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

var transparent = color.NRGBA{0, 0, 0, 0}

// sepia applies the classic sepia weighting matrix to every pixel.
func sepia(img image.Image) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		r := float64(c.R)
		g := float64(c.G)
		b := float64(c.B)
		return color.NRGBA{
			R: clampU8(0.393*r + 0.769*g + 0.189*b),
			G: clampU8(0.349*r + 0.686*g + 0.168*b),
			B: clampU8(0.272*r + 0.534*g + 0.131*b),
			A: c.A,
		}
	})
}

// pixelate averages blocks by downscaling to one sample per block and
// scaling back up with nearest-neighbour so the block edges stay hard.
func pixelate(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	dw := w / size
	if dw < 1 {
		dw = 1
	}
	dh := h / size
	if dh < 1 {
		dh = 1
	}

	small := imaging.Resize(img, dw, dh, imaging.Box)
	return imaging.Resize(small, w, h, imaging.NearestNeighbor)
}

// 4x4 Bayer threshold matrix used by dither.
var bayer = [4][4]float64{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

// dither applies ordered dithering while quantizing to RGB565, the fixed
// strength for the boolean dither filter.
func dither(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)
	b := src.Bounds()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := src.PixOffset(x, y)
			t := bayer[y&3][x&3]/16.0 - 0.5
			src.Pix[i+0] = quantize(src.Pix[i+0], 5, t)
			src.Pix[i+1] = quantize(src.Pix[i+1], 6, t)
			src.Pix[i+2] = quantize(src.Pix[i+2], 5, t)
		}
	}
	return src
}

// quantize reduces v to the given number of bits after nudging it by the
// threshold t in (-0.5, 0.5), then expands back to 8 bits.
func quantize(v uint8, bits uint, t float64) uint8 {
	levels := float64(int(1)<<bits) - 1
	q := math.Round(float64(v)/255.0*levels + t)
	if q < 0 {
		q = 0
	}
	if q > levels {
		q = levels
	}
	return uint8(math.Round(q / levels * 255.0))
}

// fisheye remaps each destination pixel radially toward the centre, leaving
// pixels outside the lens radius untouched. The radius is half the short
// side, the fixed strength for the boolean fisheye filter.
func fisheye(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	cx := float64(w) / 2
	cy := float64(h) / 2
	radius := math.Min(cx, cy)

	dst := image.NewNRGBA(b)
	copy(dst.Pix, src.Pix)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			r := math.Hypot(dx, dy)
			if r == 0 || r >= radius {
				continue
			}
			// r^2/R pulls samples toward the centre, stronger near the rim.
			nr := r * r / radius
			sx := int(math.Round(cx + dx/r*nr))
			sy := int(math.Round(cy + dy/r*nr))
			if sx < 0 || sx >= w || sy < 0 || sy >= h {
				continue
			}
			di := dst.PixOffset(b.Min.X+x, b.Min.Y+y)
			si := src.PixOffset(b.Min.X+sx, b.Min.Y+sy)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

func clampU8(v float64) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}
