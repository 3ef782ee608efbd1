// Package engine applies a transform.Spec to raw image bytes and re-encodes
// the result. It is a pure function of its inputs: no I/O, no shared state,
// so identical input bytes and spec always produce identical output bytes.
package engine

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/imagevault/imagevault/internal/domain"
	"github.com/imagevault/imagevault/internal/transform"
)

const jpegQuality = 85

// Operations always run in this order, no matter how the request body was
// laid out: resize, crop, rotate, flip, filters. Geometry precedes filters so
// filter intensities act on the final pixel dimensions. Format is not part of
// the loop at all; re-encoding is terminal and happens exactly once at the
// end.
//
// Rotate policy is "fit": the canvas grows to hold the rotated image, with
// the uncovered corners transparent (black after encoding to an opaque
// format). Positive angles rotate counter-clockwise.

// Apply transforms data according to spec and returns the re-encoded bytes
// together with the resolved output mime type. When spec.Format is empty the
// input mime type is reused.
func Apply(data []byte, mimeType string, spec transform.Spec) ([]byte, string, error) {
	if err := spec.Validate(); err != nil {
		return nil, "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrUnsupportedImage, err)
	}

	if spec.Resize != nil {
		img = applyResize(img, *spec.Resize)
	}
	if spec.Crop != nil {
		img, err = applyCrop(img, *spec.Crop)
		if err != nil {
			return nil, "", err
		}
	}
	if spec.Rotate != nil && *spec.Rotate != 0 {
		img = imaging.Rotate(img, *spec.Rotate, transparent)
	}
	if spec.Flip != nil {
		if spec.Flip.Horizontal {
			img = imaging.FlipH(img)
		}
		if spec.Flip.Vertical {
			img = imaging.FlipV(img)
		}
	}
	if spec.Filters != nil {
		img = applyFilters(img, *spec.Filters)
	}

	outMime := mimeType
	if spec.Format != "" {
		outMime = transform.MimeFromFormat(spec.Format)
	}

	out, err := encode(img, transform.FormatFromMime(outMime))
	if err != nil {
		return nil, "", err
	}
	return out, outMime, nil
}

// applyResize treats an empty options object as a no-op; with one dimension
// missing the other is derived to preserve the aspect ratio.
func applyResize(img image.Image, r transform.Resize) image.Image {
	if r.Width == nil && r.Height == nil {
		return img
	}
	var w, h int
	if r.Width != nil {
		w = *r.Width
	}
	if r.Height != nil {
		h = *r.Height
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

func applyCrop(img image.Image, c transform.Crop) (image.Image, error) {
	rect := image.Rect(*c.X, *c.Y, *c.X+*c.Width, *c.Y+*c.Height)
	cropped := imaging.Crop(img, rect)
	if cropped.Bounds().Empty() {
		return nil, fmt.Errorf("%w: crop region lies outside the image", domain.ErrInvalidParameters)
	}
	return cropped, nil
}

// applyFilters runs the named filters in a fixed sequence: blur, dither,
// fisheye, greyscale, invert, pixelate, sepia. Numeric filters apply only
// when positive; zero means "not requested", not "apply with zero effect".
func applyFilters(img image.Image, f transform.Filters) image.Image {
	if f.Blur > 0 {
		img = imaging.Blur(img, f.Blur)
	}
	if f.Dither {
		img = dither(img)
	}
	if f.Fisheye {
		img = fisheye(img)
	}
	if f.Greyscale {
		img = imaging.Grayscale(img)
	}
	if f.Invert {
		img = imaging.Invert(img)
	}
	if f.Pixelate > 0 {
		img = pixelate(img, f.Pixelate)
	}
	if f.Sepia {
		img = sepia(img)
	}
	return img
}

func encode(img image.Image, format string) ([]byte, error) {
	var (
		f    imaging.Format
		opts []imaging.EncodeOption
	)
	switch format {
	case "bmp":
		f = imaging.BMP
	case "gif":
		f = imaging.GIF
	case "jpeg":
		f = imaging.JPEG
		opts = append(opts, imaging.JPEGQuality(jpegQuality))
	case "png":
		f = imaging.PNG
	case "tiff":
		f = imaging.TIFF
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, opts...); err != nil {
		return nil, fmt.Errorf("%w: encoding %s: %v", domain.ErrUnsupportedFormat, format, err)
	}
	return buf.Bytes(), nil
}
