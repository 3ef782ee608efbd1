// Package transform defines the user-supplied description of image
// operations. The JSON shape distinguishes "field absent" from "field set to
// zero" with pointers, because an empty resize object is a valid no-op while
// a crop missing a dimension is a client error.
package transform

import (
	"fmt"
	"strings"

	"github.com/imagevault/imagevault/internal/domain"
)

// Formats the engine can encode to, and therefore the only values accepted
// for Spec.Format.
var SupportedFormats = []string{"bmp", "gif", "jpeg", "png", "tiff"}

type Spec struct {
	Resize  *Resize  `json:"resize,omitempty"`
	Crop    *Crop    `json:"crop,omitempty"`
	Rotate  *float64 `json:"rotate,omitempty"`
	Flip    *Flip    `json:"flip,omitempty"`
	Filters *Filters `json:"filters,omitempty"`
	Format  string   `json:"format,omitempty"`
}

type Resize struct {
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`
}

type Crop struct {
	X      *int `json:"x"`
	Y      *int `json:"y"`
	Width  *int `json:"width"`
	Height *int `json:"height"`
}

type Flip struct {
	Horizontal bool `json:"horizontal,omitempty"`
	Vertical   bool `json:"vertical,omitempty"`
}

// Filters carries one field per named filter. Blur and Pixelate are
// intensities and apply only when positive; the booleans apply with a fixed
// strength when true.
type Filters struct {
	Blur      float64 `json:"blur,omitempty"`
	Dither    bool    `json:"dither,omitempty"`
	Fisheye   bool    `json:"fisheye,omitempty"`
	Greyscale bool    `json:"greyscale,omitempty"`
	Invert    bool    `json:"invert,omitempty"`
	Pixelate  int     `json:"pixelate,omitempty"`
	Sepia     bool    `json:"sepia,omitempty"`
}

// Validate checks structural requirements that JSON decoding cannot express.
// It does not look at the image, so a valid spec can still fail against a
// particular input (for example a crop outside the bounds).
func (s Spec) Validate() error {
	if c := s.Crop; c != nil {
		if c.X == nil || c.Y == nil || c.Width == nil || c.Height == nil {
			return fmt.Errorf("%w: crop requires x, y, width and height", domain.ErrInvalidParameters)
		}
		if *c.Width <= 0 || *c.Height <= 0 {
			return fmt.Errorf("%w: crop width and height must be positive", domain.ErrInvalidParameters)
		}
		if *c.X < 0 || *c.Y < 0 {
			return fmt.Errorf("%w: crop origin must not be negative", domain.ErrInvalidParameters)
		}
	}
	if r := s.Resize; r != nil {
		if r.Width != nil && *r.Width <= 0 {
			return fmt.Errorf("%w: resize width must be positive", domain.ErrInvalidParameters)
		}
		if r.Height != nil && *r.Height <= 0 {
			return fmt.Errorf("%w: resize height must be positive", domain.ErrInvalidParameters)
		}
	}
	if f := s.Filters; f != nil {
		if f.Blur < 0 {
			return fmt.Errorf("%w: blur must not be negative", domain.ErrInvalidParameters)
		}
		if f.Pixelate < 0 {
			return fmt.Errorf("%w: pixelate must not be negative", domain.ErrInvalidParameters)
		}
	}
	if s.Format != "" && !IsSupportedFormat(s.Format) {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, s.Format)
	}
	return nil
}

func IsSupportedFormat(format string) bool {
	for _, f := range SupportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// FormatFromMime strips the "image/" prefix: "image/png" -> "png".
func FormatFromMime(mime string) string {
	return strings.TrimPrefix(mime, "image/")
}

// MimeFromFormat is the inverse of FormatFromMime.
func MimeFromFormat(format string) string {
	return "image/" + format
}
