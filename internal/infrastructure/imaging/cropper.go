package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/pilltong/pill-identifier/internal/core/domain"
)

// Cropper cuts the detected region, expanded by a margin fraction, out
// of the source photo. Fractional coordinates are floored to pixels and
// the window is clamped to the image bounds; detections near the frame
// edge produce a smaller crop rather than an error. A window that
// clamps to zero area fails.
type Cropper struct {
	quality int
}

func NewCropper() *Cropper {
	return &Cropper{quality: 90}
}

func (c *Cropper) Crop(imageBytes []byte, region domain.DetectedRegion, margin float64) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrCrop, "decode image", err)
	}

	bounds := src.Bounds()
	window := cropWindow(region, margin, bounds.Dx(), bounds.Dy())
	window = window.Add(bounds.Min).Intersect(bounds)
	if window.Empty() {
		return nil, domain.WrapError(domain.ErrCrop, "crop image",
			fmt.Errorf("region %+v outside image %dx%d", region, bounds.Dx(), bounds.Dy()))
	}

	cropped := crop(src, window)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, cropped, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, domain.WrapError(domain.ErrCrop, "encode crop", err)
	}
	return out.Bytes(), nil
}

// cropWindow converts the margin-expanded fractional region into pixel
// coordinates by flooring fraction*dimension. The result may extend
// past the image; the caller clamps it.
func cropWindow(region domain.DetectedRegion, margin float64, width, height int) image.Rectangle {
	left := region.Left - margin
	top := region.Top - margin
	right := left + region.Width + 2*margin
	bottom := top + region.Height + 2*margin

	return image.Rect(
		floorFrac(left, width),
		floorFrac(top, height),
		floorFrac(right, width),
		floorFrac(bottom, height),
	)
}

func floorFrac(fraction float64, dimension int) int {
	v := fraction * float64(dimension)
	n := int(v)
	if v < 0 && float64(n) != v {
		n--
	}
	return n
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func crop(src image.Image, window image.Rectangle) image.Image {
	if s, ok := src.(subImager); ok {
		return s.SubImage(window)
	}
	// Fallback for decoders without SubImage support.
	dst := image.NewRGBA(image.Rect(0, 0, window.Dx(), window.Dy()))
	for y := 0; y < window.Dy(); y++ {
		for x := 0; x < window.Dx(); x++ {
			dst.Set(x, y, src.At(window.Min.X+x, window.Min.Y+y))
		}
	}
	return dst
}
