package viewer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	// Decoders for uploaded files; the encode side is always PNG.
	_ "image/gif"
	_ "image/jpeg"

	"github.com/augview/augview/pkg/domain"
)

// EncodeImage encodes img as a base64 PNG string, the fixed media type for
// all image payloads on the wire.
func EncodeImage(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("viewer: encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeImage decodes a base64 image payload produced by EncodeImage.
func DecodeImage(s string) (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("viewer: decode base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("viewer: decode image: %w", err)
	}
	return img, nil
}

// ReadImage decodes an uploaded image file in any registered format.
func ReadImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("viewer: decode upload: %w", err)
	}
	return img, nil
}

func imageSize(img image.Image) domain.Size {
	b := img.Bounds()
	return domain.Size{b.Dx(), b.Dy()}
}

// GradientImage produces the demo source image used when no file is
// supplied: red rising top to bottom, green left to right, constant blue.
func GradientImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(255 * y / h),
				G: uint8(255 * x / w),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}
