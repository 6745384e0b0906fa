package transform

import (
	"context"
	"image"
	"image/draw"
	"math"
	"math/rand"

	"github.com/augview/augview/pkg/domain"
)

func init() {
	Register("horizontal_flip", func(params map[string]any) (Transform, error) {
		return newHorizontalFlip(params)
	})
	Register("vertical_flip", func(params map[string]any) (Transform, error) {
		return newVerticalFlip(params)
	})
	Register("random_crop", func(params map[string]any) (Transform, error) {
		return newRandomCrop(params)
	})
	Register("random_brightness_contrast", func(params map[string]any) (Transform, error) {
		return newBrightnessContrast(params)
	})
	Register("gauss_noise", func(params map[string]any) (Transform, error) {
		return newGaussNoise(params)
	})
	Register("blur", func(params map[string]any) (Transform, error) {
		return newBlur(params)
	})
	Register("grayscale", func(params map[string]any) (Transform, error) {
		return newGrayscale(params)
	})
	Register("channel_shuffle", func(params map[string]any) (Transform, error) {
		return newChannelShuffle(params)
	})
	Register("rotate", func(params map[string]any) (Transform, error) {
		return newRotate(params)
	})
}

// toNRGBA copies img into an NRGBA buffer anchored at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// HorizontalFlip mirrors the image left to right.
type HorizontalFlip struct{ base }

func newHorizontalFlip(params map[string]any) (*HorizontalFlip, error) {
	t := &HorizontalFlip{base: newBase("HorizontalFlip", map[string]domain.ParamSpec{
		"p": probSpec(0.5),
	})}
	return t, t.setParams(params)
}

func (t *HorizontalFlip) Apply(_ context.Context, _ *rand.Rand, img image.Image) (image.Image, error) {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(src.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetNRGBA(x, y, src.NRGBAAt(w-1-x, y))
		}
	}
	return dst, nil
}

// VerticalFlip mirrors the image top to bottom.
type VerticalFlip struct{ base }

func newVerticalFlip(params map[string]any) (*VerticalFlip, error) {
	t := &VerticalFlip{base: newBase("VerticalFlip", map[string]domain.ParamSpec{
		"p": probSpec(0.5),
	})}
	return t, t.setParams(params)
}

func (t *VerticalFlip) Apply(_ context.Context, _ *rand.Rand, img image.Image) (image.Image, error) {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(src.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetNRGBA(x, y, src.NRGBAAt(x, h-1-y))
		}
	}
	return dst, nil
}

// RandomCrop cuts a window of the configured size at a random offset. If the
// image is smaller than the window in a dimension, that dimension is kept
// whole.
type RandomCrop struct{ base }

func newRandomCrop(params map[string]any) (*RandomCrop, error) {
	t := &RandomCrop{base: newBase("RandomCrop", map[string]domain.ParamSpec{
		"width":  {Type: domain.ParamTypeInt, Min: 16, Max: 4096, Step: 1, Default: 256, Label: "Width"},
		"height": {Type: domain.ParamTypeInt, Min: 16, Max: 4096, Step: 1, Default: 256, Label: "Height"},
		"p":      probSpec(1.0),
	})}
	return t, t.setParams(params)
}

func (t *RandomCrop) Apply(_ context.Context, rng *rand.Rand, img image.Image) (image.Image, error) {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	cw, ch := t.intParam("width"), t.intParam("height")
	if cw > w {
		cw = w
	}
	if ch > h {
		ch = h
	}

	var ox, oy int
	if w > cw {
		ox = rng.Intn(w - cw + 1)
	}
	if h > ch {
		oy = rng.Intn(h - ch + 1)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, cw, ch))
	draw.Draw(dst, dst.Bounds(), src, image.Pt(ox, oy), draw.Src)
	return dst, nil
}

// BrightnessContrast shifts brightness and scales contrast by factors drawn
// from the configured limit ranges.
type BrightnessContrast struct{ base }

func newBrightnessContrast(params map[string]any) (*BrightnessContrast, error) {
	t := &BrightnessContrast{base: newBase("RandomBrightnessContrast", map[string]domain.ParamSpec{
		"brightness_limit": {Type: domain.ParamTypeRange, Min: -1, Max: 1, Step: 0.01, Default: []float64{-0.2, 0.2}, Label: "Brightness Limit"},
		"contrast_limit":   {Type: domain.ParamTypeRange, Min: -1, Max: 1, Step: 0.01, Default: []float64{-0.2, 0.2}, Label: "Contrast Limit"},
		"p":                probSpec(0.5),
	})}
	return t, t.setParams(params)
}

func (t *BrightnessContrast) Apply(_ context.Context, rng *rand.Rand, img image.Image) (image.Image, error) {
	bLo, bHi := t.rangeParam("brightness_limit")
	cLo, cHi := t.rangeParam("contrast_limit")
	brightness := drawUniform(rng, bLo, bHi) * 255
	contrast := 1 + drawUniform(rng, cLo, cHi)

	src := toNRGBA(img)
	dst := image.NewNRGBA(src.Rect)
	for i := 0; i < len(src.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(src.Pix[i+c])
			dst.Pix[i+c] = clamp8((v-127.5)*contrast + 127.5 + brightness)
		}
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst, nil
}

// GaussNoise adds zero-mean gaussian noise with a variance drawn from the
// configured range.
type GaussNoise struct{ base }

func newGaussNoise(params map[string]any) (*GaussNoise, error) {
	t := &GaussNoise{base: newBase("GaussNoise", map[string]domain.ParamSpec{
		"var_limit": {Type: domain.ParamTypeRange, Min: 0, Max: 500, Step: 1, Default: []float64{10, 50}, Label: "Var Limit"},
		"p":         probSpec(0.5),
	})}
	return t, t.setParams(params)
}

func (t *GaussNoise) Apply(_ context.Context, rng *rand.Rand, img image.Image) (image.Image, error) {
	lo, hi := t.rangeParam("var_limit")
	sigma := math.Sqrt(drawUniform(rng, lo, hi))

	src := toNRGBA(img)
	dst := image.NewNRGBA(src.Rect)
	for i := 0; i < len(src.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			dst.Pix[i+c] = clamp8(float64(src.Pix[i+c]) + rng.NormFloat64()*sigma)
		}
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst, nil
}

// Blur applies a box blur with an odd kernel size drawn up to blur_limit.
type Blur struct{ base }

func newBlur(params map[string]any) (*Blur, error) {
	t := &Blur{base: newBase("Blur", map[string]domain.ParamSpec{
		"blur_limit": {Type: domain.ParamTypeInt, Min: 3, Max: 31, Step: 2, Default: 7, Label: "Blur Limit"},
		"p":          probSpec(0.5),
	})}
	return t, t.setParams(params)
}

func (t *Blur) Apply(_ context.Context, rng *rand.Rand, img image.Image) (image.Image, error) {
	limit := t.intParam("blur_limit")
	if limit < 3 {
		limit = 3
	}
	// Draw an odd kernel size in [3, limit].
	k := 3 + 2*rng.Intn((limit-3)/2+1)
	radius := k / 2

	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(src.Rect)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [4]float64
			var count float64
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					sx, sy := x+dx, y+dy
					if sx < 0 || sy < 0 || sx >= w || sy >= h {
						continue
					}
					px := src.NRGBAAt(sx, sy)
					sum[0] += float64(px.R)
					sum[1] += float64(px.G)
					sum[2] += float64(px.B)
					sum[3] += float64(px.A)
					count++
				}
			}
			dst.Pix[dst.PixOffset(x, y)+0] = clamp8(sum[0] / count)
			dst.Pix[dst.PixOffset(x, y)+1] = clamp8(sum[1] / count)
			dst.Pix[dst.PixOffset(x, y)+2] = clamp8(sum[2] / count)
			dst.Pix[dst.PixOffset(x, y)+3] = clamp8(sum[3] / count)
		}
	}
	return dst, nil
}

// Grayscale converts to luma while keeping three channels, so downstream
// steps keep working on RGB data.
type Grayscale struct{ base }

func newGrayscale(params map[string]any) (*Grayscale, error) {
	t := &Grayscale{base: newBase("Grayscale", map[string]domain.ParamSpec{
		"p": probSpec(1.0),
	})}
	return t, t.setParams(params)
}

func (t *Grayscale) Apply(_ context.Context, _ *rand.Rand, img image.Image) (image.Image, error) {
	src := toNRGBA(img)
	dst := image.NewNRGBA(src.Rect)
	for i := 0; i < len(src.Pix); i += 4 {
		y := clamp8(0.299*float64(src.Pix[i]) + 0.587*float64(src.Pix[i+1]) + 0.114*float64(src.Pix[i+2]))
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = y, y, y, src.Pix[i+3]
	}
	return dst, nil
}

// ChannelShuffle permutes the RGB channels randomly.
type ChannelShuffle struct{ base }

func newChannelShuffle(params map[string]any) (*ChannelShuffle, error) {
	t := &ChannelShuffle{base: newBase("ChannelShuffle", map[string]domain.ParamSpec{
		"p": probSpec(0.5),
	})}
	return t, t.setParams(params)
}

func (t *ChannelShuffle) Apply(_ context.Context, rng *rand.Rand, img image.Image) (image.Image, error) {
	perm := rng.Perm(3)
	src := toNRGBA(img)
	dst := image.NewNRGBA(src.Rect)
	for i := 0; i < len(src.Pix); i += 4 {
		dst.Pix[i+0] = src.Pix[i+perm[0]]
		dst.Pix[i+1] = src.Pix[i+perm[1]]
		dst.Pix[i+2] = src.Pix[i+perm[2]]
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst, nil
}

// Rotate turns the image about its center by an angle drawn from the limit
// range, sampling nearest-neighbor onto the original canvas. Uncovered
// corners stay transparent black.
type Rotate struct{ base }

func newRotate(params map[string]any) (*Rotate, error) {
	t := &Rotate{base: newBase("Rotate", map[string]domain.ParamSpec{
		"limit": {Type: domain.ParamTypeRange, Min: -180, Max: 180, Step: 1, Default: []float64{-45, 45}, Label: "Limit"},
		"p":     probSpec(0.5),
	})}
	return t, t.setParams(params)
}

func (t *Rotate) Apply(_ context.Context, rng *rand.Rand, img image.Image) (image.Image, error) {
	lo, hi := t.rangeParam("limit")
	angle := drawUniform(rng, lo, hi) * math.Pi / 180

	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(src.Rect)
	cx, cy := float64(w)/2, float64(h)/2
	sin, cos := math.Sin(-angle), math.Cos(-angle)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Inverse-map the destination pixel into the source.
			dx, dy := float64(x)-cx, float64(y)-cy
			sx := int(math.Round(cos*dx - sin*dy + cx))
			sy := int(math.Round(sin*dx + cos*dy + cy))
			if sx < 0 || sy < 0 || sx >= w || sy >= h {
				continue
			}
			dst.SetNRGBA(x, y, src.NRGBAAt(sx, sy))
		}
	}
	return dst, nil
}

func drawUniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
