package transform

import (
	"context"
	"image"
	"math/rand"

	"github.com/augview/augview/pkg/domain"
)

// Func adapts a plain function into a Transform, for callers assembling a
// pipeline in code rather than from a definition file. It exposes no
// tunable parameters.
type Func struct {
	base
	fn func(image.Image) image.Image
}

// NewFunc wraps fn as a custom transform with the given display name.
func NewFunc(name string, fn func(image.Image) image.Image) *Func {
	t := &Func{
		base: newBase(name, map[string]domain.ParamSpec{}),
		fn:   fn,
	}
	t.base.kind = KindCustom
	return t
}

func (t *Func) Apply(_ context.Context, _ *rand.Rand, img image.Image) (image.Image, error) {
	return t.fn(img), nil
}
