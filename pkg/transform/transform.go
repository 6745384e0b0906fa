package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math/rand"

	"github.com/augview/augview/pkg/domain"
)

// Kind values reported as a step's transform_type on the wire.
const (
	KindNative = "native"
	KindCustom = "custom"
)

// Transform is one configurable image operation. Apply must not mutate its
// input image; randomness (noise amplitudes, crop offsets) is drawn from the
// supplied source so reruns produce fresh draws.
type Transform interface {
	Name() string
	Kind() string
	Params() map[string]any
	ParamSpecs() map[string]domain.ParamSpec
	SetParam(name string, value any) error
	Probability() (float64, bool)
	Apply(ctx context.Context, rng *rand.Rand, img image.Image) (image.Image, error)
}

// Factory builds a Transform from a parameter map (e.g. parsed from the
// pipeline definition file). Unknown parameters are rejected.
type Factory func(params map[string]any) (Transform, error)

var registry = map[string]Factory{}

// Register makes a transform constructor available under the given name.
// Called from init() for built-ins.
func Register(name string, f Factory) {
	registry[name] = f
}

// New instantiates a registered transform by name and applies params.
func New(name string, params map[string]any) (Transform, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("transform: unknown transform %q", name)
	}
	return f(params)
}

// Names returns the registered transform names, for diagnostics.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

// probSpec is the parameter specification every probabilistic transform
// exposes for its firing probability, matching the wire contract.
func probSpec(def float64) domain.ParamSpec {
	return domain.ParamSpec{
		Type:          domain.ParamTypeFloat,
		Min:           0,
		Max:           1,
		Step:          0.05,
		Default:       def,
		Label:         "Probability",
		IsProbability: true,
	}
}

// base carries the shared parameter machinery for built-in transforms.
type base struct {
	name   string
	kind   string
	params map[string]any
	specs  map[string]domain.ParamSpec
}

func newBase(name string, specs map[string]domain.ParamSpec) base {
	params := make(map[string]any, len(specs))
	for p, spec := range specs {
		if spec.Default != nil {
			params[p] = spec.Default
		}
	}
	return base{name: name, kind: KindNative, params: params, specs: specs}
}

func (b *base) Name() string { return b.name }
func (b *base) Kind() string { return b.kind }

func (b *base) Params() map[string]any {
	out := make(map[string]any, len(b.params))
	for k, v := range b.params {
		out[k] = v
	}
	return out
}

func (b *base) ParamSpecs() map[string]domain.ParamSpec {
	out := make(map[string]domain.ParamSpec, len(b.specs))
	for k, v := range b.specs {
		out[k] = v
	}
	return out
}

func (b *base) Probability() (float64, bool) {
	for name, spec := range b.specs {
		if spec.IsProbability {
			return b.floatParam(name), true
		}
	}
	return 0, false
}

// SetParam validates the value against the parameter's spec, coercing from
// the loosely typed JSON representation, and clamps numeric values to the
// declared bounds.
func (b *base) SetParam(name string, value any) error {
	spec, ok := b.specs[name]
	if !ok {
		return fmt.Errorf("transform %s: %w: %q", b.name, domain.ErrUnknownParam, name)
	}

	switch spec.Type {
	case domain.ParamTypeFloat:
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("transform %s: %w: %q wants a float", b.name, domain.ErrInvalidParam, name)
		}
		b.params[name] = clampFloat(f, spec.Min, spec.Max)
	case domain.ParamTypeInt:
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("transform %s: %w: %q wants an int", b.name, domain.ErrInvalidParam, name)
		}
		b.params[name] = int(clampFloat(f, spec.Min, spec.Max))
	case domain.ParamTypeBool:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("transform %s: %w: %q wants a bool", b.name, domain.ErrInvalidParam, name)
		}
		b.params[name] = v
	case domain.ParamTypeRange:
		lo, hi, ok := toRange(value)
		if !ok {
			return fmt.Errorf("transform %s: %w: %q wants a [min, max] pair", b.name, domain.ErrInvalidParam, name)
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		b.params[name] = []float64{lo, hi}
	default:
		return fmt.Errorf("transform %s: %w: unsupported spec type %q", b.name, domain.ErrInvalidParam, spec.Type)
	}

	return nil
}

// setParams applies a whole parameter map, used by factories.
func (b *base) setParams(params map[string]any) error {
	for name, value := range params {
		if err := b.SetParam(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (b *base) floatParam(name string) float64 {
	f, _ := toFloat(b.params[name])
	return f
}

func (b *base) intParam(name string) int {
	f, _ := toFloat(b.params[name])
	return int(f)
}

func (b *base) rangeParam(name string) (float64, float64) {
	lo, hi, ok := toRange(b.params[name])
	if !ok {
		return 0, 0
	}
	return lo, hi
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toRange(v any) (float64, float64, bool) {
	switch pair := v.(type) {
	case []float64:
		if len(pair) == 2 {
			return pair[0], pair[1], true
		}
	case [2]float64:
		return pair[0], pair[1], true
	case []any:
		if len(pair) == 2 {
			lo, okLo := toFloat(pair[0])
			hi, okHi := toFloat(pair[1])
			return lo, hi, okLo && okHi
		}
	case []int:
		if len(pair) == 2 {
			return float64(pair[0]), float64(pair[1]), true
		}
	}
	return 0, 0, false
}

func clampFloat(f, lo, hi float64) float64 {
	if lo == 0 && hi == 0 {
		return f
	}
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
