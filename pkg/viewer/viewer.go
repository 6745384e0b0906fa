// Package viewer owns the server-side pipeline: the ordered transform chain,
// the last source image, and the authoritative snapshot that is broadcast
// whole to every client after each run.
package viewer

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/augview/augview/pkg/domain"
	"github.com/augview/augview/pkg/transform"
)

// UpdateFunc receives a snapshot copy after every pipeline run.
type UpdateFunc func(domain.Pipeline)

// Viewer tracks an augmentation pipeline and re-executes it on parameter
// changes. All methods are safe for concurrent use; callbacks are invoked
// outside the viewer lock with a deep copy of the snapshot.
type Viewer struct {
	mu         sync.Mutex
	logger     *slog.Logger
	rng        *rand.Rand
	pipeline   domain.Pipeline
	transforms []transform.Transform
	lastImage  image.Image
	callbacks  []UpdateFunc
}

// New creates an empty viewer with the given pipeline display name.
func New(name string, logger *slog.Logger) *Viewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Viewer{
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		pipeline: domain.Pipeline{
			ID:    uuid.NewString(),
			Name:  name,
			Steps: []domain.Step{},
		},
	}
}

// AddTransform appends a transform to the chain and returns the created
// step. Step IDs are stable for the lifetime of the pipeline; reruns and
// parameter updates never reassign them.
func (v *Viewer) AddTransform(tr transform.Transform) domain.Step {
	v.mu.Lock()
	defer v.mu.Unlock()

	step := domain.Step{
		ID:            uuid.NewString(),
		Name:          tr.Name(),
		TransformType: tr.Kind(),
		Params:        tr.Params(),
		ParamSpecs:    tr.ParamSpecs(),
		Enabled:       true,
	}
	if p, ok := tr.Probability(); ok {
		step.Probability = domain.Float(p)
	}

	v.transforms = append(v.transforms, tr)
	v.pipeline.Steps = append(v.pipeline.Steps, step)
	return step
}

// OnUpdate registers a callback invoked with a snapshot copy after every
// run. A panicking callback is logged and does not affect the others.
func (v *Viewer) OnUpdate(fn UpdateFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.callbacks = append(v.callbacks, fn)
}

// Pipeline returns a deep copy of the current snapshot.
func (v *Viewer) Pipeline() domain.Pipeline {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pipeline.Clone()
}

// Process runs the image through the chain, capturing each step's input and
// output, then notifies subscribers. The image is retained for reruns.
func (v *Viewer) Process(ctx context.Context, img image.Image) error {
	v.mu.Lock()
	err := v.processLocked(ctx, img)
	snapshot := v.pipeline.Clone()
	v.mu.Unlock()

	if err != nil {
		return err
	}
	v.notify(snapshot)
	return nil
}

// Rerun re-executes the chain on the retained image with fresh random draws.
func (v *Viewer) Rerun(ctx context.Context) error {
	v.mu.Lock()
	img := v.lastImage
	if img == nil && v.pipeline.OriginalImage != "" {
		decoded, err := DecodeImage(v.pipeline.OriginalImage)
		if err != nil {
			v.mu.Unlock()
			return err
		}
		img = decoded
	}
	if img == nil {
		v.mu.Unlock()
		return domain.ErrNoImage
	}
	err := v.processLocked(ctx, img)
	snapshot := v.pipeline.Clone()
	v.mu.Unlock()

	if err != nil {
		return err
	}
	v.notify(snapshot)
	return nil
}

// LoadImage decodes an uploaded file and processes it through the chain.
func (v *Viewer) LoadImage(ctx context.Context, r io.Reader) error {
	img, err := ReadImage(r)
	if err != nil {
		return err
	}
	return v.Process(ctx, img)
}

// UpdateStepParam sets one parameter on the step's transform and re-runs the
// pipeline so clients see the effect.
func (v *Viewer) UpdateStepParam(ctx context.Context, stepID, name string, value any) error {
	v.mu.Lock()
	idx := v.stepIndexLocked(stepID)
	if idx < 0 {
		v.mu.Unlock()
		return domain.ErrStepNotFound
	}

	tr := v.transforms[idx]
	if err := tr.SetParam(name, value); err != nil {
		v.mu.Unlock()
		return err
	}

	step := &v.pipeline.Steps[idx]
	step.Params = tr.Params()
	if p, ok := tr.Probability(); ok {
		step.Probability = domain.Float(p)
	}
	v.mu.Unlock()

	return v.rerunAfterEdit(ctx)
}

// ToggleStep enables or disables a step and re-runs the pipeline.
func (v *Viewer) ToggleStep(ctx context.Context, stepID string, enabled bool) error {
	v.mu.Lock()
	idx := v.stepIndexLocked(stepID)
	if idx < 0 {
		v.mu.Unlock()
		return domain.ErrStepNotFound
	}
	v.pipeline.Steps[idx].Enabled = enabled
	v.mu.Unlock()

	return v.rerunAfterEdit(ctx)
}

// rerunAfterEdit re-executes the chain so the edit's effect is visible. When
// no image has been loaded yet the edit still stands, so subscribers are
// notified of the structural change and no error is reported.
func (v *Viewer) rerunAfterEdit(ctx context.Context) error {
	err := v.Rerun(ctx)
	if errors.Is(err, domain.ErrNoImage) {
		v.notify(v.Pipeline())
		return nil
	}
	return err
}

func (v *Viewer) stepIndexLocked(stepID string) int {
	for i := range v.pipeline.Steps {
		if v.pipeline.Steps[i].ID == stepID {
			return i
		}
	}
	return -1
}

func (v *Viewer) processLocked(ctx context.Context, img image.Image) error {
	v.lastImage = img

	encoded, err := EncodeImage(img)
	if err != nil {
		return err
	}
	v.pipeline.OriginalImage = encoded
	v.pipeline.OriginalSize = imageSize(img)

	current := img
	for i := range v.transforms {
		if err := ctx.Err(); err != nil {
			return err
		}

		tr := v.transforms[i]
		step := &v.pipeline.Steps[i]

		in, err := EncodeImage(current)
		if err != nil {
			return err
		}
		step.InputImage = in
		step.InputSize = imageSize(current)

		if !step.Enabled {
			// Disabled steps pass their input through untouched.
			step.OutputImage = in
			step.OutputSize = step.InputSize
			step.Applied = domain.Bool(false)
			continue
		}

		fired := true
		if p, ok := tr.Probability(); ok {
			fired = v.rng.Float64() < p
		}

		if fired {
			out, err := tr.Apply(ctx, v.rng, current)
			if err != nil {
				v.logger.Error("Transform failed, passing input through",
					"step", step.Name, "step_id", step.ID, "error", err)
				fired = false
			} else {
				current = out
			}
		}

		outEnc, err := EncodeImage(current)
		if err != nil {
			return err
		}
		step.OutputImage = outEnc
		step.OutputSize = imageSize(current)
		step.Applied = domain.Bool(fired)
	}

	final, err := EncodeImage(current)
	if err != nil {
		return err
	}
	v.pipeline.FinalImage = final
	v.pipeline.FinalSize = imageSize(current)
	return nil
}

func (v *Viewer) notify(snapshot domain.Pipeline) {
	v.mu.Lock()
	callbacks := make([]UpdateFunc, len(v.callbacks))
	copy(callbacks, v.callbacks)
	v.mu.Unlock()

	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					v.logger.Error("Update callback panicked", "panic", r)
				}
			}()
			fn(snapshot)
		}()
	}
}
