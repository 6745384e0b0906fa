package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augview/augview/pkg/domain"
)

func TestRegistry(t *testing.T) {
	names := Names()
	for _, want := range []string{
		"horizontal_flip", "vertical_flip", "random_crop",
		"random_brightness_contrast", "gauss_noise", "blur",
		"grayscale", "channel_shuffle", "rotate",
	} {
		assert.Contains(t, names, want)
	}

	_, err := New("nonexistent", nil)
	assert.Error(t, err)
}

func TestNewAppliesParams(t *testing.T) {
	tr, err := New("blur", map[string]any{"blur_limit": 11, "p": 0.9})
	require.NoError(t, err)

	assert.Equal(t, 11, tr.Params()["blur_limit"])
	p, ok := tr.Probability()
	require.True(t, ok)
	assert.Equal(t, 0.9, p)
}

func TestNewRejectsUnknownParam(t *testing.T) {
	_, err := New("blur", map[string]any{"kernel": 3})
	assert.ErrorIs(t, err, domain.ErrUnknownParam)
}

func TestSetParamClampsToBounds(t *testing.T) {
	tr, err := New("blur", nil)
	require.NoError(t, err)

	require.NoError(t, tr.SetParam("p", 5.0))
	p, _ := tr.Probability()
	assert.Equal(t, 1.0, p, "probability clamps to its max")

	require.NoError(t, tr.SetParam("p", -1.0))
	p, _ = tr.Probability()
	assert.Equal(t, 0.0, p, "probability clamps to its min")

	require.NoError(t, tr.SetParam("blur_limit", 1000))
	assert.Equal(t, 31, tr.Params()["blur_limit"])
}

func TestSetParamCoercesNumericTypes(t *testing.T) {
	tr, err := New("blur", nil)
	require.NoError(t, err)

	// Values arrive loosely typed from JSON and YAML alike.
	require.NoError(t, tr.SetParam("blur_limit", float64(9)))
	assert.Equal(t, 9, tr.Params()["blur_limit"])

	require.NoError(t, tr.SetParam("blur_limit", json.Number("13")))
	assert.Equal(t, 13, tr.Params()["blur_limit"])

	require.NoError(t, tr.SetParam("p", 1))
	p, _ := tr.Probability()
	assert.Equal(t, 1.0, p)
}

func TestSetParamRejectsWrongTypes(t *testing.T) {
	tr, err := New("blur", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, tr.SetParam("p", "fast"), domain.ErrInvalidParam)
	assert.ErrorIs(t, tr.SetParam("blur_limit", []float64{1, 2}), domain.ErrInvalidParam)
}

func TestSetParamRangeNormalizesOrder(t *testing.T) {
	tr, err := New("gauss_noise", nil)
	require.NoError(t, err)

	require.NoError(t, tr.SetParam("var_limit", []any{50.0, 10.0}))
	assert.Equal(t, []float64{10, 50}, tr.Params()["var_limit"])

	assert.ErrorIs(t, tr.SetParam("var_limit", []any{1.0}), domain.ErrInvalidParam)
	assert.ErrorIs(t, tr.SetParam("var_limit", 3.0), domain.ErrInvalidParam)
}

func TestParamSpecsCarryProbabilityMarker(t *testing.T) {
	tr, err := New("horizontal_flip", nil)
	require.NoError(t, err)

	specs := tr.ParamSpecs()
	require.Contains(t, specs, "p")
	spec := specs["p"]
	assert.True(t, spec.IsProbability)
	assert.Equal(t, domain.ParamTypeFloat, spec.Type)
	assert.Equal(t, 0.0, spec.Min)
	assert.Equal(t, 1.0, spec.Max)
	assert.Equal(t, 0.05, spec.Step)
	assert.Equal(t, "Probability", spec.Label)
}

func TestParamsAndSpecsAreCopies(t *testing.T) {
	tr, err := New("blur", nil)
	require.NoError(t, err)

	params := tr.Params()
	params["blur_limit"] = 999
	assert.Equal(t, 7, tr.Params()["blur_limit"])

	specs := tr.ParamSpecs()
	delete(specs, "p")
	assert.Contains(t, tr.ParamSpecs(), "p")
}
