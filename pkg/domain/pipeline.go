package domain

// Size is a [width, height] pair in pixels, serialized as a two-element
// JSON array to match the wire format.
type Size [2]int

// Width returns the horizontal extent in pixels.
func (s Size) Width() int { return s[0] }

// Height returns the vertical extent in pixels.
func (s Size) Height() int { return s[1] }

// IsZero reports whether the size is unset.
func (s Size) IsZero() bool { return s[0] == 0 && s[1] == 0 }

// Ratio returns width/height, or 0 when the size is degenerate.
func (s Size) Ratio() float64 {
	if s[0] <= 0 || s[1] <= 0 {
		return 0
	}
	return float64(s[0]) / float64(s[1])
}

// Param type identifiers used in ParamSpec.Type.
const (
	ParamTypeFloat = "float"
	ParamTypeInt   = "int"
	ParamTypeBool  = "bool"
	ParamTypeRange = "range"
)

// ParamSpec describes one tunable parameter of a step for UI generation:
// its value type, bounds, slider step and display label.
type ParamSpec struct {
	Type          string  `json:"type"`
	Min           float64 `json:"min,omitempty"`
	Max           float64 `json:"max,omitempty"`
	Step          float64 `json:"step,omitempty"`
	Default       any     `json:"default,omitempty"`
	Label         string  `json:"label,omitempty"`
	IsProbability bool    `json:"is_probability,omitempty"`
}

// Step is one configurable unit in the processing chain. Applied is only
// meaningful when the step is enabled and carries a probability: it reports
// whether the probabilistic step actually fired on the last run.
//
// InputImage and OutputImage are base64-encoded PNG payloads; the empty
// string means "not yet produced".
type Step struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	TransformType string               `json:"transform_type"`
	Params        map[string]any       `json:"params"`
	ParamSpecs    map[string]ParamSpec `json:"param_specs"`
	InputImage    string               `json:"input_image,omitempty"`
	OutputImage   string               `json:"output_image,omitempty"`
	InputSize     Size                 `json:"input_size,omitempty"`
	OutputSize    Size                 `json:"output_size,omitempty"`
	Enabled       bool                 `json:"enabled"`
	Applied       *bool                `json:"applied,omitempty"`
	Probability   *float64             `json:"probability"`
}

// Pipeline is the full ordered chain plus its original and final images.
// Steps order is execution order.
type Pipeline struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Steps         []Step `json:"steps"`
	OriginalImage string `json:"original_image,omitempty"`
	OriginalSize  Size   `json:"original_size,omitempty"`
	FinalImage    string `json:"final_image,omitempty"`
	FinalSize     Size   `json:"final_size,omitempty"`
}

// FindStep returns a pointer into Steps for the step with the given ID.
func (p *Pipeline) FindStep(id string) (*Step, bool) {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the pipeline. Callers that hand snapshots
// across goroutine boundaries clone first so later mutations by the owner
// cannot alias into a published snapshot.
func (p Pipeline) Clone() Pipeline {
	out := p
	out.Steps = make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		cs := s
		cs.Params = make(map[string]any, len(s.Params))
		for k, v := range s.Params {
			cs.Params[k] = v
		}
		cs.ParamSpecs = make(map[string]ParamSpec, len(s.ParamSpecs))
		for k, v := range s.ParamSpecs {
			cs.ParamSpecs[k] = v
		}
		if s.Applied != nil {
			cs.Applied = Bool(*s.Applied)
		}
		if s.Probability != nil {
			cs.Probability = Float(*s.Probability)
		}
		out.Steps[i] = cs
	}
	return out
}

// Bool returns a pointer to b, for populating optional wire fields.
func Bool(b bool) *bool { return &b }

// Float returns a pointer to f, for populating optional wire fields.
func Float(f float64) *float64 { return &f }
