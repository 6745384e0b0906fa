package layout

import (
	"github.com/augview/augview/pkg/domain"
)

// Well-known node identities. Step nodes use the step ID.
const (
	NodeSource = "source"
	NodeOutput = "output"
)

// Node kinds.
const (
	KindSource = "source"
	KindStep   = "step"
	KindOutput = "output"
)

// Layout geometry. Step nodes sit on one row left to right; the source and
// output endpoints sit on a slightly raised row.
const (
	StartX       = 40.0
	StepRowY     = 220.0
	EndpointRowY = 120.0
	Gap          = 60.0
	BaseWidth    = 240.0
	BaseHeight   = 240.0
	Damping      = 0.35
	MinWidth     = 180.0
	MaxWidth     = 420.0
)

// Node is one renderable box. For step nodes, ID is the step ID and Enabled
// mirrors the step's flag; Image carries the node's representative payload
// for the renderer.
type Node struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	Label   string  `json:"label"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Image   string  `json:"image,omitempty"`
	Enabled bool    `json:"enabled"`
	Applied *bool   `json:"applied,omitempty"`
}

// Edge connects two nodes. Active is purely presentational: an inactive
// edge signals that the upstream step's output is not meaningfully
// propagated (the step is disabled).
type Edge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Active bool   `json:"active"`
}

// Compute derives the node and edge lists for a snapshot. It is pure: the
// same snapshot and override contents always yield the same layout. The
// computed left-to-right flow uses each node's actual width (so a resize
// override shifts everything downstream), while a position override moves
// only its own node — dragging one box never re-flows its neighbors.
func Compute(p domain.Pipeline, overrides *OverrideStore) ([]Node, []Edge) {
	nodes := make([]Node, 0, len(p.Steps)+2)
	cursor := StartX

	place := func(n Node, defaultY float64, smart domain.Size) Node {
		n.Width = computeSmartWidth(smart)
		n.Height = BaseHeight
		n.X = cursor
		n.Y = defaultY

		if overrides != nil {
			if ov, ok := overrides.Override(n.ID); ok {
				if ov.Size != nil {
					n.Width = ov.Size.Width
					n.Height = ov.Size.Height
				}
				if ov.Position != nil {
					n.X = ov.Position.X
					n.Y = ov.Position.Y
				}
			}
		}

		cursor += n.Width + Gap
		return n
	}

	nodes = append(nodes, place(Node{
		ID:      NodeSource,
		Kind:    KindSource,
		Label:   p.Name,
		Image:   p.OriginalImage,
		Enabled: true,
	}, EndpointRowY, p.OriginalSize))

	for i := range p.Steps {
		step := &p.Steps[i]
		nodes = append(nodes, place(Node{
			ID:      step.ID,
			Kind:    KindStep,
			Label:   step.Name,
			Image:   step.OutputImage,
			Enabled: step.Enabled,
			Applied: step.Applied,
		}, StepRowY, stepDisplaySize(step, p.OriginalSize)))
	}

	outputSize := p.FinalSize
	if outputSize.IsZero() {
		outputSize = p.OriginalSize
	}
	nodes = append(nodes, place(Node{
		ID:      NodeOutput,
		Kind:    KindOutput,
		Label:   "Output",
		Image:   p.FinalImage,
		Enabled: true,
	}, EndpointRowY, outputSize))

	return nodes, computeEdges(p)
}

// stepDisplaySize picks the representative image size for a step node: its
// output if produced, otherwise the pipeline's original dimensions.
func stepDisplaySize(step *domain.Step, original domain.Size) domain.Size {
	if !step.OutputSize.IsZero() {
		return step.OutputSize
	}
	return original
}

// computeSmartWidth derives a node width hinting at the image's shape.
// Landscape images widen the node proportionally to their aspect ratio,
// damped so extreme ratios do not produce absurd boxes; portrait and square
// images keep the base width. The result is always within
// [MinWidth, MaxWidth].
func computeSmartWidth(size domain.Size) float64 {
	width := BaseWidth
	if r := size.Ratio(); r > 1 {
		width = BaseWidth * (1 + (r-1)*Damping)
	}
	if width < MinWidth {
		width = MinWidth
	}
	if width > MaxWidth {
		width = MaxWidth
	}
	return width
}

func computeEdges(p domain.Pipeline) []Edge {
	if len(p.Steps) == 0 {
		return []Edge{{From: NodeSource, To: NodeOutput, Active: true}}
	}

	edges := make([]Edge, 0, len(p.Steps)+1)
	edges = append(edges, Edge{From: NodeSource, To: p.Steps[0].ID, Active: true})
	for i := 0; i < len(p.Steps)-1; i++ {
		edges = append(edges, Edge{
			From:   p.Steps[i].ID,
			To:     p.Steps[i+1].ID,
			Active: p.Steps[i].Enabled,
		})
	}
	edges = append(edges, Edge{From: p.Steps[len(p.Steps)-1].ID, To: NodeOutput, Active: true})
	return edges
}
