package layout

import (
	"fmt"
	"io"
	"os"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint
)

// DOTDrawer exports a computed layout as a DOT graph, the headless
// stand-in for the interactive renderer. Active edges are drawn in color;
// inactive edges are dashed gray.
type DOTDrawer struct {
	graph graph.Graph[string, string]
}

// NewDOTDrawer creates an empty drawer.
func NewDOTDrawer() *DOTDrawer {
	return &DOTDrawer{
		graph: graph.New(graph.StringHash, graph.Directed()),
	}
}

// Add feeds a computed layout into the drawer.
func (d *DOTDrawer) Add(nodes []Node, edges []Edge) error {
	activeHex, inactiveHex, err := edgeColors()
	if err != nil {
		return err
	}

	for _, n := range nodes {
		err := d.graph.AddVertex(n.ID,
			graph.VertexAttribute("label", n.Label),
			graph.VertexAttribute("shape", "box"),
			graph.VertexAttribute("pos", fmt.Sprintf("%.0f,%.0f", n.X, n.Y)),
		)
		if err != nil {
			return errors.Wrapf(err, "unable to add vertex %s", n.ID)
		}
	}

	for _, e := range edges {
		attrs := []func(*graph.EdgeProperties){
			graph.EdgeAttribute("color", activeHex),
		}
		if !e.Active {
			attrs = []func(*graph.EdgeProperties){
				graph.EdgeAttribute("color", inactiveHex),
				graph.EdgeAttribute("style", "dashed"),
			}
		}
		if err := d.graph.AddEdge(e.From, e.To, attrs...); err != nil {
			return errors.Wrapf(err, "unable to add edge from %s to %s", e.From, e.To)
		}
	}

	return nil
}

// Draw writes the DOT description to w.
func (d *DOTDrawer) Draw(w io.Writer) error {
	if err := draw.DOT(d.graph, w); err != nil {
		return errors.Wrap(err, "unable to render dot output")
	}
	return nil
}

// DrawFile writes the DOT description to the named file.
func (d *DOTDrawer) DrawFile(name string) error {
	file, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", name)
	}
	defer file.Close()

	return d.Draw(file)
}

func edgeColors() (active, inactive string, err error) {
	activeColor, err := colors.RGB(34, 197, 94)
	if err != nil {
		return "", "", errors.Wrap(err, "unable to build active colour")
	}
	inactiveColor, err := colors.RGB(148, 163, 184)
	if err != nil {
		return "", "", errors.Wrap(err, "unable to build inactive colour")
	}
	return activeColor.ToHEX().String(), inactiveColor.ToHEX().String(), nil
}
