package visualize

import (
	"fmt"

	"github.com/emicklei/dot"
)

// MermaidGenerator generates Mermaid flowchart diagrams.
type MermaidGenerator struct{}

// Generate creates a Mermaid flowchart from the graph.
func (m *MermaidGenerator) Generate(g *Graph) string {
	dotGraph := BuildDotGraph(g, MermaidShapes)

	// Generate Mermaid flowchart with left-to-right orientation.
	mermaid := dot.MermaidFlowchart(dotGraph, dot.MermaidLeftToRight)

	// Wrap in markdown code block.
	return fmt.Sprintf("```mermaid\n%s\n```\n", mermaid)
}
