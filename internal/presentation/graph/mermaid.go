package graph

import (
	"fmt"
	"strings"

	flow "github.com/aretw0/tendril/pkg/graph"
)

// Overlay marks run progress on a rendered graph.
type Overlay struct {
	VisitedSteps []string
	CurrentStep  string
}

// GenerateMermaid produces a Mermaid flowchart from a compiled graph's topology.
// Shapes:
// - Entry step: ((Circle))
// - Step that closes a cycle back to an earlier step: [[Subroutine]]
// - Default: [Rectangle]
// The terminal sentinel is drawn once as a stadium. Router edges carry their label.
func GenerateMermaid(t flow.Topology, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if t.Name != "" {
		fmt.Fprintf(&sb, "    %%%% %s\n", t.Name)
	}

	position := make(map[string]int, len(t.Nodes))
	for i, n := range t.Nodes {
		position[n] = i
	}
	loops := make(map[string]bool)
	for _, e := range t.Edges {
		if to, ok := position[e.To]; ok && to <= position[e.From] {
			loops[e.From] = true
		}
	}

	for _, n := range t.Nodes {
		opener, closer := "[", "]"
		switch {
		case n == t.Entry:
			opener, closer = "((", "))"
		case loops[n]:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(n), opener, n, closer)
	}

	ended := false
	for _, e := range t.Edges {
		to := sanitizeMermaidID(e.To)
		if e.To == flow.End {
			to = "end_"
			if !ended {
				sb.WriteString("    end_([\"end\"])\n")
				ended = true
			}
		}
		arrow := "-->"
		if e.Label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(e.Label, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.From), arrow, to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedSteps {
			safe := sanitizeMermaidID(id)
			if _, known := position[id]; known && !seen[safe] {
				seen[safe] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safe)
			}
		}
		if _, known := position[overlay.CurrentStep]; known {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
