package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/coperacha/pkg/dialogue"
	"github.com/aretw0/coperacha/pkg/domain"
)

// Overlay marks live session data on the graph.
type Overlay struct {
	// Current is the step a session is waiting in.
	Current domain.Step
	// Sessions counts sessions per step.
	Sessions map[domain.Step]int
}

// GenerateMermaid produces a Mermaid flowchart of the dialogue steps.
// It applies semantic styling:
// - IDLE: ((Circle))
// - Free-text input: [/Parallelogram/]
// - Choice: [Rectangle]
// Transitions that change flow are dotted. The overlay, if any, highlights
// the current step and annotates session counts.
func GenerateMermaid(steps []domain.Step, edges []dialogue.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, step := range steps {
		id := sanitizeMermaidID(string(step))

		opener, closer := "[", "]"
		switch {
		case step == domain.StepIdle:
			opener, closer = "((", "))"
		case dialogue.FreeText(step):
			opener, closer = "[/", "/]"
		}

		label := string(step)
		if overlay != nil && overlay.Sessions[step] > 0 {
			label = fmt.Sprintf("%s <br/> 👥 %d", step, overlay.Sessions[step])
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label, closer)
	}

	for _, e := range edges {
		from := sanitizeMermaidID(string(e.From))
		to := sanitizeMermaidID(string(e.To))
		cond := strings.ReplaceAll(e.On, "\"", "'")

		if dialogue.FlowOf(e.From) != dialogue.FlowOf(e.To) {
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, cond, to)
			continue
		}
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, cond, to)
	}

	if overlay != nil && overlay.Current != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(string(overlay.Current)))
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
