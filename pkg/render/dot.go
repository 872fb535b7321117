package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/resolve"
)

// ProjectNode is the DOT node that root requirements hang from.
const ProjectNode = "__project__"

// Options configures graph rendering.
type Options struct {
	// Detailed adds the source kind and extras to node labels and the
	// requirement specifier to edge labels. When false, nodes show
	// "name version" only.
	Detailed bool

	// Project labels the root node. Empty uses ProjectNode.
	Project string
}

// ToDOT converts a resolution graph to Graphviz DOT. Output is
// deterministic: nodes are sorted by name and edges follow [resolve.Graph.Edges].
func ToDOT(g *resolve.Graph, opts Options) string {
	project := opts.Project
	if project == "" {
		project = ProjectNode
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  %q [label=%q, style=\"rounded,filled,dashed\", fillcolor=lightgrey];\n", ProjectNode, project)
	for _, n := range g.Nodes() {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.Name, strings.Join(fmtAttrs(n, opts.Detailed), ", "))
	}

	buf.WriteString("\n")
	seen := make(map[[2]string]bool)
	for _, e := range g.Edges() {
		from := e.From
		if from == "" {
			from = ProjectNode
		}
		if _, ok := g.Node(e.To); !ok || seen[[2]string{from, e.To}] {
			continue
		}
		seen[[2]string{from, e.To}] = true
		if opts.Detailed {
			if spec := edgeLabel(e); spec != "" {
				fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", from, e.To, spec)
				continue
			}
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", from, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n *resolve.Node, detailed bool) string {
	label := n.Name + " " + n.Version.String()
	if !detailed {
		return label
	}
	var parts []string
	if len(n.Extras) > 0 {
		parts = append(parts, "extras: "+strings.Join(n.Extras, ","))
	}
	if n.Source.Kind != "" {
		parts = append(parts, "source: "+string(n.Source.Kind))
	}
	if len(parts) == 0 {
		return label
	}
	return label + "\n" + strings.Join(parts, "\n")
}

func fmtAttrs(n *resolve.Node, detailed bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(n, detailed))}
	if n.Source.Kind == index.SourceURL {
		attrs = append(attrs, "fillcolor=lightyellow")
	}
	return attrs
}

func edgeLabel(e resolve.Edge) string {
	r := e.Requirement
	if r.URL != "" {
		return "@ url"
	}
	return r.Constraint.String()
}
