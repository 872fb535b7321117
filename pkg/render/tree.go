package render

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/matzehuels/pypackages/pkg/resolve"
)

// Tree writes g as an indented text tree under the root requirements. A
// package is expanded the first time it appears; later occurrences and
// cycles are marked "(*)".
//
//	requests 2.31.0
//	├── certifi 2024.2.2
//	└── urllib3 2.2.1
func Tree(w io.Writer, g *resolve.Graph) error {
	t := &treeWriter{w: w, g: g, expanded: make(map[string]bool)}
	var names []string
	for _, r := range g.Roots() {
		if _, ok := g.Node(r.Name); ok && !slices.Contains(names, r.Name) {
			names = append(names, r.Name)
		}
	}
	for _, name := range names {
		t.node(name, "", "")
	}
	return t.err
}

type treeWriter struct {
	w        io.Writer
	g        *resolve.Graph
	expanded map[string]bool
	err      error
}

func (t *treeWriter) node(name, prefix, branch string) {
	if t.err != nil {
		return
	}
	n, _ := t.g.Node(name)
	line := prefix + branch + n.Name + " " + n.Version.String()
	if len(n.Extras) > 0 {
		line += " [" + strings.Join(n.Extras, ",") + "]"
	}
	if t.expanded[name] {
		_, t.err = fmt.Fprintln(t.w, line+" (*)")
		return
	}
	t.expanded[name] = true
	if _, t.err = fmt.Fprintln(t.w, line); t.err != nil {
		return
	}

	switch branch {
	case "├── ":
		prefix += "│   "
	case "└── ":
		prefix += "    "
	}
	var children []string
	for _, c := range t.g.Children(name) {
		if _, ok := t.g.Node(c); ok {
			children = append(children, c)
		}
	}
	for i, c := range children {
		if i == len(children)-1 {
			t.node(c, prefix, "└── ")
		} else {
			t.node(c, prefix, "├── ")
		}
	}
}
