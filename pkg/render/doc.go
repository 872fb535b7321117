// Package render draws a resolution graph for people.
//
// Three forms are produced:
//
//   - [Tree]: an indented text tree rooted at the project's requirements,
//     each package expanded once
//   - [ToDOT]: a Graphviz DOT digraph with one box per package and one
//     edge per active requirement, labelled with its specifier
//   - [RenderSVG]: the DOT graph laid out and rendered by Graphviz
//
//	g, err := lf.Graph(roots, env)
//	dot := render.ToDOT(g, render.Options{Detailed: true})
//	svg, err := render.RenderSVG(ctx, dot)
package render
