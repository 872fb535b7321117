package pipeline

import (
	"bytes"
	"context"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/render"
	"github.com/matzehuels/pypackages/pkg/resolve"
)

// Tree output formats.
const (
	FormatText = "text"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
)

// ValidFormats is the set of supported tree formats.
var ValidFormats = map[string]bool{
	FormatText: true,
	FormatDOT:  true,
	FormatSVG:  true,
}

// ValidateFormat checks that format is a supported tree format.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidInput, "invalid format %q: must be text, dot or svg", format)
	}
	return nil
}

// Render draws g in the given format. project labels the root of DOT and
// SVG output.
func Render(ctx context.Context, g *resolve.Graph, format, project string) ([]byte, error) {
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	switch format {
	case FormatText:
		var buf bytes.Buffer
		if err := render.Tree(&buf, g); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatDOT:
		return []byte(render.ToDOT(g, render.Options{Detailed: true, Project: project})), nil
	}
	svg, err := render.RenderSVG(ctx, render.ToDOT(g, render.Options{Detailed: true, Project: project}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render svg")
	}
	return svg, nil
}
