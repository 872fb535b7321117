package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/install"
	"github.com/matzehuels/pypackages/pkg/lockfile"
)

// List output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// Package status relative to the lockfile.
const (
	statusOK         = "ok"
	statusOutdated   = "outdated"
	statusExtraneous = "extraneous"
)

// listedPackage is one row of the list command.
type listedPackage struct {
	Name        string    `json:"name" yaml:"name"`
	Version     string    `json:"version" yaml:"version"`
	Status      string    `json:"status,omitempty" yaml:"status,omitempty"`
	Source      string    `json:"source" yaml:"source"`
	Digest      string    `json:"digest" yaml:"digest"`
	Files       int       `json:"files" yaml:"files"`
	InstalledAt time.Time `json:"installed_at" yaml:"installed_at"`
}

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packages installed in __pypackages__",
		Long: `List the packages installed for the project's interpreter.

When a lockfile exists each package is marked ok, outdated (installed artifact
differs from the locked one) or extraneous (not locked).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case formatTable, formatJSON, formatYAML:
			default:
				return errors.New(errors.ErrCodeInvalidInput, "invalid format %q: must be table, json or yaml", format)
			}

			p, err := c.openProject(nil)
			if err != nil {
				return err
			}
			lf, err := p.readLock()
			if err != nil {
				c.Logger.Debug("lockfile unreadable", "err", err)
				lf = nil
			}
			pkgs, err := listInstalled(p.layout(), lf)
			if err != nil {
				return err
			}
			return writeList(cmd.OutOrStdout(), format, pkgs)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json, yaml")

	return cmd
}

// listInstalled reads the installed records of layout and compares them
// with lf when it is not nil.
func listInstalled(layout install.Layout, lf *lockfile.Lockfile) ([]listedPackage, error) {
	if !exists(layout.Lib()) {
		return nil, nil
	}
	env, err := install.Open(layout, install.Options{})
	if err != nil {
		return nil, err
	}
	records, err := env.List()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list %s", layout.Lib())
	}

	out := make([]listedPackage, 0, len(records))
	for _, rec := range records {
		pkg := listedPackage{
			Name:        rec.Name,
			Version:     rec.Version.String(),
			Source:      rec.Source,
			Digest:      rec.Digest,
			Files:       len(rec.Files),
			InstalledAt: rec.InstalledAt,
		}
		if lf != nil {
			e, ok := lf.Entry(rec.Name)
			switch {
			case !ok:
				pkg.Status = statusExtraneous
			case rec.Matches(e):
				pkg.Status = statusOK
			default:
				pkg.Status = statusOutdated
			}
		}
		out = append(out, pkg)
	}
	return out, nil
}

func writeList(w io.Writer, format string, pkgs []listedPackage) error {
	switch format {
	case formatJSON:
		if pkgs == nil {
			pkgs = []listedPackage{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pkgs)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(pkgs); err != nil {
			return err
		}
		return enc.Close()
	}
	return writeTable(w, pkgs)
}

var (
	styleHeader     = lipgloss.NewStyle().Bold(true).Foreground(colorGray)
	styleOutdated   = lipgloss.NewStyle().Foreground(colorYellow)
	styleExtraneous = lipgloss.NewStyle().Foreground(colorRed)
)

// writeTable prints pkgs as aligned columns.
func writeTable(w io.Writer, pkgs []listedPackage) error {
	if len(pkgs) == 0 {
		_, err := fmt.Fprintln(w, StyleDim.Render("No packages installed"))
		return err
	}
	nameW, verW := len("Package"), len("Version")
	for _, p := range pkgs {
		nameW = max(nameW, len(p.Name))
		verW = max(verW, len(p.Version))
	}
	name := lipgloss.NewStyle().Width(nameW + 2)
	ver := lipgloss.NewStyle().Width(verW + 2)

	var b strings.Builder
	b.WriteString(styleHeader.Render(name.Render("Package")+ver.Render("Version")+"Status") + "\n")
	for _, p := range pkgs {
		b.WriteString(name.Render(p.Name) + ver.Render(p.Version) + renderStatus(p.Status) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderStatus(s string) string {
	switch s {
	case statusOutdated:
		return styleOutdated.Render(s)
	case statusExtraneous:
		return styleExtraneous.Render(s)
	case "":
		return StyleDim.Render("-")
	}
	return StyleSuccess.Render(s)
}
