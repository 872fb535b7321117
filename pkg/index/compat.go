package index

import (
	"slices"
	"strings"

	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

// Compatible decides whether a candidate's artifact can be installed on the
// target interpreter. It is supplied by the caller; the resolver only
// filters with it.
type Compatible func(Candidate) bool

// AnyCompatible accepts every candidate.
func AnyCompatible(Candidate) bool { return true }

// DefaultCompatible performs basic tag matching for env:
// sdists are always accepted, wheels must carry a python tag for the
// target major version (or its exact cpXY tag), an abi of none, abi3 or
// the matching cpXY, and either the "any" platform or one named after the
// host operating system. Requires-Python must admit the target version.
func DefaultCompatible(env requirement.Environment) Compatible {
	full, _ := version.Parse(env.PythonFullVersion)
	major := strings.SplitN(env.PythonVersion, ".", 2)[0]
	cp := "cp" + strings.ReplaceAll(env.PythonVersion, ".", "")
	platform := platformTag(env.SysPlatform)

	return func(c Candidate) bool {
		if c.RequiresPython != "" && !full.IsZero() {
			if rp, err := version.ParseConstraint(c.RequiresPython); err == nil && !rp.Satisfies(full) {
				return false
			}
		}
		w, ok := ParseWheel(c.Source.Filename)
		if !ok {
			return true
		}
		pyOK := slices.ContainsFunc(w.Python, func(t string) bool {
			return t == "py"+major || t == cp || t == "py"+strings.ReplaceAll(env.PythonVersion, ".", "")
		})
		abiOK := slices.ContainsFunc(w.ABI, func(t string) bool {
			return t == "none" || t == "abi3" || strings.HasPrefix(t, cp)
		})
		platOK := slices.ContainsFunc(w.Platform, func(t string) bool {
			return t == "any" || (platform != "" && strings.Contains(t, platform))
		})
		return pyOK && abiOK && platOK
	}
}

func platformTag(sysPlatform string) string {
	switch {
	case strings.HasPrefix(sysPlatform, "linux"):
		return "linux"
	case sysPlatform == "darwin":
		return "macosx"
	case sysPlatform == "win32":
		return "win"
	default:
		return ""
	}
}
