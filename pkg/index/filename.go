package index

import (
	"net/url"
	"path"
	"strings"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

var sdistSuffixes = []string{".tar.gz", ".tgz", ".zip"}

// Wheel holds the parts of a wheel filename:
// {name}-{version}(-{build})?-{python}-{abi}-{platform}.whl
type Wheel struct {
	Name     string
	Version  string
	Python   []string
	ABI      []string
	Platform []string
}

// ParseWheel splits a wheel filename into its tags.
func ParseWheel(filename string) (Wheel, bool) {
	if !strings.HasSuffix(strings.ToLower(filename), ".whl") {
		return Wheel{}, false
	}
	parts := strings.Split(filename[:len(filename)-4], "-")
	if len(parts) != 5 && len(parts) != 6 {
		return Wheel{}, false
	}
	n := len(parts)
	return Wheel{
		Name:     requirement.NormalizeName(parts[0]),
		Version:  parts[1],
		Python:   strings.Split(parts[n-3], "."),
		ABI:      strings.Split(parts[n-2], "."),
		Platform: strings.Split(parts[n-1], "."),
	}, true
}

// ParseFilename extracts the normalized name and version from a wheel or
// sdist filename.
func ParseFilename(filename string) (name string, v version.Version, err error) {
	if w, ok := ParseWheel(filename); ok {
		v, err = version.Parse(w.Version)
		return w.Name, v, err
	}
	lower := strings.ToLower(filename)
	for _, suffix := range sdistSuffixes {
		if !strings.HasSuffix(lower, suffix) {
			continue
		}
		stem := filename[:len(filename)-len(suffix)]
		i := strings.LastIndex(stem, "-")
		if i <= 0 {
			break
		}
		v, err = version.Parse(stem[i+1:])
		return requirement.NormalizeName(stem[:i]), v, err
	}
	return "", version.Version{}, errors.New(errors.ErrCodeInvalidInput, "unrecognized archive filename %q", filename)
}

// CandidateFromURL builds a URL-sourced candidate by reading the name and
// version from the archive filename. A "#sha256=<hex>" fragment becomes the
// expected digest.
func CandidateFromURL(rawURL string) (Candidate, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Candidate{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid direct reference %q", rawURL)
	}
	filename := path.Base(u.Path)
	name, v, err := ParseFilename(filename)
	if err != nil {
		return Candidate{}, err
	}
	var digest string
	if algo, hex, ok := strings.Cut(u.Fragment, "="); ok && algo == "sha256" {
		digest = "sha256:" + strings.ToLower(hex)
	}
	u.Fragment = ""
	return Candidate{
		Name:    name,
		Version: v,
		Source:  Source{Kind: SourceURL, URL: u.String(), Filename: filename},
		Digest:  digest,
	}, nil
}
