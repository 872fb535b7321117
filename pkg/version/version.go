// Package version parses and orders Python package versions and evaluates
// constraint expressions against them.
//
// Versions follow PEP 440: an optional epoch, a release tuple, and optional
// pre-release, post-release, development and local segments. Ordering is a
// total order defined by [Compare]; equality is ordering equality, so
// "1.0" and "1.0.0" are the same version even though their strings differ.
//
// Everything in this package is pure: no I/O, no global state.
package version

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/matzehuels/pypackages/pkg/errors"
)

// Pre-release kinds in ascending order.
const (
	Alpha = "a"
	Beta  = "b"
	RC    = "rc"
)

// Version is a parsed PEP 440 version. The zero value is not a valid
// version; obtain one from [Parse] or [MustParse].
type Version struct {
	epoch   int
	release []int
	preKind string // "", Alpha, Beta or RC
	preNum  int
	post    int // -1 when absent
	dev     int // -1 when absent
	local   []string
}

var versionRe = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<pre_l>alpha|beta|preview|pre|rc|a|b|c)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?(?P<dev_l>dev)[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
	`\s*$`)

var groupIndex = func() map[string]int {
	m := make(map[string]int)
	for i, name := range versionRe.SubexpNames() {
		if name != "" {
			m[name] = i
		}
	}
	return m
}()

// Parse parses a version string. It fails with INVALID_VERSION on empty or
// malformed input.
func Parse(s string) (Version, error) {
	if strings.TrimSpace(s) == "" {
		return Version{}, errors.New(errors.ErrCodeInvalidVersion, "empty version string")
	}
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, errors.New(errors.ErrCodeInvalidVersion, "invalid version %q", s)
	}
	group := func(name string) string { return m[groupIndex[name]] }

	v := Version{post: -1, dev: -1}
	var err error
	if e := group("epoch"); e != "" {
		if v.epoch, err = atoi(e, s); err != nil {
			return Version{}, err
		}
	}
	for _, seg := range strings.Split(group("release"), ".") {
		n, err := atoi(seg, s)
		if err != nil {
			return Version{}, err
		}
		v.release = append(v.release, n)
	}
	if group("pre") != "" {
		v.preKind = normalizePreKind(group("pre_l"))
		if n := group("pre_n"); n != "" {
			if v.preNum, err = atoi(n, s); err != nil {
				return Version{}, err
			}
		}
	}
	if group("post") != "" {
		n := group("post_n1")
		if n == "" {
			n = group("post_n2")
		}
		v.post = 0
		if n != "" {
			if v.post, err = atoi(n, s); err != nil {
				return Version{}, err
			}
		}
	}
	if group("dev") != "" {
		v.dev = 0
		if n := group("dev_n"); n != "" {
			if v.dev, err = atoi(n, s); err != nil {
				return Version{}, err
			}
		}
	}
	if l := group("local"); l != "" {
		v.local = strings.FieldsFunc(strings.ToLower(l), func(r rune) bool {
			return r == '.' || r == '-' || r == '_'
		})
	}
	return v, nil
}

// MustParse is like [Parse] but panics on error. Intended for tests and
// package-level literals.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func atoi(s, full string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidVersion, err, "invalid version %q", full)
	}
	return n, nil
}

func normalizePreKind(s string) string {
	switch strings.ToLower(s) {
	case "a", "alpha":
		return Alpha
	case "b", "beta":
		return Beta
	default:
		return RC
	}
}

// IsZero reports whether v is the zero value.
func (v Version) IsZero() bool { return len(v.release) == 0 }

// Epoch returns the version epoch.
func (v Version) Epoch() int { return v.epoch }

// Release returns a copy of the release segments.
func (v Version) Release() []int { return append([]int(nil), v.release...) }

// Segment returns release segment i, or 0 when the release is shorter.
func (v Version) Segment(i int) int {
	if i < len(v.release) {
		return v.release[i]
	}
	return 0
}

// IsPrerelease reports whether v is a pre-release or development release.
func (v Version) IsPrerelease() bool { return v.preKind != "" || v.dev >= 0 }

// IsPostRelease reports whether v has a post-release segment.
func (v Version) IsPostRelease() bool { return v.post >= 0 }

// Local returns the local version label, or "" when absent.
func (v Version) Local() string { return strings.Join(v.local, ".") }

// Public returns v without its local label.
func (v Version) Public() Version {
	v.local = nil
	return v
}

// Base returns the epoch and release only.
func (v Version) Base() Version {
	return Version{epoch: v.epoch, release: v.release, post: -1, dev: -1}
}

// String returns the normalized form of v.
func (v Version) String() string {
	if v.IsZero() {
		return ""
	}
	var b strings.Builder
	if v.epoch != 0 {
		b.WriteString(strconv.Itoa(v.epoch))
		b.WriteByte('!')
	}
	for i, seg := range v.release {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(seg))
	}
	if v.preKind != "" {
		b.WriteString(v.preKind)
		b.WriteString(strconv.Itoa(v.preNum))
	}
	if v.post >= 0 {
		b.WriteString(".post")
		b.WriteString(strconv.Itoa(v.post))
	}
	if v.dev >= 0 {
		b.WriteString(".dev")
		b.WriteString(strconv.Itoa(v.dev))
	}
	if len(v.local) > 0 {
		b.WriteByte('+')
		b.WriteString(v.Local())
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// bump returns the final release formed by release[:i] with segment i
// incremented.
func (v Version) bump(i int) Version {
	release := make([]int, i+1)
	copy(release, v.release)
	release[i] = v.Segment(i) + 1
	return Version{epoch: v.epoch, release: release, post: -1, dev: -1}
}
