package version

import (
	"cmp"
	"math"
	"slices"
	"strconv"
)

const (
	negInf = math.MinInt
	posInf = math.MaxInt
)

var preRank = map[string]int{Alpha: 0, Beta: 1, RC: 2}

// Compare returns -1, 0 or +1 as a orders before, equal to, or after b.
//
// The order is: epoch, release (trailing zeros ignored), then
// dev-of-final < pre-releases < final < post-releases, with development
// releases sorting before their non-dev counterpart, and finally the local
// label (absent sorts first).
func Compare(a, b Version) int {
	if c := cmp.Compare(a.epoch, b.epoch); c != 0 {
		return c
	}
	if c := compareRelease(a.release, b.release); c != 0 {
		return c
	}
	ak, bk := a.preKey(), b.preKey()
	if c := cmp.Compare(ak[0], bk[0]); c != 0 {
		return c
	}
	if c := cmp.Compare(ak[1], bk[1]); c != 0 {
		return c
	}
	if c := cmp.Compare(a.postKey(), b.postKey()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.devKey(), b.devKey()); c != 0 {
		return c
	}
	return compareLocal(a.local, b.local)
}

// Equal reports whether a and b are the same version under [Compare].
func Equal(a, b Version) bool { return Compare(a, b) == 0 }

// Less reports whether a orders before b.
func Less(a, b Version) bool { return Compare(a, b) < 0 }

// SortDescending sorts versions newest first.
func SortDescending(vs []Version) {
	slices.SortStableFunc(vs, func(a, b Version) int { return Compare(b, a) })
}

func compareRelease(a, b []int) int {
	n := max(len(a), len(b))
	for i := range n {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if c := cmp.Compare(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func (v Version) preKey() [2]int {
	switch {
	case v.preKind == "" && v.post < 0 && v.dev >= 0:
		return [2]int{negInf, 0}
	case v.preKind == "":
		return [2]int{posInf, 0}
	default:
		return [2]int{preRank[v.preKind], v.preNum}
	}
}

func (v Version) postKey() int {
	if v.post < 0 {
		return negInf
	}
	return v.post
}

func (v Version) devKey() int {
	if v.dev < 0 {
		return posInf
	}
	return v.dev
}

// compareLocal orders local labels segment by segment. Numeric segments
// sort after alphanumeric ones and compare numerically; a longer label
// sorts after its prefix.
func compareLocal(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return cmp.Compare(len(a), len(b))
	}
	for i := range min(len(a), len(b)) {
		an, aErr := strconv.Atoi(a[i])
		bn, bErr := strconv.Atoi(b[i])
		switch {
		case aErr == nil && bErr == nil:
			if c := cmp.Compare(an, bn); c != 0 {
				return c
			}
		case aErr == nil:
			return 1
		case bErr == nil:
			return -1
		default:
			if c := cmp.Compare(a[i], b[i]); c != 0 {
				return c
			}
		}
	}
	return cmp.Compare(len(a), len(b))
}
