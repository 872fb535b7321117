package version

import (
	"slices"
	"testing"

	"github.com/matzehuels/pypackages/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1", "1"},
		{"1.2.3", "1.2.3"},
		{"v1.0", "1.0"},
		{"1!2.0", "1!2.0"},
		{"1.0a1", "1.0a1"},
		{"1.0alpha2", "1.0a2"},
		{"1.0-beta.3", "1.0b3"},
		{"1.0c1", "1.0rc1"},
		{"1.0.preview4", "1.0rc4"},
		{"1.0rc", "1.0rc0"},
		{"1.0.post2", "1.0.post2"},
		{"1.0-3", "1.0.post3"},
		{"1.0rev", "1.0.post0"},
		{"1.0.dev4", "1.0.dev4"},
		{"1.0a1.post2.dev3", "1.0a1.post2.dev3"},
		{"1.0+Ubuntu-1", "1.0+ubuntu.1"},
		{" 2.31.0 ", "2.31.0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got := v.String(); got != tt.want {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "abc", "1.x", "1..2", "1.0+", "1.0-", ".1"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", input)
			}
			if !errors.Is(err, errors.ErrCodeInvalidVersion) {
				t.Errorf("Parse(%q) code = %v, want INVALID_VERSION", input, errors.GetCode(err))
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0.0", 0},
		{"1.0", "1.0.1", -1},
		{"1.10", "1.9", 1},
		{"1.0.dev0", "1.0a0", -1},
		{"1.0a1", "1.0a2", -1},
		{"1.0a9", "1.0b1", -1},
		{"1.0b2", "1.0rc1", -1},
		{"1.0rc1", "1.0", -1},
		{"1.0", "1.0.post1", -1},
		{"1.0.post1.dev1", "1.0.post1", -1},
		{"1.0a1.dev1", "1.0a1", -1},
		{"1.0", "1.0+local", -1},
		{"1.0+abc", "1.0+1", -1},
		{"1.0+1", "1.0+2", -1},
		{"1.0+1", "1.0+1.1", -1},
		{"1!0.1", "2.0", 1},
		{"2.0", "2.0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			a, b := MustParse(tt.a), MustParse(tt.b)
			if got := Compare(a, b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Compare(b, a); got != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestSortDescending(t *testing.T) {
	in := []string{"1.0", "2.0rc1", "0.9", "2.0", "1.0.post1", "1.0a1", "1.0.dev0"}
	vs := make([]Version, len(in))
	for i, s := range in {
		vs[i] = MustParse(s)
	}
	SortDescending(vs)

	got := make([]string, len(vs))
	for i, v := range vs {
		got[i] = v.String()
	}
	want := []string{"2.0", "2.0rc1", "1.0.post1", "1.0", "1.0a1", "1.0.dev0", "0.9"}
	if !slices.Equal(got, want) {
		t.Errorf("SortDescending = %v, want %v", got, want)
	}
}

func TestVersionPredicates(t *testing.T) {
	tests := []struct {
		input string
		pre   bool
		post  bool
		local string
	}{
		{"1.0", false, false, ""},
		{"1.0a1", true, false, ""},
		{"1.0.dev1", true, false, ""},
		{"1.0.post1", false, true, ""},
		{"1.0+cpu", false, false, "cpu"},
	}
	for _, tt := range tests {
		v := MustParse(tt.input)
		if v.IsPrerelease() != tt.pre {
			t.Errorf("%s IsPrerelease = %v", tt.input, v.IsPrerelease())
		}
		if v.IsPostRelease() != tt.post {
			t.Errorf("%s IsPostRelease = %v", tt.input, v.IsPostRelease())
		}
		if v.Local() != tt.local {
			t.Errorf("%s Local = %q", tt.input, v.Local())
		}
	}
}

func TestTextMarshaling(t *testing.T) {
	var v Version
	if err := v.UnmarshalText([]byte("3.11")); err != nil {
		t.Fatal(err)
	}
	text, _ := v.MarshalText()
	if string(text) != "3.11" {
		t.Errorf("MarshalText = %q", text)
	}
	if err := v.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText accepted an invalid version")
	}
}
