//go:build integration

package pypi

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/pypackages/pkg/errors"
)

func TestListVersions_Integration(t *testing.T) {
	client := NewClient(nil, "")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tests := []struct {
		name    string
		pkg     string
		wantErr bool
	}{
		{"requests", "requests", false},
		{"flask", "flask", false},
		{"nonexistent", "this-package-should-not-exist-12345", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := client.ListVersions(ctx, tt.pkg)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodePackageNotFound) {
					t.Errorf("err = %v, want PACKAGE_NOT_FOUND", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ListVersions() error: %v", err)
			}
			if len(cs) == 0 {
				t.Fatal("no candidates")
			}
			deps, err := client.FetchMetadata(ctx, tt.pkg, cs[0].Version)
			if err != nil {
				t.Fatalf("FetchMetadata() error: %v", err)
			}
			t.Logf("%s %s: %d requirements", tt.pkg, cs[0].Version, len(deps))
		})
	}
}
