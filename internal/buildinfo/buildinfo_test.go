package buildinfo

import "testing"

func TestString(t *testing.T) {
	oldV, oldSHA, oldT := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldT })

	Version, GitSHA, BuildTime = "v1.2.3", "", ""
	if got := ServerIdent(); got != "nebula-static-delete/v1.2.3" {
		t.Fatalf("unexpected ident %q", got)
	}
	GitSHA, BuildTime = "abc123", "2026-10-01T00:00:00Z"
	if got := String(); got != "nebula-static-delete/v1.2.3 (abc123) built 2026-10-01T00:00:00Z" {
		t.Fatalf("unexpected string %q", got)
	}
}
