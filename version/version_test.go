package version

import "testing"

func TestStringIncludesComponentAndRelease(t *testing.T) {
	Release, Hash, BuildDate = "24.04.1", "abc123", "2024-01-01T00:00:00Z"
	got := String("gateway")
	want := "gateway 24.04.1 (abc123, built 2024-01-01T00:00:00Z)"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
