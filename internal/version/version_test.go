package version

import (
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	i := Info{Version: "1.2.3", GitCommit: "abc123", GoVersion: "go1.25", Platform: "linux/amd64"}
	got := i.String()
	want := "deckz 1.2.3 (abc123) go1.25 linux/amd64"
	if got != want {
		t.Fatalf("String()=%q want=%q", got, want)
	}
}

func TestInfoString_SkipsUnknownCommit(t *testing.T) {
	i := Info{Version: "dev", GitCommit: "unknown", GoVersion: "go1.25", Platform: "linux/amd64"}
	if strings.Contains(i.String(), "unknown") {
		t.Fatalf("unexpected unknown commit in %q", i.String())
	}
}
