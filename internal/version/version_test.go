package version

import (
	"strings"
	"testing"
)

func TestShortUsesLinkerValue(t *testing.T) {
	prev := Version
	defer func() { Version = prev }()

	Version = "v1.2.3"
	if got := Short(); got != "v1.2.3" {
		t.Errorf("Short() = %q, want %q", got, "v1.2.3")
	}
}

func TestInfo(t *testing.T) {
	prevVersion, prevCommit := Version, GitCommit
	defer func() { Version, GitCommit = prevVersion, prevCommit }()

	Version = "v0.1.0"
	GitCommit = "abc1234"

	info := Info()
	for _, want := range []string{"vchat v0.1.0", "commit: abc1234", "go:"} {
		if !strings.Contains(info, want) {
			t.Errorf("Info() = %q, missing %q", info, want)
		}
	}
}
