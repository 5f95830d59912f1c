package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3"
	s := String()
	if !strings.HasPrefix(s, "raydata 1.2.3 (") {
		t.Errorf("unexpected version string %q", s)
	}
}
