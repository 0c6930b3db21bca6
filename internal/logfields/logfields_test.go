package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Unit", KeyUnit, "frontend", Unit("frontend")},
		{"Profile", KeyProfile, "release", Profile("release")},
		{"Stage", KeyStage, "compile", Stage("compile")},
		{"BuildID", KeyBuildID, "b1", BuildID("b1")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Size", KeySize, "1.2 MB", Size("1.2 MB")},
		{"Command", KeyCommand, "go build", Command("go build")},
		{"Watcher", KeyWatcher, "backend", Watcher("backend")},
		{"Method", KeyMethod, "GET", Method("GET")},
		{"RemoteAddr", KeyRemoteAddr, "1.2.3.4", RemoteAddr("1.2.3.4")},
	}
	for _, c := range cases {
		if c.attr.Key != c.attrKey {
			t.Fatalf("%s: key = %q, want %q", c.name, c.attr.Key, c.attrKey)
		}
		if got := c.attr.Value.String(); got != c.attrVal {
			t.Fatalf("%s: value = %q, want %q", c.name, got, c.attrVal)
		}
	}
}

func TestNumericAndErrorHelpers(t *testing.T) {
	if a := Attempt(3); a.Value.Int64() != 3 {
		t.Fatalf("attempt = %v", a.Value)
	}
	if a := PID(42); a.Key != KeyPID || a.Value.Int64() != 42 {
		t.Fatalf("pid = %v", a)
	}
	if a := Status(404); a.Value.Int64() != 404 {
		t.Fatalf("status = %v", a.Value)
	}
	if a := Error(nil); a.Value.String() != "" {
		t.Fatalf("nil error should be empty, got %q", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Value.String() != "boom" {
		t.Fatalf("error = %q", a.Value.String())
	}
}
