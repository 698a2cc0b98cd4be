package repl

import (
	"bytes"
	"strings"
	"testing"

	"lode/internal/loader"
)

func runSession(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	Start(strings.NewReader(input), &out, loader.New(nil))
	return out.String()
}

func TestSessionKeepsBindings(t *testing.T) {
	out := runSession(t, "let a = 2\nemit a + 3\n")
	if !strings.Contains(out, "5") {
		t.Errorf("output missing result:\n%s", out)
	}
}

func TestSessionReportsParseErrors(t *testing.T) {
	out := runSession(t, "let = nope\n")
	if !strings.Contains(out, "parse error") {
		t.Errorf("output missing parse error:\n%s", out)
	}
}

func TestSessionUnknownCommand(t *testing.T) {
	out := runSession(t, ":frobnicate\n")
	if !strings.Contains(out, "unknown command") {
		t.Errorf("output missing command error:\n%s", out)
	}
}

func TestSessionQuit(t *testing.T) {
	out := runSession(t, ":quit\nemit 1\n")
	if strings.Contains(out, "1\n>") {
		t.Errorf("session kept running after :quit:\n%s", out)
	}
}
