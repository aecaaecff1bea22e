package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newBuffered(verbose bool) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(&out, &errOut, verbose), &out, &errOut
}

func TestPrinter_PlainOutputWhenNotATerminal(t *testing.T) {
	t.Parallel()
	p, out, _ := newBuffered(false)

	p.Heading("Sync complete")
	p.Item("changed files", 2)
	p.Bullet("git add %s", ".viking/agfs/shared")
	p.Line("Bootstrap prompt:")

	want := "Sync complete\n- changed files: 2\n- git add .viking/agfs/shared\nBootstrap prompt:\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if strings.Contains(out.String(), "\x1b[") {
		t.Error("escape codes written to a non-terminal")
	}
}

func TestPrinter_Check(t *testing.T) {
	t.Parallel()
	p, out, _ := newBuffered(false)

	p.Check(true, "config", "/p/.tc/config.yaml")
	p.Check(false, "vendor", "missing vendor repository")

	want := "- OK   config: /p/.tc/config.yaml\n- FAIL vendor: missing vendor repository\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPrinter_ErrorAndDebugGoToErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{"quiet", false, "error: boom\n"},
		{"verbose", true, "error: boom\ngit rev-parse HEAD\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, out, errOut := newBuffered(tt.verbose)
			p.Error("boom")
			p.Debugf("git %s\n", "rev-parse HEAD")
			if got := errOut.String(); got != tt.want {
				t.Errorf("stderr = %q, want %q", got, tt.want)
			}
			if out.Len() != 0 {
				t.Errorf("stdout = %q, want empty", out.String())
			}
		})
	}
}

func TestPrinter_JSON(t *testing.T) {
	t.Parallel()
	p, out, _ := newBuffered(false)

	if err := p.JSON(map[string]any{"ok": true, "changed_files": 1}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if decoded["ok"] != true {
		t.Errorf("ok = %v", decoded["ok"])
	}
	if !strings.Contains(out.String(), "\n  \"changed_files\": 1") {
		t.Errorf("expected two-space indentation, got %q", out.String())
	}
}
