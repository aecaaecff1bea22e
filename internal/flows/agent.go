package flows

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papapumpkin/teamcontext/internal/telemetry"
)

// Agent guidance file names under .tc/agent.
const (
	BootstrapFile = "bootstrap_prompt.md"
	WorkflowFile  = "workflow.md"
	IntentsFile   = "intents.json"
)

// NoContextReply is what an agent reports when the shared store holds nothing.
const NoContextReply = "no approved team context yet"

// IntentRule maps a spoken intent to a tc invocation.
type IntentRule struct {
	Intent  string   `json:"intent"`
	Command []string `json:"command"`
}

// Intents is the machine-readable intent table written next to workflow.md.
type Intents struct {
	Version     int          `json:"version"`
	DefaultMode string       `json:"default_mode"`
	Rules       []IntentRule `json:"rules"`
}

// DefaultIntents returns the intent table written by init.
func DefaultIntents() Intents {
	return Intents{
		Version:     1,
		DefaultMode: "execute",
		Rules: []IntentRule{
			{Intent: "save recent context to tc", Command: []string{"tc", "save", "--auto-bootstrap-if-empty"}},
			{Intent: "sync latest context", Command: []string{"tc", "sync", "--json"}},
			{Intent: "check tc health", Command: []string{"tc", "doctor"}},
		},
	}
}

// ErrNoIntent indicates no rule matches the given words.
var ErrNoIntent = errors.New("no matching intent")

// LoadIntents reads the intent table at path, falling back to DefaultIntents
// when the file does not exist.
func LoadIntents(path string) (Intents, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultIntents(), nil
		}
		return Intents{}, fmt.Errorf("reading intents: %w", err)
	}
	var in Intents
	if err := json.Unmarshal(data, &in); err != nil {
		return Intents{}, fmt.Errorf("parsing intents %s: %w", path, err)
	}
	return in, nil
}

// Match returns the first rule whose intent phrase appears in words.
// Matching ignores case, surrounding quotes and trailing punctuation.
func (in Intents) Match(words []string) (IntentRule, error) {
	said := normalizeIntent(strings.Join(words, " "))
	if said == "" {
		return IntentRule{}, ErrNoIntent
	}
	for _, r := range in.Rules {
		want := normalizeIntent(r.Intent)
		if want != "" && len(r.Command) > 0 && strings.Contains(said, want) {
			return r, nil
		}
	}
	return IntentRule{}, fmt.Errorf("%w: %q", ErrNoIntent, said)
}

func normalizeIntent(s string) string {
	s = strings.ToLower(s)
	s = strings.Trim(s, " \t\n\"'.!?")
	return strings.Join(strings.Fields(s), " ")
}

// ResolveIntent matches words against the project's intent table.
func (e *Env) ResolveIntent(words []string) (IntentRule, error) {
	in, err := LoadIntents(filepath.Join(e.Paths.AgentDir, IntentsFile))
	if err != nil {
		return IntentRule{}, err
	}
	rule, err := in.Match(words)
	if err != nil {
		return rule, err
	}
	e.record(telemetry.KindAgentRun, map[string]any{"intent": rule.Intent, "command": rule.Command})
	return rule, nil
}

// BootstrapPrompt is the paste-ready instruction block for coding agents.
func (e *Env) BootstrapPrompt() string {
	var b strings.Builder
	b.WriteString("Read the following TeamContext sources before coding:\n")
	for _, c := range []string{"decisions", "patterns", "runbooks"} {
		fmt.Fprintf(&b, "- %s\n", e.Paths.Category(c))
	}
	fmt.Fprintf(&b, "- %s\n", e.Paths.IndexFile)
	fmt.Fprintf(&b, "If %s is missing, run `tc sync` first.\n", filepath.Base(e.Paths.IndexFile))
	fmt.Fprintf(&b, "If those folders hold no documents, report %q and continue.\n", NoContextReply)
	b.WriteString("Then do this before writing code:\n")
	b.WriteString("- Summarize the constraints and decisions you will follow.\n")
	b.WriteString("- List exactly which files you read.\n")
	b.WriteString("- If context is missing or conflicting, ask clarifying questions first.")
	return b.String()
}

func renderWorkflow(in Intents) string {
	var b strings.Builder
	b.WriteString("# TeamContext Agent Workflow\n\n")
	b.WriteString("Use these intent->command mappings in vibe coding sessions:\n")
	for _, r := range in.Rules {
		fmt.Fprintf(&b, "\n- User says: %q\n- Run: `%s`\n", r.Intent, strings.Join(r.Command, " "))
	}
	b.WriteString("\nOr hand the phrase to tc directly: `tc agent run save recent context to tc`.\n")
	b.WriteString("Then summarize key deltas from JSON output for the user.\n")
	return b.String()
}

// AgentFiles are the guidance documents regenerated on every init.
type AgentFiles struct {
	Bootstrap string
	Workflow  string
	Intents   string
}

// WriteAgentFiles regenerates the agent guidance documents.
func (e *Env) WriteAgentFiles() (AgentFiles, error) {
	if err := os.MkdirAll(e.Paths.AgentDir, 0o755); err != nil {
		return AgentFiles{}, fmt.Errorf("creating agent dir: %w", err)
	}
	files := AgentFiles{
		Bootstrap: filepath.Join(e.Paths.AgentDir, BootstrapFile),
		Workflow:  filepath.Join(e.Paths.AgentDir, WorkflowFile),
		Intents:   filepath.Join(e.Paths.AgentDir, IntentsFile),
	}
	intents := DefaultIntents()
	table, err := json.MarshalIndent(intents, "", "  ")
	if err != nil {
		return AgentFiles{}, fmt.Errorf("encoding intents: %w", err)
	}
	writes := []struct {
		path string
		data []byte
	}{
		{files.Bootstrap, []byte(e.BootstrapPrompt() + "\n")},
		{files.Workflow, []byte(renderWorkflow(intents))},
		{files.Intents, append(table, '\n')},
	}
	for _, w := range writes {
		if err := os.WriteFile(w.path, w.data, 0o644); err != nil {
			return AgentFiles{}, fmt.Errorf("writing %s: %w", w.path, err)
		}
	}
	return files, nil
}
