// Package secrets implements the advisory secret/PII gate applied to
// published summaries. Matching is a presence-only regex search; it is a
// heuristic, not a security boundary.
package secrets

import (
	"fmt"
	"regexp"
	"sort"
)

// Finding names a category of suspected secret content.
type Finding string

// Built-in finding names.
const (
	AWSAccessKey  Finding = "aws_access_key"
	PrivateKey    Finding = "private_key"
	GenericAPIKey Finding = "generic_api_key"
)

// Rule pairs a finding name with the pattern that triggers it.
type Rule struct {
	Name    Finding
	Pattern *regexp.Regexp
}

// Scanner evaluates text against an ordered rule set. It is stateless and
// safe for concurrent use once built.
type Scanner struct {
	rules []Rule
}

// Default returns a scanner carrying the built-in rule set.
func Default() *Scanner {
	return &Scanner{rules: []Rule{
		{Name: AWSAccessKey, Pattern: regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
		{Name: PrivateKey, Pattern: regexp.MustCompile(`-----BEGIN (?:RSA|EC|OPENSSH|PGP) PRIVATE KEY-----`)},
		{Name: GenericAPIKey, Pattern: regexp.MustCompile(`(?i)\b(?:api[-_ ]?key|token|secret)\b\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}["']?`)},
	}}
}

// WithRule returns a copy of s extended with a rule compiled from expr.
func (s *Scanner) WithRule(name Finding, expr string) (*Scanner, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling rule %s: %w", name, err)
	}
	rules := make([]Rule, len(s.rules), len(s.rules)+1)
	copy(rules, s.rules)
	return &Scanner{rules: append(rules, Rule{Name: name, Pattern: re})}, nil
}

// Rules returns the names of the configured rules in evaluation order.
func (s *Scanner) Rules() []Finding {
	names := make([]Finding, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name
	}
	return names
}

// Scan returns the sorted, de-duplicated findings present in text.
func (s *Scanner) Scan(text string) []Finding {
	if text == "" {
		return nil
	}
	seen := make(map[Finding]bool)
	var out []Finding
	for _, r := range s.rules {
		if seen[r.Name] || !r.Pattern.MatchString(text) {
			continue
		}
		seen[r.Name] = true
		out = append(out, r.Name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Policy decides whether findings block an operation.
type Policy struct {
	Enabled         bool
	BlockOnFindings bool
}

// Verdict is the result of checking text against a policy.
type Verdict struct {
	Findings []Finding
	Blocked  bool
}

// Check scans text when the policy is enabled. Findings block only when the
// policy blocks and the caller has not explicitly allowed them.
func (p Policy) Check(s *Scanner, text string, allow bool) Verdict {
	if !p.Enabled {
		return Verdict{}
	}
	findings := s.Scan(text)
	return Verdict{
		Findings: findings,
		Blocked:  len(findings) > 0 && p.BlockOnFindings && !allow,
	}
}
