package publish

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("publish: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("publish: malformed frontmatter")
)

// StatusPendingReview marks a candidate nobody has approved yet.
const StatusPendingReview = "pending-review"

// FrontMatter is the metadata block carried by published documents.
type FrontMatter struct {
	Kind      string `yaml:"kind,omitempty"`
	Topic     string `yaml:"topic"`
	Author    string `yaml:"author"`
	Date      string `yaml:"date"`
	Status    string `yaml:"status,omitempty"`
	Candidate string `yaml:"candidate,omitempty"`
}

// ParseFrontMatter extracts the metadata block and body from a document that
// starts with `---` YAML fences.
func ParseFrontMatter(content []byte) (FrontMatter, []byte, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return FrontMatter{}, nil, ErrMissingFrontMatter
	}
	parts := bytes.SplitN(normalized[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return FrontMatter{}, nil, ErrMalformedFrontMatter
	}
	var fm FrontMatter
	if err := yaml.Unmarshal(parts[0], &fm); err != nil {
		return FrontMatter{}, nil, fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	return fm, parts[1], nil
}

// writeFrontMatter renders fm + body with YAML fences.
func writeFrontMatter(fm FrontMatter, body []byte) ([]byte, error) {
	data, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("publish: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(data)
	buf.WriteString("---\n")
	buf.Write(body)
	return buf.Bytes(), nil
}
