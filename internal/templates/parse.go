package templates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/soyeahso/agentclick/internal/domain"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// segment is either literal text or a {{name}} placeholder. raw keeps the
// placeholder exactly as written so unknown names render verbatim.
type segment struct {
	literal string
	name    string
	raw     string
}

// compiled is a parsed template.
type compiled struct {
	segments []segment
}

// compile splits text into segments. It never fails: unbalanced
// delimiters are kept as literal text.
func compile(text string) *compiled {
	c := &compiled{}
	rest := text
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			break
		}
		end += start + len(openDelim)

		// A later "{{" before the close means the earlier one is unmatched.
		if next := strings.LastIndex(rest[:end], openDelim); next > start {
			c.appendLiteral(rest[:next])
			rest = rest[next:]
			continue
		}

		c.appendLiteral(rest[:start])
		raw := rest[start : end+len(closeDelim)]
		c.segments = append(c.segments, segment{
			name: strings.TrimSpace(rest[start+len(openDelim) : end]),
			raw:  raw,
		})
		rest = rest[end+len(closeDelim):]
	}
	c.appendLiteral(rest)
	return c
}

func (c *compiled) appendLiteral(s string) {
	if s == "" {
		return
	}
	if n := len(c.segments); n > 0 && c.segments[n-1].raw == "" {
		c.segments[n-1].literal += s
		return
	}
	c.segments = append(c.segments, segment{literal: s})
}

// render substitutes known variables. Known names without a value become
// empty; unknown placeholders are emitted as written.
func (c *compiled) render(values map[string]string) string {
	var b strings.Builder
	for _, s := range c.segments {
		switch {
		case s.raw == "":
			b.WriteString(s.literal)
		case domain.IsKnownVariable(s.name):
			b.WriteString(values[s.name])
		default:
			b.WriteString(s.raw)
		}
	}
	return b.String()
}

// variables returns placeholder names in first-use order.
func (c *compiled) variables() []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range c.segments {
		if s.raw == "" || seen[s.name] {
			continue
		}
		seen[s.name] = true
		out = append(out, s.name)
	}
	return out
}

// delimiterIssues walks text left to right and reports every opening
// without a close and every close without an opening.
func delimiterIssues(text string) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	open := -1
	for i := 0; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], openDelim):
			if open >= 0 {
				issues = append(issues, domain.ValidationIssue{
					Path:    fmt.Sprintf("offset %d", open),
					Message: "unclosed '{{'",
				})
			}
			open = i
			i += len(openDelim)
		case strings.HasPrefix(text[i:], closeDelim):
			if open < 0 {
				issues = append(issues, domain.ValidationIssue{
					Path:    fmt.Sprintf("offset %d", i),
					Message: "'}}' without matching '{{'",
				})
			}
			open = -1
			i += len(closeDelim)
		default:
			i++
		}
	}
	if open >= 0 {
		issues = append(issues, domain.ValidationIssue{
			Path:    fmt.Sprintf("offset %d", open),
			Message: "unclosed '{{'",
		})
	}
	return issues
}
