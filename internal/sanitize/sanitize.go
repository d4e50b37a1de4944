// Package sanitize strips markup from user-supplied text before it is stored.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer turns untrusted input into plain text. It is safe for
// concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New returns a Sanitizer built on bluemonday's strict policy: every element
// is removed, and script/style elements lose their content too.
func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// maxPasses bounds both the layers of entity encoding that are peeled and
// the number of sanitize rounds.
const maxPasses = 8

// Text removes all markup from in and trims surrounding whitespace.
//
// Each round decodes every layer of entities first, so "&lt;b&gt;" and
// "&amp;lt;b&amp;gt;" are treated as the tag they spell, then sanitizes and
// decodes the escaped result back to plain characters (responses are JSON,
// not HTML). Rounds repeat until the text stops changing; stripping a tag
// can join two fragments into a new one. Input that never settles is
// dropped entirely.
func (s *Sanitizer) Text(in string) string {
	out := in
	for range maxPasses {
		next := html.UnescapeString(s.policy.Sanitize(unescapeAll(out)))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return ""
}

func unescapeAll(in string) string {
	for range maxPasses {
		next := html.UnescapeString(in)
		if next == in {
			break
		}
		in = next
	}
	return in
}
