// Package reflow splits unstructured generated text into display paragraphs.
package reflow

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// sentenceBreak matches a period, whitespace and the first character of the
// next sentence. The trailing character is not part of the boundary.
var sentenceBreak = regexp.MustCompile(`\.\s+[A-Z0-9]`)

// Options tunes the regrouping heuristic.
type Options struct {
	// GroupSize is the sentence interval at which paragraphs close.
	GroupSize int
	// MinLength is the length a single-paragraph text must exceed before it
	// is re-split into sentences.
	MinLength int
	// Markers force a paragraph break after any sentence containing one.
	Markers []string
}

func DefaultOptions() Options {
	return Options{
		GroupSize: 3,
		MinLength: 200,
		Markers:   []string{"Notably", "Additionally"},
	}
}

// Reflow applies the default options.
func Reflow(text string) []string {
	return DefaultOptions().Reflow(text)
}

// Reflow returns the paragraphs of text. Empty input yields an empty slice.
func (o Options) Reflow(text string) []string {
	o = o.withDefaults()

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 1 && utf8.RuneCountInString(text) > o.MinLength {
		paragraphs = o.regroup(splitSentences(text))
	}

	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.GroupSize <= 0 {
		o.GroupSize = d.GroupSize
	}
	if o.MinLength <= 0 {
		o.MinLength = d.MinLength
	}
	if o.Markers == nil {
		o.Markers = d.Markers
	}
	return o
}

func splitParagraphs(text string) []string {
	var out []string
	for _, seg := range strings.Split(text, "\n\n") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// splitSentences cuts text at every sentence boundary, dropping the period
// and whitespace of the boundary itself.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, m := range sentenceBreak.FindAllStringIndex(text, -1) {
		out = append(out, text[start:m[0]])
		// the class [A-Z0-9] is one byte wide
		start = m[1] - 1
	}
	return append(out, text[start:])
}

// regroup closes a paragraph after every GroupSize-th sentence of the whole
// text, or early after a marker sentence. A marker break does not restart
// the count, so the group following it may be shorter than GroupSize.
func (o Options) regroup(sentences []string) []string {
	var (
		out     []string
		current strings.Builder
	)
	last := len(sentences) - 1
	for i, s := range sentences {
		current.WriteString(s)
		if i < last {
			current.WriteString(". ")
		}
		if (i+1)%o.GroupSize == 0 || o.hasMarker(s) {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		out = append(out, strings.TrimSpace(current.String()))
	}
	return out
}

func (o Options) hasMarker(sentence string) bool {
	for _, m := range o.Markers {
		if m != "" && strings.Contains(sentence, m) {
			return true
		}
	}
	return false
}
