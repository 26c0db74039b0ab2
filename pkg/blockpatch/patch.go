package blockpatch

import (
	"fmt"
	"regexp"
	"strings"
)

// scanState is the position of the scanner relative to the target block.
type scanState int

const (
	stateBeforeBlock scanState = iota
	stateInsideBlock
	stateAfterBlock
)

func (s scanState) String() string {
	switch s {
	case stateBeforeBlock:
		return "before"
	case stateInsideBlock:
		return "inside"
	case stateAfterBlock:
		return "after"
	default:
		return "unknown"
	}
}

// BlockSpan locates the target block within a document. Indices are 0-based.
type BlockSpan struct {
	// OpenLineIndex is the line carrying the block name.
	OpenLineIndex int `json:"open_line_index"`

	// BraceLineIndex is the line carrying the block's opening brace. It differs
	// from OpenLineIndex when the brace sits on the following line.
	BraceLineIndex int `json:"brace_line_index"`

	// ClosingLineIndex is the first line after entry where the brace depth
	// falls below StartDepth.
	ClosingLineIndex int `json:"closing_line_index"`

	// StartDepth is the brace depth inside the block.
	StartDepth int `json:"start_depth"`

	// DirectiveFoundInside reports whether the directive pattern matched any
	// line inside the block.
	DirectiveFoundInside bool `json:"directive_found_inside"`

	// InsideMatches counts pattern matches inside the block. Duplicates are
	// left untouched.
	InsideMatches int `json:"inside_matches"`
}

// Result is the outcome of a successful Patch.
type Result struct {
	// Text is the rewritten document. It equals the input when Changed is false.
	Text string `json:"-"`

	// Changed reports whether any line was neutralized or inserted.
	Changed bool `json:"changed"`

	// Span is the located target block.
	Span BlockSpan `json:"span"`

	// Neutralized holds the input line indices of directive occurrences found
	// outside the block, in document order.
	Neutralized []int `json:"neutralized"`

	// Inserted reports whether the directive literal was added.
	Inserted bool `json:"inserted"`

	// InsertedLineIndex is the output line index of the inserted literal, or -1.
	InsertedLineIndex int `json:"inserted_line_index"`
}

// scanner carries the state of the first pass.
type scanner struct {
	directive Directive
	opener    *regexp.Regexp
	doc       *Document

	state   scanState
	depth   int
	span    BlockSpan
	outside []int
}

// Patch ensures the directive is present inside the named block of text and
// neutralizes every instance found outside of it.
//
// It returns a *PatchError of kind KindStructural if the block is never
// opened, and KindMalformedNesting if it never closes. No partial result is
// produced in either case.
func Patch(text string, d Directive) (*Result, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	doc := ParseDocument(text)
	s := &scanner{
		directive: d,
		opener:    regexp.MustCompile(`^` + regexp.QuoteMeta(d.Block) + `\s*\{`),
		doc:       doc,
		span:      BlockSpan{OpenLineIndex: -1, BraceLineIndex: -1, ClosingLineIndex: -1},
	}
	if err := s.scan(); err != nil {
		return nil, err
	}

	needInsert := !s.span.DirectiveFoundInside
	if needInsert && s.span.ClosingLineIndex == s.span.BraceLineIndex {
		return nil, NewStructuralError(
			fmt.Sprintf("block %q opens and closes on the same line", d.Block), nil).
			WithBlock(d.Block).
			WithLine(s.span.BraceLineIndex + 1)
	}

	res := &Result{
		Text:              text,
		Span:              s.span,
		Neutralized:       s.outside,
		InsertedLineIndex: -1,
	}
	if res.Neutralized == nil {
		res.Neutralized = []int{}
	}
	if !needInsert && len(s.outside) == 0 {
		return res, nil
	}

	res.Text, res.InsertedLineIndex = s.rewrite(needInsert)
	res.Inserted = needInsert
	res.Changed = true
	return res, nil
}

// scan walks the document once and records where the block is and where the
// directive occurs.
func (s *scanner) scan() error {
	pattern := s.directive.Pattern
	for i := 0; i < s.doc.Len(); i++ {
		line := s.doc.Line(i)
		before := s.depth
		s.depth += strings.Count(line, "{") - strings.Count(line, "}")
		matched := pattern.MatchString(content(line))

		switch s.state {
		case stateBeforeBlock:
			if brace, ok := s.opens(i); ok {
				s.state = stateInsideBlock
				s.span.OpenLineIndex = i
				s.span.BraceLineIndex = brace
				s.span.StartDepth = before + 1
				if brace == i && s.depth < s.span.StartDepth {
					s.span.ClosingLineIndex = i
					s.state = stateAfterBlock
				}
				continue
			}
			if matched {
				s.outside = append(s.outside, i)
			}

		case stateInsideBlock:
			if matched {
				s.span.DirectiveFoundInside = true
				s.span.InsideMatches++
			}
			if s.depth < s.span.StartDepth {
				s.span.ClosingLineIndex = i
				s.state = stateAfterBlock
			}

		case stateAfterBlock:
			if matched {
				s.outside = append(s.outside, i)
			}
		}
	}

	switch s.state {
	case stateBeforeBlock:
		return NewStructuralError(fmt.Sprintf("block %q not found", s.directive.Block), nil).
			WithBlock(s.directive.Block)
	case stateInsideBlock:
		return NewMalformedNestingError(
			fmt.Sprintf("block %q is never closed", s.directive.Block), nil).
			WithBlock(s.directive.Block).
			WithLine(s.span.OpenLineIndex + 1)
	}
	return nil
}

// opens reports whether line i opens the target block and, if so, the index
// of the line carrying the opening brace.
func (s *scanner) opens(i int) (int, bool) {
	trimmed := strings.TrimSpace(s.doc.Line(i))
	if s.opener.MatchString(trimmed) {
		return i, true
	}
	if trimmed == s.directive.Block && i+1 < s.doc.Len() && strings.Contains(s.doc.Line(i+1), "{") {
		return i + 1, true
	}
	return -1, false
}

// rewrite applies the scan decisions and returns the new text together with
// the output index of the inserted literal (-1 if none).
func (s *scanner) rewrite(insert bool) (string, int) {
	outside := make(map[int]struct{}, len(s.outside))
	for _, i := range s.outside {
		outside[i] = struct{}{}
	}

	var b strings.Builder
	inserted := -1
	n := 0
	for i := 0; i < s.doc.Len(); i++ {
		line := s.doc.Line(i)
		if insert && i == s.span.ClosingLineIndex {
			b.WriteString(s.directive.Literal)
			b.WriteString(s.doc.lineEnding(i))
			inserted = n
			n++
		}
		if _, ok := outside[i]; ok {
			b.WriteString(s.directive.neutralize(content(line)))
			b.WriteString(terminator(line))
		} else {
			b.WriteString(line)
		}
		n++
	}
	return b.String(), inserted
}
