// Package colorrule applies user color rules to plain text on top of the
// styling that came from ANSI escape sequences.
package colorrule

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/allbin/serialterm/internal/style"
)

// Kind selects how a rule's pattern is interpreted.
type Kind int

const (
	Literal Kind = iota
	Regex
)

func (k Kind) String() string {
	if k == Regex {
		return "regex"
	}
	return "literal"
}

// ErrEmptyRule is reported for rules that neither style, hide nor censor.
var ErrEmptyRule = errors.New("rule must style, hide or censor its matches")

// Rule is one user rule. Higher Priority rules are applied later and win
// where they overlap lower priority ones. Among equal priorities the rule
// declared first wins.
type Rule struct {
	Pattern  string
	Kind     Kind
	Style    style.Style
	Priority int

	// Line styles the whole text run when the pattern matches anywhere in it.
	Line bool
	// Hide removes matched text from display.
	Hide bool
	// Censor masks matched text on display.
	Censor bool
}

func (r Rule) effect() style.Style {
	s := r.Style
	if r.Hide {
		s.Attrs |= style.Hide
	}
	if r.Censor {
		s.Attrs |= style.Censor
	}
	return s
}

type compiled struct {
	rule    Rule
	index   int
	literal []byte
	re      *regexp.Regexp
}

// Engine holds a compiled rule set. It is immutable and safe for
// concurrent use.
type Engine struct {
	rules []compiled
}

// Compile builds an Engine. Invalid rules are left out; each is described in
// the returned errors and the engine is usable regardless.
func Compile(rules []Rule) (*Engine, []error) {
	var (
		e    Engine
		errs []error
	)
	for i, r := range rules {
		c := compiled{rule: r, index: i}
		switch {
		case r.Pattern == "":
			errs = append(errs, fmt.Errorf("rule %d: empty pattern", i+1))
			continue
		case r.effect().IsZero():
			errs = append(errs, fmt.Errorf("rule %d (%q): %w", i+1, r.Pattern, ErrEmptyRule))
			continue
		}
		if r.Kind == Regex {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				errs = append(errs, fmt.Errorf("rule %d (%q): %w", i+1, r.Pattern, err))
				continue
			}
			c.re = re
		} else {
			c.literal = []byte(r.Pattern)
		}
		e.rules = append(e.rules, c)
	}

	// Application order: ascending priority, later declarations first so
	// that earlier ones are applied last among equals.
	sort.SliceStable(e.rules, func(a, b int) bool {
		ra, rb := e.rules[a], e.rules[b]
		if ra.rule.Priority != rb.rule.Priority {
			return ra.rule.Priority < rb.rule.Priority
		}
		return ra.index > rb.index
	})
	return &e, errs
}

// Len returns the number of active rules.
func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Apply returns spans covering every byte of text: the ANSI-derived spans
// with each matching rule overlaid. A nil Engine returns the ANSI styling
// unchanged.
func (e *Engine) Apply(text []byte, ansi []style.Span) []style.Span {
	per := style.Expand(ansi, len(text))
	if e != nil {
		for _, c := range e.rules {
			c.apply(text, per)
		}
	}
	return style.Spans(per)
}

func (c compiled) apply(text []byte, per []style.Style) {
	matches := c.find(text)
	if len(matches) == 0 {
		return
	}
	eff := c.rule.effect()
	if c.rule.Line {
		matches = [][]int{{0, len(text)}}
	}
	for _, m := range matches {
		for i := m[0]; i < m[1]; i++ {
			per[i] = per[i].Overlay(eff)
		}
	}
}

func (c compiled) find(text []byte) [][]int {
	if c.re != nil {
		var out [][]int
		for _, m := range c.re.FindAllIndex(text, -1) {
			if m[1] > m[0] {
				out = append(out, m)
			}
		}
		return out
	}

	var out [][]int
	for off := 0; off < len(text); {
		i := bytes.Index(text[off:], c.literal)
		if i < 0 {
			break
		}
		start := off + i
		out = append(out, []int{start, start + len(c.literal)})
		off = start + len(c.literal)
	}
	return out
}
