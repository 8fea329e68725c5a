package colorrule

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/allbin/serialterm/internal/style"
)

// fileRule is one [[regex]] or [[literal]] table of a rule file.
type fileRule struct {
	Rule      string `toml:"rule"`
	Color     string `toml:"color"`
	Bg        string `toml:"bg"`
	Bold      bool   `toml:"bold"`
	Italic    bool   `toml:"italic"`
	Underline bool   `toml:"underline"`
	Reverse   bool   `toml:"reverse"`
	Line      bool   `toml:"line"`
	Hide      bool   `toml:"hide"`
	Censor    bool   `toml:"censor"`
	Priority  int    `toml:"priority"`
}

type ruleFile struct {
	Regex   []fileRule `toml:"regex"`
	Literal []fileRule `toml:"literal"`
}

// LoadFile reads rules from a TOML file. A missing file yields no rules and
// no error.
func LoadFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open color rules: %w", err)
	}
	defer f.Close()

	rules, err := Load(f)
	if err != nil {
		return rules, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Load decodes a rule file. Regex tables come before literal tables in the
// returned order. A rule with a bad color is left out and reported, the rest
// are returned alongside the error.
//
//	[[regex]]
//	rule = "^ERROR.*"
//	color = "red"
//	line = true
//
//	[[literal]]
//	rule = "hunter2"
//	censor = true
func Load(r io.Reader) ([]Rule, error) {
	var rf ruleFile
	if _, err := toml.NewDecoder(r).Decode(&rf); err != nil {
		return nil, fmt.Errorf("decode color rules: %w", err)
	}

	var (
		rules []Rule
		errs  []error
	)
	add := func(kind Kind, table string, entries []fileRule) {
		for i, fr := range entries {
			rule, err := fr.toRule(kind)
			if err != nil {
				errs = append(errs, fmt.Errorf("[[%s]] #%d: %w", table, i+1, err))
				continue
			}
			rules = append(rules, rule)
		}
	}
	add(Regex, "regex", rf.Regex)
	add(Literal, "literal", rf.Literal)

	return rules, errors.Join(errs...)
}

func (fr fileRule) toRule(kind Kind) (Rule, error) {
	if fr.Rule == "" {
		return Rule{}, errors.New("missing rule pattern")
	}

	fg, err := ParseColor(fr.Color)
	if err != nil {
		return Rule{}, fmt.Errorf("color: %w", err)
	}
	bg, err := ParseColor(fr.Bg)
	if err != nil {
		return Rule{}, fmt.Errorf("bg: %w", err)
	}

	s := style.Style{Fg: fg, Bg: bg}
	if fr.Bold {
		s.Attrs |= style.Bold
	}
	if fr.Italic {
		s.Attrs |= style.Italic
	}
	if fr.Underline {
		s.Attrs |= style.Underline
	}
	if fr.Reverse {
		s.Attrs |= style.Reverse
	}

	rule := Rule{
		Pattern:  fr.Rule,
		Kind:     kind,
		Style:    s,
		Priority: fr.Priority,
		Line:     fr.Line,
		Hide:     fr.Hide,
		Censor:   fr.Censor,
	}
	if rule.effect().IsZero() {
		return Rule{}, fmt.Errorf("%q: %w", fr.Rule, ErrEmptyRule)
	}
	return rule, nil
}

var colorNames = map[string]int{
	"black":          0,
	"red":            1,
	"green":          2,
	"yellow":         3,
	"blue":           4,
	"magenta":        5,
	"cyan":           6,
	"white":          7,
	"gray":           8,
	"grey":           8,
	"bright_black":   8,
	"bright_red":     9,
	"bright_green":   10,
	"bright_yellow":  11,
	"bright_blue":    12,
	"bright_magenta": 13,
	"bright_cyan":    14,
	"bright_white":   15,
}

// ParseColor accepts a color name, a 0-255 palette index or a #rrggbb / #rgb
// hex triplet. The empty string is the unset color.
func ParseColor(s string) (style.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	name := strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if n, ok := colorNames[name]; ok {
		return style.ANSIColor(n), nil
	}
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return "", fmt.Errorf("invalid hex color %q", s)
		}
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
			return "", fmt.Errorf("invalid hex color %q", s)
		}
		return style.Color("#" + hex), nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 255 {
		return style.ANSIColor(n), nil
	}
	return "", fmt.Errorf("unknown color %q", s)
}
