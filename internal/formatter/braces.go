package formatter

import (
	"fmt"
	"strings"
)

const indentUnit = "  "

type scanState int

const (
	stateCode scanState = iota
	stateBlockComment
	stateTemplate
)

type bracket struct {
	ch   byte
	line int
}

var closerFor = map[byte]byte{'{': '}', '(': ')', '[': ']'}

// regexKeywords are the words after which a slash starts a regular
// expression rather than a division
var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// braceFormatter re-indents C-family sources (JavaScript, TypeScript, JSX,
// CSS, SCSS) from their bracket structure. It tracks strings, template
// literals, regular expression literals and comments so brackets inside them
// are ignored.
type braceFormatter struct {
	lineComments  bool // "//" starts a comment
	templates     bool // backticks delimit template literals
	regexLiterals bool // /.../ in expression position is a regular expression
	preferDouble  bool // rewrite '...' as "..." when possible
	lenientQuotes bool // an unpaired ' is text (JSX children)

	stack []bracket
	state scanState
	line  int

	// last significant code byte and identifier, across lines
	prev     byte
	prevWord string
}

func newBraceFormatter(lang string) *braceFormatter {
	f := &braceFormatter{
		lineComments:  true,
		templates:     true,
		regexLiterals: true,
		preferDouble:  true,
	}
	switch lang {
	case LangCSS:
		f.lineComments = false
		f.templates = false
		f.regexLiterals = false
	case LangSCSS:
		f.templates = false
		f.regexLiterals = false
	case LangJSX:
		f.lenientQuotes = true
	}
	return f
}

// formatBraces re-indents code, then has the parser confirm it is valid
// for languages it understands.
func formatBraces(code, lang string) (string, error) {
	out, err := newBraceFormatter(lang).format(code)
	if err != nil {
		return "", err
	}
	if err := checkSyntax(code, lang); err != nil {
		return "", err
	}
	return out, nil
}

func (f *braceFormatter) format(code string) (string, error) {
	var out []string
	blank := 0

	for i, raw := range strings.Split(code, "\n") {
		f.line = i + 1
		raw = strings.TrimRight(raw, " \t\r")

		// Inside a template literal whitespace is content
		if f.state == stateTemplate {
			if _, err := f.scan(raw); err != nil {
				return "", err
			}
			out = append(out, raw)
			blank = 0
			continue
		}

		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			blank++
			if blank == 1 && len(out) > 0 {
				out = append(out, "")
			}
			continue
		}
		blank = 0

		depth := len(f.stack)
		prefix := ""
		if f.state == stateBlockComment {
			if strings.HasPrefix(trimmed, "*") {
				prefix = " "
			}
		} else {
			depth -= leadingClosers(trimmed)
		}
		if depth < 0 {
			depth = 0
		}

		converted, err := f.scan(trimmed)
		if err != nil {
			return "", err
		}
		out = append(out, strings.Repeat(indentUnit, depth)+prefix+strings.TrimRight(converted, " \t"))
	}

	switch f.state {
	case stateBlockComment:
		return "", fmt.Errorf("unterminated comment")
	case stateTemplate:
		return "", fmt.Errorf("unterminated template literal")
	}
	if len(f.stack) > 0 {
		open := f.stack[len(f.stack)-1]
		return "", fmt.Errorf("unclosed '%c' opened on line %d", open.ch, open.line)
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n"), nil
}

func leadingClosers(s string) int {
	n := 0
	for n < len(s) && (s[n] == '}' || s[n] == ')' || s[n] == ']') {
		n++
	}
	return n
}

// scan walks one line, updating bracket and literal state, and returns the
// line with single-quoted strings rewritten where preferDouble applies.
func (f *braceFormatter) scan(s string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]

		switch f.state {
		case stateBlockComment:
			if strings.HasPrefix(s[i:], "*/") {
				b.WriteString("*/")
				i += 2
				f.state = stateCode
				continue
			}
			b.WriteByte(c)
			i++
			continue

		case stateTemplate:
			if c == '\\' && i+1 < len(s) {
				b.WriteString(s[i : i+2])
				i += 2
				continue
			}
			if c == '`' {
				f.state = stateCode
				f.prev = '`'
			}
			b.WriteByte(c)
			i++
			continue
		}

		switch {
		case f.lineComments && strings.HasPrefix(s[i:], "//"):
			b.WriteString(s[i:])
			return b.String(), nil

		case strings.HasPrefix(s[i:], "/*"):
			b.WriteString("/*")
			i += 2
			f.state = stateBlockComment

		case c == '/' && f.regexLiterals && f.regexAllowed():
			end := regexEnd(s, i)
			if end < 0 {
				return "", fmt.Errorf("unterminated regular expression on line %d", f.line)
			}
			b.WriteString(s[i:end])
			i = end
			f.prev = '/'
			f.prevWord = ""

		case c == '"' || c == '\'':
			end := stringEnd(s, i)
			if end < 0 {
				if f.lenientQuotes && c == '\'' {
					b.WriteByte(c)
					i++
					continue
				}
				return "", fmt.Errorf("unterminated string literal on line %d", f.line)
			}
			b.WriteString(f.quote(s[i : end+1]))
			i = end + 1
			f.prev = c

		case c == '`' && f.templates:
			f.state = stateTemplate
			b.WriteByte(c)
			i++

		case c == '{' || c == '(' || c == '[':
			f.stack = append(f.stack, bracket{ch: c, line: f.line})
			b.WriteByte(c)
			i++
			f.prev = c

		case c == '}' || c == ')' || c == ']':
			if len(f.stack) == 0 {
				return "", fmt.Errorf("unexpected '%c' on line %d", c, f.line)
			}
			open := f.stack[len(f.stack)-1]
			if closerFor[open.ch] != c {
				return "", fmt.Errorf("unexpected '%c' on line %d, expected '%c' for line %d", c, f.line, closerFor[open.ch], open.line)
			}
			f.stack = f.stack[:len(f.stack)-1]
			b.WriteByte(c)
			i++
			f.prev = c

		case isIdentByte(c):
			j := i + 1
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			b.WriteString(s[i:j])
			f.prev = c
			f.prevWord = s[i:j]
			i = j

		default:
			b.WriteByte(c)
			i++
			if c != ' ' && c != '\t' {
				f.prev = c
			}
		}
	}
	return b.String(), nil
}

// regexAllowed reports whether a slash at the current position begins a
// regular expression literal. After a value (identifier, literal, closing
// bracket) it is a division; after '<' it closes a JSX tag.
func (f *braceFormatter) regexAllowed() bool {
	switch {
	case f.prev == 0:
		return true
	case isIdentByte(f.prev):
		return regexKeywords[f.prevWord]
	default:
		return strings.IndexByte("(,=:[!&|?{};+-*%~^>", f.prev) >= 0
	}
}

// regexEnd returns the index just past the flags of the regular expression
// literal starting at start, or -1 when the line ends first.
func regexEnd(s string, start int) int {
	inClass := false
	for j := start + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if inClass {
				continue
			}
			j++
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			return j
		}
	}
	return -1
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// stringEnd returns the index of the quote closing the string that starts at
// start, or -1 when the line ends first.
func stringEnd(s string, start int) int {
	q := s[start]
	for j := start + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j
		}
	}
	return -1
}

func (f *braceFormatter) quote(lit string) string {
	if !f.preferDouble || lit[0] != '\'' {
		return lit
	}
	body := lit[1 : len(lit)-1]
	if strings.Contains(body, `"`) {
		return lit
	}
	return `"` + strings.ReplaceAll(body, `\'`, `'`) + `"`
}
