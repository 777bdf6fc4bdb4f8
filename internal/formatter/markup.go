package formatter

import (
	"fmt"
	"regexp"
	"strings"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "param": true,
	"source": true, "track": true, "wbr": true,
}

// Elements whose end tag HTML allows to be omitted
var optionalClose = map[string]bool{
	"li": true, "p": true, "td": true, "th": true, "tr": true, "option": true,
	"dt": true, "dd": true, "thead": true, "tbody": true, "tfoot": true,
}

// Elements whose content is not markup
var rawTextElements = map[string]bool{
	"script": true, "style": true, "pre": true, "textarea": true,
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	langAttr      = regexp.MustCompile(`\blang\s*=\s*["']?(\w+)`)
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokOpen
	tokClose
	tokSelfClosing
	tokComment
	tokDoctype
)

type markupToken struct {
	kind tokenKind
	name string // lowercased tag name
	text string // normalized tag or text
	raw  string // content of a raw text element following an open tag
	line int
}

type openTag struct {
	name string
	line int
}

// formatMarkup re-indents HTML-like documents (HTML, Vue and Svelte
// components) with one tag per line. script and style blocks are formatted
// with the brace formatter; pre and textarea content is kept verbatim.
func formatMarkup(code, lang string) (string, error) {
	tokens, err := tokenizeMarkup(code)
	if err != nil {
		return "", err
	}

	var out []string
	var stack []openTag
	emit := func(depth int, s string) {
		out = append(out, strings.Repeat(indentUnit, depth)+s)
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		depth := len(stack)

		switch tok.kind {
		case tokText, tokComment, tokDoctype, tokSelfClosing:
			emit(depth, tok.text)

		case tokOpen:
			if rawTextElements[tok.name] {
				if err := emitRawElement(&out, depth, tok); err != nil {
					return "", err
				}
				continue
			}
			if voidElements[tok.name] {
				emit(depth, tok.text)
				continue
			}
			// <b>short text</b> stays on one line
			if i+2 < len(tokens) && tokens[i+1].kind == tokText && tokens[i+2].kind == tokClose && tokens[i+2].name == tok.name {
				emit(depth, tok.text+tokens[i+1].text+tokens[i+2].text)
				i += 2
				continue
			}
			emit(depth, tok.text)
			stack = append(stack, openTag{name: tok.name, line: tok.line})

		case tokClose:
			if voidElements[tok.name] {
				continue
			}
			match := -1
			for j := len(stack) - 1; j >= 0; j-- {
				if stack[j].name == tok.name {
					match = j
					break
				}
				if !optionalClose[stack[j].name] {
					break
				}
			}
			if match < 0 {
				return "", fmt.Errorf("unexpected closing tag </%s> on line %d", tok.name, tok.line)
			}
			stack = stack[:match]
			emit(len(stack), tok.text)
		}
	}

	for _, open := range stack {
		if !optionalClose[open.name] {
			return "", fmt.Errorf("unclosed tag <%s> opened on line %d", open.name, open.line)
		}
	}

	return strings.Join(out, "\n"), nil
}

func emitRawElement(out *[]string, depth int, tok markupToken) error {
	prefix := strings.Repeat(indentUnit, depth)
	closing := "</" + tok.name + ">"

	body := strings.Trim(tok.raw, "\n")
	if strings.TrimSpace(body) == "" {
		*out = append(*out, prefix+tok.text+closing)
		return nil
	}

	var content string
	switch tok.name {
	case "script", "style":
		lang := LangJavaScript
		if tok.name == "style" {
			lang = LangCSS
		}
		if m := langAttr.FindStringSubmatch(tok.text); m != nil {
			lang = NormalizeLanguage(m[1])
		}
		formatted, err := formatBraces(dedent(body), lang)
		if err != nil {
			return fmt.Errorf("<%s> on line %d: %w", tok.name, tok.line, err)
		}
		var lines []string
		for _, l := range strings.Split(formatted, "\n") {
			if l == "" {
				lines = append(lines, "")
				continue
			}
			lines = append(lines, prefix+indentUnit+l)
		}
		content = strings.Join(lines, "\n")
	default:
		*out = append(*out, prefix+tok.text+tok.raw+closing)
		return nil
	}

	*out = append(*out, prefix+tok.text, content, prefix+closing)
	return nil
}

// dedent removes the common leading indentation of non-blank lines
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	common := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common <= 0 {
		return s
	}
	for i, l := range lines {
		if len(l) >= common {
			lines[i] = l[common:]
		}
	}
	return strings.Join(lines, "\n")
}

func tokenizeMarkup(code string) ([]markupToken, error) {
	var tokens []markupToken
	lineAt := func(pos int) int { return strings.Count(code[:pos], "\n") + 1 }

	i := 0
	textStart := 0
	flushText := func(end int) {
		text := strings.TrimSpace(whitespaceRun.ReplaceAllString(code[textStart:end], " "))
		if text != "" {
			tokens = append(tokens, markupToken{kind: tokText, text: text, line: lineAt(textStart)})
		}
	}

	for i < len(code) {
		if code[i] != '<' || i+1 >= len(code) || !isTagStart(code[i+1]) {
			i++
			continue
		}
		flushText(i)
		start := i

		switch {
		case strings.HasPrefix(code[i:], "<!--"):
			end := strings.Index(code[i+4:], "-->")
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment on line %d", lineAt(start))
			}
			i += 4 + end + 3
			tokens = append(tokens, markupToken{kind: tokComment, text: code[start:i], line: lineAt(start)})

		case code[i+1] == '!':
			end := strings.IndexByte(code[i:], '>')
			if end < 0 {
				return nil, fmt.Errorf("unterminated tag on line %d", lineAt(start))
			}
			i += end + 1
			tokens = append(tokens, markupToken{kind: tokDoctype, text: whitespaceRun.ReplaceAllString(code[start:i], " "), line: lineAt(start)})

		default:
			end := tagEnd(code, i)
			if end < 0 {
				return nil, fmt.Errorf("unterminated tag on line %d", lineAt(start))
			}
			i = end + 1
			tok := parseTag(code[start:i], lineAt(start))

			if tok.kind == tokOpen && rawTextElements[tok.name] {
				closeIdx := strings.Index(strings.ToLower(code[i:]), "</"+tok.name)
				if closeIdx < 0 {
					return nil, fmt.Errorf("unclosed tag <%s> opened on line %d", tok.name, tok.line)
				}
				tok.raw = code[i : i+closeIdx]
				closeEnd := strings.IndexByte(code[i+closeIdx:], '>')
				if closeEnd < 0 {
					return nil, fmt.Errorf("unterminated tag on line %d", lineAt(i+closeIdx))
				}
				i += closeIdx + closeEnd + 1
			}
			tokens = append(tokens, tok)
		}
		textStart = i
	}
	flushText(len(code))

	return tokens, nil
}

func isTagStart(c byte) bool {
	return c == '/' || c == '!' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// tagEnd finds the '>' closing the tag at start, skipping quoted attribute values
func tagEnd(code string, start int) int {
	var quote byte
	for j := start + 1; j < len(code); j++ {
		c := code[j]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return j
		}
	}
	return -1
}

func parseTag(tag string, line int) markupToken {
	tok := markupToken{kind: tokOpen, line: line}
	inner := tag[1 : len(tag)-1]

	if strings.HasPrefix(inner, "/") {
		tok.kind = tokClose
		inner = inner[1:]
	} else if strings.HasSuffix(inner, "/") {
		tok.kind = tokSelfClosing
	}

	nameEnd := 0
	for nameEnd < len(inner) && isNameChar(inner[nameEnd]) {
		nameEnd++
	}
	tok.name = strings.ToLower(inner[:nameEnd])
	tok.text = normalizeTag(tag)
	return tok
}

func isNameChar(c byte) bool {
	return c == '-' || c == ':' || c == '.' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// normalizeTag collapses whitespace between attributes, leaving quoted values alone
func normalizeTag(tag string) string {
	var b strings.Builder
	var quote byte
	space := false
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case ' ', '\t', '\n', '\r':
			space = true
			continue
		case '"', '\'':
			quote = c
		}
		if space {
			if c != '>' && !(c == '/' && i+1 < len(tag) && tag[i+1] == '>') {
				b.WriteByte(' ')
			} else if c == '/' {
				b.WriteByte(' ')
			}
			space = false
		}
		b.WriteByte(c)
	}
	return b.String()
}
