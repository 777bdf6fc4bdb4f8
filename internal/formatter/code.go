package formatter

import (
	"fmt"
	"strings"
)

var languageAliases = map[string]string{
	"js":   LangJavaScript,
	"mjs":  LangJavaScript,
	"cjs":  LangJavaScript,
	"ts":   LangTypeScript,
	"tsx":  LangJSX,
	"yml":  LangYAML,
	"md":   LangMarkdown,
	"htm":  LangHTML,
	"sass": LangSCSS,
}

// NormalizeLanguage lowercases a language tag and resolves common aliases
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[lang]; ok {
		return alias
	}
	return lang
}

// Code pretty-prints source in lang, or in the detected language when lang is
// empty. Indentation is two spaces and trailing whitespace is removed.
func Code(code, lang string) (string, error) {
	lang = NormalizeLanguage(lang)
	if lang == "" {
		lang = DetectLanguage(code)
	}

	out, err := formatCode(code, lang)
	if err != nil {
		return "", fmt.Errorf("format %s: %w", lang, err)
	}
	return out, nil
}

func formatCode(code, lang string) (string, error) {
	switch lang {
	case LangJSON:
		return JSON(code)
	case LangYAML:
		return YAML(code)
	case LangSQL:
		return SQL(code), nil
	case LangMarkdown:
		return Markdown(code), nil
	case LangJavaScript, LangTypeScript, LangJSX, LangCSS, LangSCSS:
		return formatBraces(code, lang)
	case LangHTML, LangVue, LangSvelte:
		return formatMarkup(code, lang)
	default:
		return "", fmt.Errorf("unsupported language")
	}
}

// Markdown trims trailing whitespace, normalizes bullets to "-", puts a
// space after heading markers and collapses runs of blank lines. Fenced code
// blocks are copied as is.
func Markdown(text string) string {
	var out []string
	inFence := false
	blank := 0

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		trimmed := strings.TrimLeft(line, " \t")

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			blank = 0
			out = append(out, line)
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}

		if trimmed == "" {
			blank++
			if blank == 1 && len(out) > 0 {
				out = append(out, "")
			}
			continue
		}
		blank = 0

		indent := line[:len(line)-len(trimmed)]
		switch {
		case strings.HasPrefix(trimmed, "#"):
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			if level <= 6 {
				rest := strings.TrimSpace(trimmed[level:])
				line = strings.TrimSpace(strings.Repeat("#", level) + " " + rest)
			}
		case len(trimmed) > 1 && (trimmed[0] == '*' || trimmed[0] == '+') && trimmed[1] == ' ':
			line = indent + "-" + trimmed[1:]
		}
		out = append(out, line)
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
