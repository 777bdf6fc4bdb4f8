package formatter

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Detected language names
const (
	LangVue        = "vue"
	LangSvelte     = "svelte"
	LangTypeScript = "typescript"
	LangJSX        = "jsx"
	LangHTML       = "html"
	LangSCSS       = "scss"
	LangCSS        = "css"
	LangJSON       = "json"
	LangYAML       = "yaml"
	LangMarkdown   = "markdown"
	LangSQL        = "sql"
	LangJavaScript = "javascript"
)

var (
	vuePattern    = regexp.MustCompile(`(?m)^\s*<template[\s>]`)
	sveltePattern = regexp.MustCompile(`(?m)\{[#:/](if|each|await|else|then|catch)\b|\bon:[a-z]+=\{|^\s*\$:\s`)

	typeScriptPattern = regexp.MustCompile(
		`(?m)\b(interface|type)\s+[A-Z]\w*(\s*<[^>]*>)?\s*[={]` +
			`|\benum\s+\w+\s*\{` +
			`|\b(let|const|var)\s+\w+\s*:\s*[\w\[\]<>|]+\s*=` +
			`|\(\s*\w+\??\s*:\s*[A-Za-z][\w\[\]<>|]*\s*[,)=]` +
			`|\)\s*:\s*[A-Za-z][\w\[\]<>|]*\s*(\{|=>)` +
			`|\b(public|private|protected|readonly)\s+\w+` +
			`|\bimplements\s+\w+` +
			`|^\s*@\w+(\(|$)` +
			`|\bas\s+(string|number|boolean|const|unknown)\b` +
			`|\w<[A-Z]\w*(\[\])?>\s*\(`,
	)

	jsxPattern = regexp.MustCompile(`<[A-Z]\w*[\s/>]|return\s*\(\s*<|\bclassName=|=>\s*\(?\s*<\w`)

	htmlPattern = regexp.MustCompile(`(?i)<!doctype\s+html|<html[\s>]|<(head|body|div|span|p|a|ul|ol|li|table|section|header|footer|nav|main|form|button)[\s>]`)

	scssPattern = regexp.MustCompile(`(?m)^\s*\$[\w-]+\s*:|@(mixin|include|extend|use)\b|&[:.\-]`)

	cssPattern = regexp.MustCompile(`(?m)^\s*(@media[^{]*|[.#:*\[]?[\w\-.#:>~+,*\[\]="'\s]+)\{\s*[\w-]+\s*:\s*[^;{}]+;`)

	yamlKeyLine   = regexp.MustCompile(`^\s*(- +)?["']?[\w.\-/ ]+["']?\s*:(\s.*)?$`)
	yamlOtherLine = regexp.MustCompile(`^\s*(#.*|- .*|-|---.*|\.\.\.|[|>].*)$`)

	markdownPattern = regexp.MustCompile("(?m)^#{1,6}\\s+\\S|^\\s*[-*+]\\s+\\S|\\*\\*[^*\\n]+\\*\\*|\\[[^\\]\\n]+\\]\\([^)\\n]+\\)|^```|^>\\s")

	sqlPattern = regexp.MustCompile(`(?i)^\s*(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP|WITH)\b`)

	javaScriptPattern = regexp.MustCompile(`\b(import|export|const|let|var|function|require|class)\b|=>`)
)

// DetectLanguage guesses the language of code. Rules are tried in order and
// the first match wins, so more specific grammars come before general ones.
// Unrecognized input is treated as JavaScript.
func DetectLanguage(code string) string {
	trimmed := strings.TrimSpace(code)

	switch {
	case vuePattern.MatchString(code):
		return LangVue
	case sveltePattern.MatchString(code):
		return LangSvelte
	case typeScriptPattern.MatchString(code):
		return LangTypeScript
	case jsxPattern.MatchString(code):
		return LangJSX
	case htmlPattern.MatchString(code):
		return LangHTML
	case scssPattern.MatchString(code):
		return LangSCSS
	case cssPattern.MatchString(code):
		return LangCSS
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if json.Valid([]byte(trimmed)) {
			return LangJSON
		}
		// not JSON after all; keep going
	}

	switch {
	case looksLikeYAML(code):
		return LangYAML
	case markdownPattern.MatchString(code):
		return LangMarkdown
	case sqlPattern.MatchString(code):
		return LangSQL
	case javaScriptPattern.MatchString(code):
		return LangJavaScript
	}

	return LangJavaScript
}

// looksLikeYAML requires at least one "key: value" line and that nearly all
// non-blank lines are YAML shaped.
func looksLikeYAML(code string) bool {
	total, yamlish, keys := 0, 0, 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		switch {
		case yamlKeyLine.MatchString(line):
			yamlish++
			keys++
		case yamlOtherLine.MatchString(line):
			yamlish++
		}
	}
	return keys > 0 && yamlish*10 >= total*8
}
