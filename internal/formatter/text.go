package formatter

import (
	"regexp"
	"strings"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripANSI removes SGR escape sequences (colors and styles)
func StripANSI(text string) string {
	return ansiPattern.ReplaceAllString(text, "")
}

var logLevelPattern = regexp.MustCompile(`(?i)\[(error|warn(?:ing)?|info|debug)\]|\b(error|warn(?:ing)?|info|debug):`)

// LogToMarkdown renders log lines as a markdown list under a summary heading.
// Lines carrying a level marker become "- **LEVEL**: message" with the marker
// removed; other lines are listed verbatim.
func LogToMarkdown(text string) string {
	var b strings.Builder
	b.WriteString("# Log Summary\n")

	first := true
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if first {
			b.WriteString("\n")
			first = false
		}

		loc := logLevelPattern.FindStringSubmatchIndex(line)
		if loc == nil {
			b.WriteString("- " + strings.TrimSpace(line) + "\n")
			continue
		}

		var level string
		if loc[2] >= 0 {
			level = line[loc[2]:loc[3]]
		} else {
			level = line[loc[4]:loc[5]]
		}
		level = strings.ToUpper(level)
		if level == "WARNING" {
			level = "WARN"
		}

		before := strings.TrimSpace(line[:loc[0]])
		after := strings.TrimSpace(line[loc[1]:])
		msg := strings.TrimSpace(before + " " + after)

		b.WriteString("- **" + level + "**: " + msg + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
