package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// JSON re-indents a JSON document with two spaces. Object key order and
// number literals are kept as written.
func JSON(text string) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(text)), "", "  "); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	return buf.String(), nil
}
