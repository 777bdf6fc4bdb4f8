// Package formatter implements the local text transforms: JSON, YAML and SQL
// normalization, ANSI stripping, log summaries and a multi-language code
// formatter with language auto-detection. Every transform is pure.
package formatter

import (
	"errors"
	"fmt"

	"devclip/internal/catalog"
)

// ErrUnsupportedOperation is returned by Engine.Format for non-local operations
var ErrUnsupportedOperation = errors.New("unsupported format operation")

// Engine dispatches local catalog operations to their transform
type Engine struct{}

// NewEngine returns a formatting engine
func NewEngine() *Engine {
	return &Engine{}
}

// Format runs the transform named by op. lang is only used by the code
// formatter; when empty the language is detected.
func (e *Engine) Format(op, text, lang string) (string, error) {
	switch op {
	case catalog.OpJSON:
		return JSON(text)
	case catalog.OpYAML:
		return YAML(text)
	case catalog.OpSQL:
		return SQL(text), nil
	case catalog.OpANSIStrip:
		return StripANSI(text), nil
	case catalog.OpLogToMarkdown:
		return LogToMarkdown(text), nil
	case catalog.OpCode:
		return Code(text, lang)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOperation, op)
	}
}
