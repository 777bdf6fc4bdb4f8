package formatter

import (
	"errors"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// Loaders for the languages esbuild can parse. JavaScript uses the JSX
// loader since plain scripts often carry JSX; SCSS has no loader.
var esbuildLoaders = map[string]api.Loader{
	LangJavaScript: api.LoaderJSX,
	LangTypeScript: api.LoaderTS,
	LangJSX:        api.LoaderTSX,
	LangCSS:        api.LoaderCSS,
}

// checkSyntax parses code and reports the first syntax error. Languages
// without a parser always pass.
func checkSyntax(code, lang string) error {
	loader, ok := esbuildLoaders[lang]
	if !ok {
		return nil
	}

	result := api.Transform(code, api.TransformOptions{
		Loader:   loader,
		LogLevel: api.LogLevelSilent,
	})
	if len(result.Errors) == 0 {
		return nil
	}

	msg := result.Errors[0]
	if msg.Location != nil {
		return fmt.Errorf("syntax error on line %d: %s", msg.Location.Line, msg.Text)
	}
	return errors.New("syntax error: " + msg.Text)
}
