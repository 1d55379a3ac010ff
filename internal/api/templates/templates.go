// Package templates embeds the HTML pages served by the API.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed html/*.html
var files embed.FS

var funcs = template.FuncMap{
	"percent": func(p float64) string { return fmt.Sprintf("%.0f", p) },
	"join":    strings.Join,
}

// Parse returns every page template, named by file name.
func Parse() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(files, "html/*.html")
}
