// Package web holds the HTML templates, embedded into the binary.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses every page. Each page is addressed by its file name, for
// example "index.html"; layout.html only contributes shared blocks.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"deref": func(n *int) int {
			if n == nil {
				return 0
			}
			return *n
		},
		"neg": func(n int) int { return -n },
	}).ParseFS(files, "templates/*.html")
}
