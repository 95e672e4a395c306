// Package web holds the page templates and static assets, embedded into
// the binary.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"time"

	"github.com/gin-contrib/multitemplate"

	"haruboard/internal/utils"
)

//go:embed templates static
var assets embed.FS

// Views are the page names handlers render.
var Views = []string{
	"auth/login.html",
	"auth/signup.html",
	"board/list.html",
	"board/detail.html",
	"board/write.html",
	"board/edit.html",
	"error.html",
}

// Static returns the static asset tree rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Templates assembles each view with the shared layouts and components.
func Templates() (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	layouts, err := fs.Glob(assets, "templates/layouts/*.html")
	if err != nil {
		return nil, err
	}
	components, err := fs.Glob(assets, "templates/components/*.html")
	if err != nil {
		return nil, err
	}

	// base.html must come first: it is the template that gets executed
	files := func(view string) []string {
		out := []string{"templates/layouts/base.html"}
		for _, f := range layouts {
			if path.Base(f) != "base.html" {
				out = append(out, f)
			}
		}
		out = append(out, components...)
		return append(out, "templates/views/"+view)
	}

	funcs := FuncMap()
	for _, view := range Views {
		list := files(view)
		tmpl, err := template.New(path.Base(list[0])).Funcs(funcs).ParseFS(assets, list...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", view, err)
		}
		r.Add(view, tmpl)
	}
	return r, nil
}

func FuncMap() template.FuncMap {
	return template.FuncMap{
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"formatDate": func(t time.Time) string {
			return t.Local().Format("2006-01-02")
		},
		"formatDateTime": func(t time.Time) string {
			return t.Local().Format("2006-01-02 15:04")
		},
		"markdown": utils.RenderMarkdown,
	}
}
