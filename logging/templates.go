package logging

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// ResultsTemplate is the name of the run summary template
const ResultsTemplate = "results.html.tmpl"

// GetHTMLTemplate returns the embedded HTML template with the given name
func GetHTMLTemplate(name string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

var templateFuncs = template.FuncMap{
	"duration": formatDuration,
}
