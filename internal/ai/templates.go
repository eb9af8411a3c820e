package ai

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates
var templateFS embed.FS

var websiteTmpl = template.Must(template.ParseFS(templateFS, "templates/website.html.tmpl"))

func mustRead(name string) string {
	b, err := templateFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return string(b)
}

var (
	websiteCSS = mustRead("templates/website.css")
	siteJS     = mustRead("templates/site.js")
	designHTML = mustRead("templates/design.html")
	designCSS  = mustRead("templates/design.css")
)

// fallbackTitle is the first three words of the prompt.
func fallbackTitle(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > 3 {
		words = words[:3]
	}
	if len(words) == 0 {
		return "My Website"
	}
	return strings.Join(words, " ")
}

// FallbackWebsite renders the static landing page used when generation fails.
func FallbackWebsite(prompt string) *Result {
	data := struct {
		Title    string
		Year     int
		Features []string
		Services []string
	}{
		Title:    fallbackTitle(prompt),
		Year:     time.Now().Year(),
		Features: []string{"Feature 1", "Feature 2", "Feature 3"},
		Services: []string{"Service 1", "Service 2", "Service 3", "Service 4"},
	}

	var buf bytes.Buffer
	if err := websiteTmpl.Execute(&buf, data); err != nil {
		// The template is static; a failure here is a programming error.
		panic(err)
	}

	return &Result{HTML: buf.String(), CSS: websiteCSS, JS: siteJS, Source: SourceFallback}
}

// FallbackDesign is the portfolio page returned when design import fails.
func FallbackDesign() *Result {
	return &Result{HTML: designHTML, CSS: designCSS, JS: siteJS, Source: SourceFallback}
}
