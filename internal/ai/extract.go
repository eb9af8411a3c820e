package ai

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SplitDocument pulls inline <style> and <script> bodies out of a full HTML
// document. Scripts with a src attribute stay in the markup.
func SplitDocument(document string) (html, css, js string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return "", "", "", err
	}

	var styles, scripts []string
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			styles = append(styles, text)
		}
	}).Remove()

	doc.Find("script:not([src])").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			scripts = append(scripts, text)
		}
	}).Remove()

	html, err = doc.Html()
	if err != nil {
		return "", "", "", err
	}
	return html, strings.Join(styles, "\n\n"), strings.Join(scripts, "\n\n"), nil
}

func hasInlineAssets(document string) bool {
	lower := strings.ToLower(document)
	return strings.Contains(lower, "<style") || strings.Contains(lower, "<script")
}

// stripFences removes a markdown code fence some models wrap around JSON.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		content = content[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(content), "```"))
}
