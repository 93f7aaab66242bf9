package htmltext

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Converter renders HTML mail bodies as clean plain text. Used to derive the
// text alternative of outbound messages and to give the order matcher a
// scannable body.
type Converter struct {
	whitespaceRegex *regexp.Regexp
	newlineRegex    *regexp.Regexp
	invisibleRegex  *regexp.Regexp
}

// NewConverter creates a new HTML-to-text converter
func NewConverter() *Converter {
	return &Converter{
		whitespaceRegex: regexp.MustCompile(`[^\S\n]+`),
		newlineRegex:    regexp.MustCompile(`\n{3,}`),
		// Invisible Unicode characters (zero-width spaces, etc.)
		invisibleRegex: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{2060}-\x{2064}\x{206A}-\x{206F}\x{FE00}-\x{FE0F}]+`),
	}
}

// Text converts HTML to plain text. On parse failure the input is returned
// unchanged so callers always get something scannable.
func (c *Converter) Text(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style, head, meta, link").Remove()

	// Newlines before block elements so text does not run together
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := doc.Text()
	text = c.invisibleRegex.ReplaceAllString(text, "")
	text = c.whitespaceRegex.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	var cleanLines []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	text = strings.Join(cleanLines, "\n")
	text = c.newlineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
