// Package render turns digest documents into markdown.
package render

import (
	"fmt"
	"strings"

	"ainews/internal/core"
)

var sectionTitles = map[string]string{
	core.CategoryNews:  "News",
	core.CategoryTips:  "Tips & Tools",
	core.CategoryPaper: "Papers",
}

// Section renders one category of a digest as markdown. An empty section
// renders a header with a placeholder line so the stored row is still a
// valid document.
func Section(date, category string, items []core.DigestItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s — %s\n\n", sectionTitle(category), date)

	if len(items) == 0 {
		b.WriteString("_No items today._\n")
		return b.String()
	}

	for i, di := range items {
		fmt.Fprintf(&b, "%d. **[%s](%s)**", i+1, escapeTitle(di.Item.Title), di.Item.URL)
		fmt.Fprintf(&b, " — %s, score %.2f\n", di.Item.SourceID, di.Score.Total)
		if di.Summary != "" {
			fmt.Fprintf(&b, "   %s\n", di.Summary)
		}
	}
	return b.String()
}

// Document renders a full digest, all sections in fixed category order.
func Document(doc *core.DigestDoc) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Daily Digest — %s\n\n", doc.Date)
	for _, category := range core.Categories {
		b.WriteString(Section(doc.Date, category, *doc.Section(category)))
		b.WriteString("\n")
	}
	return b.String()
}

func sectionTitle(category string) string {
	if title, ok := sectionTitles[category]; ok {
		return title
	}
	return category
}

// escapeTitle keeps titles from breaking the markdown link syntax.
func escapeTitle(title string) string {
	r := strings.NewReplacer("[", "\\[", "]", "\\]")
	return r.Replace(title)
}
