package catalog

import (
	"sort"
	"strings"

	"github.com/medb/medb/internal/model"
)

// ExportHeader is the first line of every CSV export.
const ExportHeader = "Media Type,Title,Tier,To-Do,Year,Tags,Description"

// FormatExportRow renders one item as a CSV row. Title, tags and description
// are always quoted when present; years are written as ISO dates.
func FormatExportRow(it *model.Item) string {
	var title, year, tags, description string
	if it.Title != "" {
		title = quoteCSV(it.Title)
	}
	toDo := "No"
	if it.ToDo {
		toDo = "Yes"
	}
	if it.Year != nil {
		year = it.Year.UTC().Format("2006-01-02")
	}
	if len(it.Tags) > 0 {
		tags = quoteCSV(strings.Join(it.Tags, ", "))
	}
	if it.Description != "" {
		description = quoteCSV(it.Description)
	}
	return strings.Join([]string{it.Category, title, it.Tier, toDo, year, tags, description}, ",")
}

func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FormatExport renders the full CSV document, grouped by category then list.
func FormatExport(items []model.Item) string {
	sorted := make([]model.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := &sorted[i], &sorted[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.ToDo != b.ToDo {
			return !a.ToDo
		}
		return model.DisplayLess(a, b)
	})

	var sb strings.Builder
	sb.WriteString(ExportHeader)
	for i := range sorted {
		sb.WriteByte('\n')
		sb.WriteString(FormatExportRow(&sorted[i]))
	}
	return sb.String()
}
