// Package report renders the run summary for the invoking scheduler's log.
package report

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"cinesync/internal/models"
)

// Render formats the run summary as an aligned plain-text table. Alignment
// uses display width, not byte length, so wide-glyph movie titles in the
// failed list don't skew the layout.
func Render(sum *models.RunSummary) string {
	rows := [][2]string{
		{"Movies found", fmt.Sprintf("%d", sum.MoviesFound)},
		{"Movies scraped", fmt.Sprintf("%d", sum.Scraped)},
		{"Fetch failures", fmt.Sprintf("%d", sum.FetchFailed)},
		{"Degraded records", fmt.Sprintf("%d", sum.Degraded)},
		{"Posters saved", fmt.Sprintf("%d", sum.PostersSaved)},
		{"Poster failures", fmt.Sprintf("%d", sum.PosterFailed)},
		{"Rows inserted", fmt.Sprintf("%d", sum.Write.Inserted)},
		{"Rows updated", fmt.Sprintf("%d", sum.Write.Updated)},
		{"Rows failed", fmt.Sprintf("%d", sum.Write.Failed())},
		{"Gather phase", fmt.Sprintf("%.1fs", sum.GatherSeconds)},
		{"Write phase", fmt.Sprintf("%.1fs", sum.WriteSeconds)},
	}

	labelWidth := 0
	valueWidth := 0

	for _, row := range rows {
		if w := runewidth.StringWidth(row[0]); w > labelWidth {
			labelWidth = w
		}

		if w := runewidth.StringWidth(row[1]); w > valueWidth {
			valueWidth = w
		}
	}

	var b strings.Builder

	rule := "+" + strings.Repeat("-", labelWidth+2) + "+" + strings.Repeat("-", valueWidth+2) + "+\n"

	b.WriteString("Run Summary\n")
	b.WriteString(rule)

	for _, row := range rows {
		b.WriteString("| ")
		b.WriteString(runewidth.FillRight(row[0], labelWidth))
		b.WriteString(" | ")
		b.WriteString(runewidth.FillLeft(row[1], valueWidth))
		b.WriteString(" |\n")
	}

	b.WriteString(rule)

	if len(sum.Write.FailedTitles) > 0 {
		b.WriteString("Failed titles:\n")
		for _, title := range sum.Write.FailedTitles {
			b.WriteString("  - " + title + "\n")
		}
	}

	return b.String()
}
