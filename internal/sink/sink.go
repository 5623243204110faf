// Package sink provides the title-keyed tabular store that persists movie
// records across runs.
package sink

import (
	"context"
	"strconv"

	"cinesync/internal/models"
)

// Sink is a tabular store addressed by 1-based row number, with row 1
// reserved for the header. Implementations enforce their own cell size
// limits; the normalizer keeps records under them before they get here.
type Sink interface {
	// Rows returns the existing title -> row number mapping.
	Rows(ctx context.Context) (map[string]int, error)
	// Update overwrites the given rows in place.
	Update(ctx context.Context, rows map[int][]string) error
	// Append adds new rows after the current table.
	Append(ctx context.Context, rows [][]string) error
}

// Header is the master worksheet's first row. Column order is the wire
// format shared by Record and the writer; the title column is first.
var Header = []string{
	"Movie Title",
	"Movie URL",
	"Description",
	"Running Time (Minutes)",
	"Release Date (YYYY-MM-DD)",
	"Language",
	"Genre",
	"Distributor",
	"Classification",
	"Cast",
	"Director",
	"Format",
	"Poster URL",
	"Local Poster Path",
	"Aggregated Showtimes",
	"Scrape Date",
}

// Row renders a record as one sheet row in Header order.
func Row(rec models.MovieRecord) []string {
	runtime := ""
	if rec.RuntimeMinutes > 0 {
		runtime = strconv.Itoa(rec.RuntimeMinutes)
	}

	return []string{
		rec.Title,
		rec.DetailURL,
		rec.Description,
		runtime,
		rec.ReleaseDate,
		rec.Language,
		rec.Genre,
		rec.Distributor,
		rec.Classification,
		rec.Cast,
		rec.Director,
		rec.Format,
		rec.PosterURL,
		rec.PosterPath,
		rec.Showtimes,
		rec.ScrapedAt,
	}
}
