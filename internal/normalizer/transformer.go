// Package normalizer turns raw scraped movie fields into fixed-shape records
// that respect the sink's per-cell size limit.
package normalizer

import (
	"regexp"
	"strconv"
	"time"

	"cinesync/internal/models"
)

var (
	hoursPattern   = regexp.MustCompile(`(?i)(\d+)\s*Hours?`)
	minutesPattern = regexp.MustCompile(`(?i)(\d+)\s*Minutes?`)
)

// pageDateLayout is how the source site prints release dates, e.g. "25 Dec 2024".
const pageDateLayout = "2 Jan 2006"

// Transformer converts RawMovie fields into MovieRecords under a fixed cell
// limit and truncation marker.
type Transformer struct {
	limit  int
	marker string
	now    func() time.Time
}

// NewTransformer creates a transformer for the given cell limit (inclusive of
// the marker) and truncation marker.
func NewTransformer(limit int, marker string) *Transformer {
	return &Transformer{
		limit:  limit,
		marker: marker,
		now:    time.Now,
	}
}

// Transform builds a normalized record from raw scraped fields. It is total:
// malformed or missing fields degrade to zero values so one bad page cannot
// abort the run. The returned record is never mutated afterwards.
func (t *Transformer) Transform(raw models.RawMovie) models.MovieRecord {
	merged := MergeShowtimes(raw.Showtimes)

	return models.MovieRecord{
		Title:          t.text(raw.Title),
		DetailURL:      t.text(raw.DetailURL),
		Description:    t.text(raw.Description),
		RuntimeMinutes: parseRuntimeMinutes(raw.RunningTime),
		ReleaseDate:    parseReleaseDate(raw.ReleaseDate),
		Language:       t.text(raw.Language),
		Genre:          t.text(raw.Genre),
		Distributor:    t.text(raw.Distributor),
		Classification: t.text(raw.Classification),
		Cast:           t.text(raw.Cast),
		Director:       t.text(raw.Director),
		Format:         t.text(raw.Format),
		PosterURL:      t.text(raw.PosterURL),
		PosterPath:     t.text(raw.PosterPath),
		Showtimes:      EncodeShowtimes(merged, t.limit, t.marker),
		ScrapedAt:      t.now().UTC().Format("2006-01-02 15:04:05"),
	}
}

// text applies the free-text normalization pipeline: trim, collapse
// whitespace, truncate to the cell limit.
func (t *Transformer) text(s string) string {
	return Truncate(CollapseWhitespace(s), t.limit, t.marker)
}

// parseRuntimeMinutes extracts total minutes from text like "1 Hour 43 Minutes".
// Unparseable input yields 0.
func parseRuntimeMinutes(s string) int {
	total := 0

	if m := hoursPattern.FindStringSubmatch(s); m != nil {
		if h, err := strconv.Atoi(m[1]); err == nil {
			total += h * 60
		}
	}

	if m := minutesPattern.FindStringSubmatch(s); m != nil {
		if mins, err := strconv.Atoi(m[1]); err == nil {
			total += mins
		}
	}

	return total
}

// parseReleaseDate re-renders the page's release date as YYYY-MM-DD.
// Unparseable input yields the empty string.
func parseReleaseDate(s string) string {
	parsed, err := time.Parse(pageDateLayout, CollapseWhitespace(s))
	if err != nil {
		return ""
	}

	return parsed.Format("2006-01-02")
}
