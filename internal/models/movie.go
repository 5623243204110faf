// Package models defines data structures shared by the crawler, normalizer and writer.
package models

import "time"

// RawMovie holds the fields extracted from a movie's detail and showtimes
// pages before normalization. Every field is optional: a missing selector
// leaves the zero value, it never produces an error.
type RawMovie struct {
	Title          string
	DetailURL      string
	Description    string
	Language       string
	Classification string
	ReleaseDate    string // as printed on the page, e.g. "25 Dec 2024"
	Genre          string
	RunningTime    string // as printed on the page, e.g. "1 Hour 43 Minutes"
	Distributor    string
	Cast           string
	Director       string
	Format         string
	PosterURL      string
	PosterPath     string // filled by the poster downloader before normalization
	ShowtimesURL   string
	Showtimes      []DateShowtimes
}

// DateShowtimes groups the time slots scraped for one showing date.
type DateShowtimes struct {
	Date  string
	Times []string
}

// MovieRecord is one normalized row of output. It is immutable after
// normalization; every string field fits the sink's cell limit.
type MovieRecord struct {
	Title          string
	DetailURL      string
	Description    string
	RuntimeMinutes int
	ReleaseDate    string // YYYY-MM-DD, empty when the page date was unparseable
	Language       string
	Genre          string
	Distributor    string
	Classification string
	Cast           string
	Director       string
	Format         string
	PosterURL      string
	PosterPath     string // set only after a successful download
	Showtimes      string // encoded showtimes cell
	ScrapedAt      string
}

// WriteReport summarizes the outcome of the write phase. It is the sole
// observable result consumed by the invoking scheduler.
type WriteReport struct {
	Inserted     int
	Updated      int
	FailedTitles []string
}

// Failed returns the number of records that could not be written.
func (r *WriteReport) Failed() int {
	return len(r.FailedTitles)
}

// RunSummary aggregates per-item outcomes of a full scrape run.
type RunSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time

	MoviesFound   int
	Scraped       int
	FetchFailed   int
	Degraded      int // records written with one or more empty fields after a parse gap
	PostersSaved  int
	PosterFailed  int
	GatherSeconds float64
	WriteSeconds  float64

	Write WriteReport
}
