// Package pipeline orchestrates one scrape run: a concurrent gather phase
// (fetch, parse, normalize, poster download) followed by a sequential write
// phase. A strict barrier between the phases means the record list is
// append-only while gathering and read-only while writing.
package pipeline

import (
	"context"
	"sync"
	"time"

	"cinesync/internal/config"
	"cinesync/internal/crawler"
	"cinesync/internal/logger"
	"cinesync/internal/models"
	"cinesync/internal/normalizer"
	"cinesync/internal/poster"
	"cinesync/internal/writer"
)

// Pipeline wires the crawler, normalizer, poster downloader and batch writer
// into one run.
type Pipeline struct {
	cfg         *config.Config
	logger      *logger.Logger
	client      *crawler.Client
	transformer *normalizer.Transformer
	downloader  *poster.Downloader // nil when poster downloads are disabled
	writer      *writer.Writer
}

// New creates a pipeline. downloader may be nil to skip poster downloads.
func New(
	cfg *config.Config,
	log *logger.Logger,
	client *crawler.Client,
	transformer *normalizer.Transformer,
	downloader *poster.Downloader,
	w *writer.Writer,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		logger:      log,
		client:      client,
		transformer: transformer,
		downloader:  downloader,
		writer:      w,
	}
}

// Run executes one full scrape run and returns its summary. Per-movie
// failures are counted, not raised; the returned error is non-nil only when
// the sink rejected every batch.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	sum := &models.RunSummary{StartedAt: time.Now().UTC()}

	gatherStart := time.Now()
	records := p.gather(ctx, sum)
	sum.GatherSeconds = time.Since(gatherStart).Seconds()

	p.logger.Info("gather phase done",
		"found", sum.MoviesFound,
		"scraped", sum.Scraped,
		"fetch_failed", sum.FetchFailed,
	)

	writeStart := time.Now()
	rep, err := p.writer.Write(ctx, records)
	sum.WriteSeconds = time.Since(writeStart).Seconds()
	sum.Write = *rep
	sum.FinishedAt = time.Now().UTC()

	p.logger.Info("write phase done",
		"inserted", rep.Inserted,
		"updated", rep.Updated,
		"failed", rep.Failed(),
	)

	return sum, err
}

// gather fetches and normalizes all movies from the listing, up to
// max_concurrency at a time. Every failure degrades to a counter: a fetch
// failure skips that movie, a parse gap yields a record with empty fields.
func (p *Pipeline) gather(ctx context.Context, sum *models.RunSummary) []models.MovieRecord {
	entries, err := p.client.Listing(ctx, p.cfg.Scrape.ListingURL)
	if err != nil {
		// Nothing to process this run; the sink keeps its previous state.
		p.logger.Error("listing fetch failed", "url", p.cfg.Scrape.ListingURL, "error", err)
		sum.FetchFailed++

		return nil
	}

	if max := p.cfg.Scrape.MaxMovies; max > 0 && len(entries) > max {
		entries = entries[:max]
	}

	sum.MoviesFound = len(entries)
	p.logger.Info("listing parsed", "movies", len(entries))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		sem     = make(chan struct{}, p.cfg.Scrape.MaxConcurrency)
		records = make([]models.MovieRecord, 0, len(entries))
	)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)

		go func(entry crawler.ListingEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rec, outcome := p.scrapeOne(ctx, entry)

			mu.Lock()
			defer mu.Unlock()

			switch outcome {
			case outcomeFetchFailed:
				sum.FetchFailed++
				return
			case outcomeDegraded:
				sum.Degraded++
			}

			if rec.PosterPath != "" {
				sum.PostersSaved++
			} else if rec.PosterURL != "" && p.downloader != nil {
				sum.PosterFailed++
			}

			sum.Scraped++
			records = append(records, rec)
		}(entry)
	}

	wg.Wait()

	return records
}

type scrapeOutcome int

const (
	outcomeOK scrapeOutcome = iota
	outcomeDegraded
	outcomeFetchFailed
)

// scrapeOne handles a single movie: detail fetch, poster side effect,
// normalization.
func (p *Pipeline) scrapeOne(ctx context.Context, entry crawler.ListingEntry) (models.MovieRecord, scrapeOutcome) {
	raw, err := p.client.Movie(ctx, entry)
	if err != nil {
		p.logger.Warn("movie skipped", "title", entry.Title, "error", err)
		return models.MovieRecord{}, outcomeFetchFailed
	}

	// Poster download is a side effect; its failure never blocks the record.
	if p.downloader != nil && raw.PosterURL != "" {
		path, err := p.downloader.Download(ctx, raw.Title, raw.PosterURL)
		if err != nil {
			p.logger.Warn("poster download failed", "title", raw.Title, "error", err)
		} else {
			raw.PosterPath = path
		}
	}

	rec := p.transformer.Transform(raw)

	outcome := outcomeOK
	if rec.Description == "" || rec.Showtimes == "" {
		p.logger.Debug("record degraded", "title", rec.Title,
			"has_description", rec.Description != "",
			"has_showtimes", rec.Showtimes != "",
		)

		outcome = outcomeDegraded
	}

	return rec, outcome
}
