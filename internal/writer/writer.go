// Package writer flushes normalized records to the sink in batches with
// upsert semantics and bounded retry.
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cinesync/internal/config"
	"cinesync/internal/logger"
	"cinesync/internal/models"
	"cinesync/internal/sink"
)

// ErrSinkUnavailable is returned when not a single batch could be flushed.
// It is the only write-phase failure that makes the whole run fail.
var ErrSinkUnavailable = errors.New("sink unavailable: no batch could be written")

// Writer accumulates records and flushes them as batched upserts.
type Writer struct {
	sink      sink.Sink
	logger    *logger.Logger
	retry     *config.RetryPolicy
	batchSize int
}

// NewWriter creates a writer that flushes batchSize records per sink call and
// retries failed batches per the retry policy.
func NewWriter(s sink.Sink, batchSize int, retry *config.RetryPolicy, log *logger.Logger) *Writer {
	return &Writer{
		sink:      s,
		logger:    log,
		retry:     retry,
		batchSize: batchSize,
	}
}

// Write upserts the records into the sink: a row whose title already exists
// is overwritten in place, anything else is appended. Batches are flushed
// sequentially; a batch that keeps failing after retries is reported through
// FailedTitles and the writer moves on. The returned error is non-nil only
// when nothing could be written at all.
func (w *Writer) Write(ctx context.Context, records []models.MovieRecord) (*models.WriteReport, error) {
	report := &models.WriteReport{}

	records = dedupe(records)
	if len(records) == 0 {
		return report, nil
	}

	existing, err := w.existingRows(ctx)
	if err != nil {
		// Without the title index every batch would fail; report and give up.
		w.logger.Error("failed to read existing rows", "error", err)
		for _, rec := range records {
			report.FailedTitles = append(report.FailedTitles, rec.Title)
		}

		return report, fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}

	flushed := 0
	batches := 0

	for start := 0; start < len(records); start += w.batchSize {
		end := start + w.batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := records[start:end]
		batches++

		updated, inserted, err := w.flushBatch(ctx, batch, existing)
		if err != nil {
			w.logger.Error("batch write failed", "batch", batches, "records", len(batch), "error", err)
			for _, rec := range batch {
				report.FailedTitles = append(report.FailedTitles, rec.Title)
			}

			continue
		}

		flushed++
		report.Updated += updated
		report.Inserted += inserted
		w.logger.Debug("batch flushed", "batch", batches, "updated", updated, "inserted", inserted)
	}

	if flushed == 0 {
		return report, ErrSinkUnavailable
	}

	return report, nil
}

// flushBatch partitions one batch into in-place updates and appends, then
// writes both with bounded retry. Returns the updated and inserted counts.
func (w *Writer) flushBatch(ctx context.Context, batch []models.MovieRecord, existing map[string]int) (int, int, error) {
	updates := make(map[int][]string)

	var appends [][]string

	for _, rec := range batch {
		if rowNum, ok := existing[rec.Title]; ok {
			updates[rowNum] = sink.Row(rec)
		} else {
			appends = append(appends, sink.Row(rec))
		}
	}

	err := w.withRetry(ctx, func() error {
		// Updates are idempotent, so re-running them on a retry after a
		// failed append is safe.
		if err := w.sink.Update(ctx, updates); err != nil {
			return err
		}

		return w.sink.Append(ctx, appends)
	})
	if err != nil {
		return 0, 0, err
	}

	return len(updates), len(appends), nil
}

func (w *Writer) existingRows(ctx context.Context) (map[string]int, error) {
	var rows map[string]int

	err := w.withRetry(ctx, func() error {
		var err error
		rows, err = w.sink.Rows(ctx)

		return err
	})

	return rows, err
}

// withRetry runs fn up to MaxAttempts times with exponential backoff.
func (w *Writer) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= w.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(w.retry.GetRetryDelay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return lastErr
		}
	}

	return lastErr
}

// dedupe drops records with empty titles and keeps the first occurrence of
// each title, so a batch never carries two writes for the same row.
func dedupe(records []models.MovieRecord) []models.MovieRecord {
	seen := make(map[string]bool, len(records))
	out := make([]models.MovieRecord, 0, len(records))

	for _, rec := range records {
		if rec.Title == "" || seen[rec.Title] {
			continue
		}

		seen[rec.Title] = true
		out = append(out, rec)
	}

	return out
}
