package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cinesync/internal/logger"
	"cinesync/internal/models"
)

// ASP.NET postback form fields used to switch the showtimes date.
const (
	fieldEventTarget     = "__EVENTTARGET"
	fieldEventArgument   = "__EVENTARGUMENT"
	fieldLastFocus       = "__LASTFOCUS"
	fieldViewState       = "__VIEWSTATE"
	fieldEventValidation = "__EVENTVALIDATION"
	dateDropdownControl  = "ctl00$cphContent$ctl00$ddlShowdate"
)

// Client orchestrates the fetch+parse flow for the listing page and for one
// movie at a time.
type Client struct {
	scraper *Scraper
	parser  *Parser
	logger  *logger.Logger

	maxDays      int
	requestDelay time.Duration
}

// NewClient creates a crawler client. maxDays bounds how many showtime dates
// are scraped per movie; requestDelay is the pause between postbacks to the
// same movie's showtimes page.
func NewClient(scraper *Scraper, parser *Parser, log *logger.Logger, maxDays int, requestDelay time.Duration) *Client {
	return &Client{
		scraper:      scraper,
		parser:       parser,
		logger:       log,
		maxDays:      maxDays,
		requestDelay: requestDelay,
	}
}

// Listing fetches and parses the "now showing" page.
func (c *Client) Listing(ctx context.Context, listingURL string) ([]ListingEntry, error) {
	page, err := c.scraper.Fetch(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	return c.parser.ParseListing(page), nil
}

// Movie fetches one movie's detail page and its showtimes across dates.
// A detail fetch failure is returned to the caller (the movie is skipped);
// showtime failures degrade to whatever dates were already collected.
func (c *Client) Movie(ctx context.Context, entry ListingEntry) (models.RawMovie, error) {
	page, err := c.scraper.Fetch(ctx, entry.DetailURL)
	if err != nil {
		return models.RawMovie{}, fmt.Errorf("failed to fetch detail page: %w", err)
	}

	raw := c.parser.ParseDetail(page, entry)

	if raw.ShowtimesURL != "" {
		raw.Showtimes = c.showtimes(ctx, raw.ShowtimesURL)
	}

	return raw, nil
}

// showtimes walks the showtimes page's date dropdown. The first date is
// already rendered on the GET response; every further date needs a form
// postback carrying the ASP.NET round-trip tokens, which the server rotates
// on each response.
func (c *Client) showtimes(ctx context.Context, showtimesURL string) []models.DateShowtimes {
	first, err := c.scraper.Fetch(ctx, showtimesURL)
	if err != nil {
		c.logger.Warn("showtimes page fetch failed", "url", showtimesURL, "error", err)
		return nil
	}

	page := c.parser.ParseShowtimes(first)
	if len(page.Dates) == 0 {
		return nil
	}

	dates := page.Dates
	if len(dates) > c.maxDays {
		dates = dates[:c.maxDays]
	}

	collected := []models.DateShowtimes{{Date: dates[0].Label, Times: page.Times}}

	viewState := page.ViewState
	eventValidation := page.EventValidation

	for _, date := range dates[1:] {
		if !c.pause(ctx) {
			break
		}

		form := url.Values{
			fieldEventTarget:     {dateDropdownControl},
			fieldEventArgument:   {""},
			fieldLastFocus:       {""},
			fieldViewState:       {viewState},
			fieldEventValidation: {eventValidation},
			dateDropdownControl:  {date.Value},
		}

		body, err := c.scraper.PostForm(ctx, showtimesURL, form)
		if err != nil {
			// Keep what we have; later dates depend on tokens we no longer trust.
			c.logger.Warn("showtimes postback failed", "url", showtimesURL, "date", date.Label, "error", err)
			break
		}

		next := c.parser.ParseShowtimes(body)
		collected = append(collected, models.DateShowtimes{Date: date.Label, Times: next.Times})

		if next.ViewState != "" {
			viewState = next.ViewState
		}

		if next.EventValidation != "" {
			eventValidation = next.EventValidation
		}
	}

	return collected
}

// pause waits the configured request delay, returning false when the context
// is cancelled first.
func (c *Client) pause(ctx context.Context) bool {
	if c.requestDelay <= 0 {
		return ctx.Err() == nil
	}

	select {
	case <-time.After(c.requestDelay):
		return true
	case <-ctx.Done():
		return false
	}
}
