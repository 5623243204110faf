// Package crawler fetches and parses the cinema site's listing, detail and
// showtimes pages.
package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"cinesync/internal/models"
)

// Selectors of the source site. The site is an ASP.NET application; the
// control IDs below are stable across its pages.
const (
	selListingMovie   = "div.MovieWrap"
	selListingTitle   = ".mov-lg a, .mov-sm a"
	selDetailBody     = ".con-lg"
	selDetailPoster   = "#ctl00_cphContent_imgPoster"
	selShowtimesLinks = "#MovieSec .con-lg a"
	selDateDropdown   = "#ctl00_cphContent_ctl00_ddlShowdate option"
	selViewState      = "#__VIEWSTATE"
	selEventValid     = "#__EVENTVALIDATION"
	selShowtimeBoxes  = "#ShowtimesList div.showbox a, #ShowtimesList div.showbox"
)

// minDescriptionLen filters stray text nodes when hunting for the detail
// page's free-text description.
const minDescriptionLen = 50

// metadataLabels are the "Label : value" lines of the detail page.
var metadataLabels = []string{
	"Language", "Classification", "Release Date", "Genre",
	"Running Time", "Distributor", "Cast", "Director", "Format",
}

// ListingEntry is one movie discovered on the listing page.
type ListingEntry struct {
	Title     string
	DetailURL string
}

// DateOption is one entry of the showtimes page's date dropdown.
type DateOption struct {
	Value string // postback form value
	Label string // human-readable date, used as the record's date key
}

// ShowtimesPage holds what one showtimes page state exposes: the available
// dates, the ASP.NET round-trip tokens and the time slots of the currently
// selected date.
type ShowtimesPage struct {
	Dates           []DateOption
	ViewState       string
	EventValidation string
	Times           []string
}

// Parser extracts structured data from the site's HTML. Missing selectors
// degrade to zero values; parsing never fails once a document loads.
type Parser struct {
	base *url.URL
}

// NewParser creates a parser that resolves relative links against baseURL.
// An unparseable baseURL leaves links unresolved rather than failing.
func NewParser(baseURL string) *Parser {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	return &Parser{base: base}
}

// ParseListing extracts the movies from the "now showing" listing page.
func (p *Parser) ParseListing(pageHTML string) []ListingEntry {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	var entries []ListingEntry

	doc.Find(selListingMovie).Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find(selListingTitle).First()

		title := strings.TrimSpace(link.Text())
		href := link.AttrOr("href", "")
		if title == "" || href == "" {
			return
		}

		entries = append(entries, ListingEntry{
			Title:     title,
			DetailURL: p.resolve(href),
		})
	})

	return entries
}

// ParseDetail extracts a movie's fields from its detail page. Every field is
// populated defensively; a missing selector leaves the zero value.
func (p *Parser) ParseDetail(pageHTML string, entry ListingEntry) models.RawMovie {
	raw := models.RawMovie{
		Title:     entry.Title,
		DetailURL: entry.DetailURL,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return raw
	}

	container := doc.Find(selDetailBody).First()
	raw.Description = findDescription(container)

	meta := extractMetadata(textWithBreaks(container))
	raw.Language = meta["Language"]
	raw.Classification = meta["Classification"]
	raw.ReleaseDate = meta["Release Date"]
	raw.Genre = meta["Genre"]
	raw.RunningTime = meta["Running Time"]
	raw.Distributor = meta["Distributor"]
	raw.Cast = meta["Cast"]
	raw.Director = meta["Director"]
	raw.Format = meta["Format"]

	if src := doc.Find(selDetailPoster).AttrOr("src", ""); src != "" {
		raw.PosterURL = p.resolve(src)
	}

	doc.Find(selShowtimesLinks).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(sel.Text()), "showtimes") {
			return true
		}

		if href := sel.AttrOr("href", ""); href != "" {
			raw.ShowtimesURL = p.resolve(href)
			return false
		}

		return true
	})

	return raw
}

// ParseShowtimes extracts the date dropdown, the postback tokens and the
// visible time slots from a showtimes page state.
func (p *Parser) ParseShowtimes(pageHTML string) ShowtimesPage {
	var page ShowtimesPage

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return page
	}

	doc.Find(selDateDropdown).Each(func(_ int, sel *goquery.Selection) {
		value := sel.AttrOr("value", "")
		label := strings.TrimSpace(sel.Text())
		if value == "" || label == "" {
			return
		}

		page.Dates = append(page.Dates, DateOption{Value: value, Label: label})
	})

	page.ViewState = doc.Find(selViewState).AttrOr("value", "")
	page.EventValidation = doc.Find(selEventValid).AttrOr("value", "")

	seen := make(map[string]bool)

	doc.Find(selShowtimeBoxes).Each(func(_ int, sel *goquery.Selection) {
		t := strings.TrimSpace(sel.Text())
		if t == "" || seen[t] {
			return
		}

		seen[t] = true
		page.Times = append(page.Times, t)
	})

	return page
}

func (p *Parser) resolve(href string) string {
	if p.base == nil {
		return href
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}

	return p.base.ResolveReference(ref).String()
}

// findDescription picks the first direct text node of the detail container
// long enough to be the synopsis (the page keeps it as loose text between
// markup blocks).
func findDescription(container *goquery.Selection) string {
	for _, node := range container.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.TextNode {
				continue
			}

			text := strings.TrimSpace(child.Data)
			if len(text) >= minDescriptionLen {
				return text
			}
		}
	}

	return ""
}

// extractMetadata pulls "Label : value" lines out of the container text.
func extractMetadata(text string) map[string]string {
	meta := make(map[string]string, len(metadataLabels))

	for _, label := range metadataLabels {
		re := regexp.MustCompile(`(?mi)^\s*` + regexp.QuoteMeta(label) + `\s*:\s*(.+)$`)
		if m := re.FindStringSubmatch(text); m != nil {
			meta[label] = strings.TrimSpace(m[1])
		}
	}

	return meta
}

// textWithBreaks renders a selection's text with newlines at element
// boundaries, so line-anchored metadata regexes see one label per line.
func textWithBreaks(sel *goquery.Selection) string {
	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "br", "div", "p", "li", "tr", "span":
				b.WriteString("\n")
			}
		}
	}

	for _, node := range sel.Nodes {
		walk(node)
	}

	return b.String()
}
