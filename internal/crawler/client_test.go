package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"cinesync/internal/logger"
	"cinesync/internal/models"
)

// showtimesSite serves a detail page plus a showtimes page whose date
// dropdown is driven by ASP.NET postbacks with rotating tokens.
func showtimesSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/movies/details.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<div id="MovieSec"><div class="con-lg">
A story long enough to be recognised as the synopsis of the film in question.
<br />Language : English
<a href="/movies/showtimes.aspx?id=1">Check Showtimes</a>
</div></div>
</body></html>`)
	})

	mux.HandleFunc("/movies/showtimes.aspx", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `<html><body>
<input id="__VIEWSTATE" value="vs-1" />
<input id="__EVENTVALIDATION" value="ev-1" />
<select id="ctl00_cphContent_ctl00_ddlShowdate">
  <option value="2024-01-01" selected="selected">1 Jan 2024</option>
  <option value="2024-01-02">2 Jan 2024</option>
  <option value="2024-01-03">3 Jan 2024</option>
</select>
<div id="ShowtimesList"><div class="showbox"><a>10:00 AM</a></div></div>
</body></html>`)
			return
		}

		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}

		if got := r.PostForm.Get(fieldEventTarget); got != dateDropdownControl {
			t.Errorf("%s = %q, want %q", fieldEventTarget, got, dateDropdownControl)
		}

		switch r.PostForm.Get(dateDropdownControl) {
		case "2024-01-02":
			if vs := r.PostForm.Get(fieldViewState); vs != "vs-1" {
				t.Errorf("first postback __VIEWSTATE = %q, want vs-1", vs)
			}

			fmt.Fprint(w, `<html><body>
<input id="__VIEWSTATE" value="vs-2" />
<input id="__EVENTVALIDATION" value="ev-2" />
<div id="ShowtimesList"><div class="showbox"><a>03:00 PM</a></div></div>
</body></html>`)
		case "2024-01-03":
			// The second postback must carry the rotated tokens.
			if vs := r.PostForm.Get(fieldViewState); vs != "vs-2" {
				t.Errorf("second postback __VIEWSTATE = %q, want vs-2", vs)
			}

			fmt.Fprint(w, `<html><body>
<div id="ShowtimesList"><div class="showbox"><a>08:30 PM</a></div></div>
</body></html>`)
		default:
			t.Errorf("unexpected postback date %q", r.PostForm.Get(dateDropdownControl))
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	return httptest.NewServer(mux)
}

func newTestClient(server *httptest.Server, maxDays int) *Client {
	return NewClient(newTestScraper(), NewParser(server.URL), logger.NewLogger("error"), maxDays, 0)
}

func TestClient_Movie_WalksDateDropdown(t *testing.T) {
	server := showtimesSite(t)
	defer server.Close()

	client := newTestClient(server, 5)

	entry := ListingEntry{Title: "Movie One", DetailURL: server.URL + "/movies/details.aspx?id=1"}

	raw, err := client.Movie(context.Background(), entry)
	if err != nil {
		t.Fatalf("Movie failed: %v", err)
	}

	if raw.Language != "English" {
		t.Errorf("Language = %q", raw.Language)
	}

	want := []models.DateShowtimes{
		{Date: "1 Jan 2024", Times: []string{"10:00 AM"}},
		{Date: "2 Jan 2024", Times: []string{"03:00 PM"}},
		{Date: "3 Jan 2024", Times: []string{"08:30 PM"}},
	}

	if !reflect.DeepEqual(raw.Showtimes, want) {
		t.Errorf("Showtimes = %v, want %v", raw.Showtimes, want)
	}
}

func TestClient_Movie_CapsDates(t *testing.T) {
	server := showtimesSite(t)
	defer server.Close()

	client := newTestClient(server, 2)

	entry := ListingEntry{Title: "Movie One", DetailURL: server.URL + "/movies/details.aspx?id=1"}

	raw, err := client.Movie(context.Background(), entry)
	if err != nil {
		t.Fatalf("Movie failed: %v", err)
	}

	if len(raw.Showtimes) != 2 {
		t.Fatalf("got %d dates, want 2", len(raw.Showtimes))
	}

	if raw.Showtimes[1].Date != "2 Jan 2024" {
		t.Errorf("second date = %q", raw.Showtimes[1].Date)
	}
}

func TestClient_Movie_DetailFetchFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server, 5)

	entry := ListingEntry{Title: "Gone", DetailURL: server.URL + "/movies/details.aspx?id=404"}

	if _, err := client.Movie(context.Background(), entry); err == nil {
		t.Error("expected error when the detail page cannot be fetched")
	}
}

func TestClient_Movie_ShowtimesFailureDegrades(t *testing.T) {
	mux := http.NewServeMux()

	mux.HandleFunc("/movies/details.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<div id="MovieSec"><div class="con-lg">
A story long enough to be recognised as the synopsis of the film in question.
<a href="/movies/showtimes.aspx?id=1">Check Showtimes</a>
</div></div>
</body></html>`)
	})

	mux.HandleFunc("/movies/showtimes.aspx", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server, 5)

	entry := ListingEntry{Title: "No Times", DetailURL: server.URL + "/movies/details.aspx?id=1"}

	raw, err := client.Movie(context.Background(), entry)
	if err != nil {
		t.Fatalf("a showtimes failure must not fail the movie: %v", err)
	}

	if len(raw.Showtimes) != 0 {
		t.Errorf("Showtimes = %v, want none", raw.Showtimes)
	}
}

func TestClient_Listing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingHTML)
	}))
	defer server.Close()

	client := newTestClient(server, 5)

	entries, err := client.Listing(context.Background(), server.URL+"/movies/nowshowing.aspx")
	if err != nil {
		t.Fatalf("Listing failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}
