package normalizer

import (
	"sort"
	"strings"

	"cinesync/internal/models"
)

// Delimiters of the encoded showtimes cell: date groups are separated by
// "; ", a date is separated from its times by ": ", times by single spaces.
const (
	dateSeparator = "; "
	timePrefix    = ": "
	timeSeparator = " "
)

// MergeShowtimes merges showtime groups by date. Duplicate (date, time) pairs
// collapse to one; dates keep the order they were first encountered; times
// within a date are sorted.
func MergeShowtimes(groups []models.DateShowtimes) []models.DateShowtimes {
	var order []string
	byDate := make(map[string]map[string]bool)

	for _, g := range groups {
		date := CollapseWhitespace(g.Date)
		if date == "" {
			continue
		}

		if byDate[date] == nil {
			byDate[date] = make(map[string]bool)
			order = append(order, date)
		}

		for _, t := range g.Times {
			t = CollapseWhitespace(t)
			if t != "" {
				byDate[date][t] = true
			}
		}
	}

	merged := make([]models.DateShowtimes, 0, len(order))

	for _, date := range order {
		times := make([]string, 0, len(byDate[date]))
		for t := range byDate[date] {
			times = append(times, t)
		}

		sort.Strings(times)
		merged = append(merged, models.DateShowtimes{Date: date, Times: times})
	}

	return merged
}

// EncodeShowtimes renders merged showtime groups into a single cell, e.g.
// "2024-01-01: 10:00 14:30; 2024-01-02: 14:00". When the full encoding would
// exceed limit runes it is cut on a token boundary (never mid-time, never
// mid-date) and the marker is appended, keeping the delimiter structure
// intact. The result never exceeds limit runes.
func EncodeShowtimes(groups []models.DateShowtimes, limit int, marker string) string {
	full := renderShowtimes(groups)
	if len([]rune(full)) <= limit {
		return full
	}

	budget := limit - len([]rune(marker))

	var b strings.Builder

	length := 0
	for _, g := range groups {
		for i, t := range g.Times {
			var token string
			if i == 0 {
				token = g.Date + timePrefix + t
				if length > 0 {
					token = dateSeparator + token
				}
			} else {
				token = timeSeparator + t
			}

			tokenLen := len([]rune(token))
			if length+tokenLen > budget {
				return b.String() + marker
			}

			b.WriteString(token)
			length += tokenLen
		}
	}

	return b.String() + marker
}

func renderShowtimes(groups []models.DateShowtimes) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		if len(g.Times) == 0 {
			continue
		}

		parts = append(parts, g.Date+timePrefix+strings.Join(g.Times, timeSeparator))
	}

	return strings.Join(parts, dateSeparator)
}
