package report

import (
	"strings"
	"testing"

	"cinesync/internal/models"
)

func sampleSummary() *models.RunSummary {
	return &models.RunSummary{
		MoviesFound:   12,
		Scraped:       11,
		FetchFailed:   1,
		Degraded:      2,
		PostersSaved:  10,
		PosterFailed:  1,
		GatherSeconds: 42.5,
		WriteSeconds:  3.1,
		Write: models.WriteReport{
			Inserted: 4,
			Updated:  7,
		},
	}
}

func TestRender(t *testing.T) {
	out := Render(sampleSummary())

	for _, want := range []string{
		"Run Summary",
		"Movies found",
		"| 12 |",
		"Rows inserted",
		"Gather phase",
		"42.5s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if strings.Contains(out, "Failed titles") {
		t.Error("no failed titles expected in output")
	}
}

func TestRender_ListsFailedTitles(t *testing.T) {
	sum := sampleSummary()
	sum.Write.FailedTitles = []string{"Alpha", "Beta"}

	out := Render(sum)

	if !strings.Contains(out, "Failed titles:") {
		t.Fatalf("output missing failed title section:\n%s", out)
	}

	if !strings.Contains(out, "  - Alpha\n") || !strings.Contains(out, "  - Beta\n") {
		t.Errorf("failed titles not listed:\n%s", out)
	}
}

func TestRender_AlignedColumns(t *testing.T) {
	out := Render(sampleSummary())

	var width int

	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "|") && !strings.HasPrefix(line, "+") {
			continue
		}

		if width == 0 {
			width = len(line)
			continue
		}

		if len(line) != width {
			t.Errorf("ragged table line (%d vs %d): %q", len(line), width, line)
		}
	}
}
