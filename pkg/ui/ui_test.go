package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"picharvest/internal/downloader"
	"picharvest/pkg/harvest"
)

func init() {
	SetColor(false)
}

func TestBar(t *testing.T) {
	assert.Equal(t, "["+strings.Repeat(ProgressEmpty, 20)+"] 0/10", Bar(0, 10))
	assert.Equal(t, "["+strings.Repeat(ProgressBar, 10)+strings.Repeat(ProgressEmpty, 10)+"] 5/10", Bar(5, 10))
	assert.Equal(t, "["+strings.Repeat(ProgressBar, 20)+"] 12/10", Bar(12, 10))
	assert.Equal(t, "["+strings.Repeat(ProgressEmpty, 20)+"] 3/0", Bar(3, 0))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2<<20))
}

func TestProgressDisplayCounts(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, false)

	p.PhaseStarted("base", 0, 10)
	p.ImageDone(downloader.Result{Outcome: downloader.OutcomeSaved, Size: 2048})
	p.ImageDone(downloader.Result{Outcome: downloader.OutcomeDuplicate})
	p.ImageDone(downloader.Result{Outcome: downloader.OutcomeRejected})

	out := buf.String()
	assert.Contains(t, out, "[PHASE] base")
	assert.Contains(t, out, "saved 1 | dup 1 | rejected 1 | failed 0 | 2.0 KB")
}

func TestProgressDisplayVerbose(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, true)

	p.ImageDone(downloader.Result{
		Job:     downloader.Job{ImageURL: "https://cdn.example.org/a.jpg"},
		Outcome: downloader.OutcomeFailed,
		Error:   errors.New("status 503"),
	})
	assert.Contains(t, buf.String(), "✗ failed    https://cdn.example.org/a.jpg (status 503)")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, &harvest.Result{
		Query:             "ada lovelace",
		Target:            10,
		Folder:            "downloads/ada_lovelace",
		TotalDownloads:    11,
		SkippedDuplicates: 2,
		Phases:            []harvest.PhaseCount{{Name: "base", Downloads: 11, URLsVisited: 3}},
		URLsDiscovered:    5,
		URLsVisited:       3,
		Message:           "Base: 11, Remaining: 0, Variations: 0",
		Elapsed:           1500 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "11 / 10")
	assert.Contains(t, out, "11 images from 3 pages")
	assert.Contains(t, out, "3 of 5 (0 errors)")
	assert.Contains(t, out, "Base: 11, Remaining: 0, Variations: 0")
	assert.NotContains(t, out, "Variations  ")
	assert.NotContains(t, out, "without relevance scoring")
}

func TestPrintSummaryFlagsUnscoredImages(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, &harvest.Result{
		Query:          "ada lovelace",
		Target:         10,
		TotalDownloads: 4,
		Unclassified:   4,
		Message:        "Base: 4, Remaining: 0, Variations: 0",
	})

	out := buf.String()
	assert.Contains(t, out, "4 image(s) kept without relevance scoring")
	assert.Less(t, strings.Index(out, "without relevance scoring"), strings.Index(out, "Query"))
}

type fakeSender struct{ titles, bodies []string }

func (f *fakeSender) Send(title, message string) error {
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, message)
	return nil
}

func TestNotifyResult(t *testing.T) {
	s := &fakeSender{}
	n := NewNotifierWithSender(s)

	n.NotifyResult("ada", 4, 10, "Base: 4, Remaining: 0, Variations: 0")
	assert.Equal(t, []string{"picharvest: ada"}, s.titles)
	assert.Equal(t, "4 of 10 images. Base: 4, Remaining: 0, Variations: 0", s.bodies[0])
}
