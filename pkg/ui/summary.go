package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"picharvest/pkg/harvest"
)

// PrintSummary writes the final record of a run
func PrintSummary(w io.Writer, res *harvest.Result) {
	fmt.Fprintf(w, "\n%s\n", Cyan(strings.Repeat("─", 48)))
	if res.Unclassified > 0 {
		fmt.Fprintf(w, "  %s\n", Yellow(fmt.Sprintf(
			"%d image(s) kept without relevance scoring; set relevance.face_cascade to score them",
			res.Unclassified)))
	}
	row := func(label string, value interface{}) {
		fmt.Fprintf(w, "  %-20s %s\n", Cyan(label), Yellow(fmt.Sprint(value)))
	}

	row("Query", res.Query)
	row("Folder", res.Folder)
	row("Downloaded", fmt.Sprintf("%d / %d", res.TotalDownloads, res.Target))
	for _, p := range res.Phases {
		row("  "+p.Name, fmt.Sprintf("%d images from %d pages", p.Downloads, p.URLsVisited))
	}
	row("Duplicates skipped", res.SkippedDuplicates)
	row("Rejected", res.Rejected+res.Prefiltered)
	if res.Unclassified > 0 {
		row("Unclassified", res.Unclassified)
	}
	row("Failed", res.Failed)
	row("Pages visited", fmt.Sprintf("%d of %d (%d errors)", res.URLsVisited, res.URLsDiscovered, res.URLErrors))
	if len(res.Variations) > 0 {
		row("Variations", strings.Join(res.Variations, ", "))
	}
	row("Elapsed", res.Elapsed.Round(time.Millisecond))

	switch {
	case res.Message == harvest.MessageNoURLs:
		fmt.Fprintf(w, "\n%s\n", Red(res.Message))
	case res.TotalDownloads >= res.Target:
		fmt.Fprintf(w, "\n%s\n", Green(res.Message))
	default:
		fmt.Fprintf(w, "\n%s\n", Yellow(res.Message))
	}
}
