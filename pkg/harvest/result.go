package harvest

import (
	"fmt"
	"time"
)

// Phase names used in results and logs
const (
	PhaseBase       = "base"
	PhaseRemaining  = "remaining"
	PhaseVariations = "variations"
)

// MessageNoURLs is the summary of a session whose base search found nothing
const MessageNoURLs = "No URLs found"

// PhaseCount is what one phase contributed
type PhaseCount struct {
	Name        string
	Downloads   int
	URLsVisited int
}

// Result summarises one Run
type Result struct {
	RunID     string
	Query     string
	Target    int
	SessionID int64
	Folder    string

	TotalDownloads    int
	SkippedDuplicates int
	Rejected          int
	Prefiltered       int
	Failed            int
	Unclassified      int

	URLsDiscovered int
	URLsVisited    int
	URLErrors      int

	Phases     []PhaseCount
	Variations []string
	Message    string
	Elapsed    time.Duration
}

// PhaseDownloads returns the downloads of the named phase, 0 if it never ran
func (r *Result) PhaseDownloads(name string) int {
	for _, p := range r.Phases {
		if p.Name == name {
			return p.Downloads
		}
	}
	return 0
}

func (r *Result) summarize() {
	if r.Message != "" {
		return
	}
	r.Message = fmt.Sprintf("Base: %d, Remaining: %d, Variations: %d",
		r.PhaseDownloads(PhaseBase), r.PhaseDownloads(PhaseRemaining), r.PhaseDownloads(PhaseVariations))
}
