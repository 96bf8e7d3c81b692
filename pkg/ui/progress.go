package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"picharvest/internal/downloader"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// ProgressDisplay renders a one-line progress bar for a harvest run.
// It satisfies harvest.Observer.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	phase      string
	target     int
	saved      int
	duplicates int
	rejected   int
	failed     int
	bytes      int64
	startTime  time.Time
	verbose    bool
}

// NewProgressDisplay creates a display writing to out. In verbose mode every
// image gets its own line instead of the redrawn bar.
func NewProgressDisplay(out io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{out: out, startTime: time.Now(), verbose: verbose}
}

// PhaseStarted switches the label and resyncs the saved count
func (p *ProgressDisplay) PhaseStarted(phase string, downloads, target int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.phase = phase
	p.saved = downloads
	p.target = target
	fmt.Fprintf(p.out, "\n%s %s\n", Magenta("[PHASE]"), Yellow(phase))
}

// ImageDone counts one finished candidate
func (p *ProgressDisplay) ImageDone(r downloader.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.Outcome {
	case downloader.OutcomeSaved:
		p.saved++
		p.bytes += int64(r.Size)
	case downloader.OutcomeDuplicate:
		p.duplicates++
	case downloader.OutcomeRejected:
		p.rejected++
	case downloader.OutcomeFailed:
		p.failed++
	}

	if p.verbose {
		p.printLine(r)
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) printLine(r downloader.Result) {
	mark := Dim("·")
	switch r.Outcome {
	case downloader.OutcomeSaved:
		mark = Green("✓")
	case downloader.OutcomeFailed:
		mark = Red("✗")
	case downloader.OutcomeDuplicate:
		mark = Yellow("=")
	}
	line := fmt.Sprintf("%s %-9s %s", mark, r.Outcome, r.Job.ImageURL)
	if r.Error != nil {
		line += Dim(" (" + r.Error.Error() + ")")
	}
	fmt.Fprintln(p.out, line)
}

func (p *ProgressDisplay) printProgress() {
	fmt.Fprintf(p.out, "\r%s %s saved %d | dup %d | rejected %d | failed %d | %s",
		Green("[HARVEST]"),
		Bar(p.saved, p.target),
		p.saved, p.duplicates, p.rejected, p.failed,
		FormatBytes(p.bytes))
}

// Bar renders done out of total as a fixed-width bar
func Bar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = min(done*barWidth/total, barWidth)
	}
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, done, total)
}

// Elapsed returns the time since the display was created
func (p *ProgressDisplay) Elapsed() time.Duration {
	return time.Since(p.startTime)
}

// FormatBytes formats a byte count for display
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
