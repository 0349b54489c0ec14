package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ProgressReporter reports progress for long-running operations.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

// ExportProgress reports how many policies an export has written. The
// status line is redrawn in place each time the whole percentage changes.
type ExportProgress struct {
	mu          sync.Mutex
	writer      io.Writer
	now         func() time.Time
	total       int64
	current     int64
	lastPercent int64
	started     time.Time
}

// NewProgressReporter creates an export progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr so progress never mixes with
// exported data on stdout.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &ExportProgress{writer: w, now: time.Now}
}

// Start records the number of policies matching the export.
func (p *ExportProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.lastPercent = -1
	p.started = p.now()
	p.render()
}

// Update records that current policies have been written.
func (p *ExportProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if current < p.current {
		return
	}
	p.current = current
	p.render()
}

// Finish prints the summary line.
func (p *ExportProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total == 0 && p.current == 0 {
		fmt.Fprintln(p.writer, "No policies matched the export filters.")
		return
	}
	elapsed := p.now().Sub(p.started)
	fmt.Fprintf(p.writer, "\rExported %s in %s (%.1f policies/s)\n",
		policyCount(p.current), elapsed.Round(time.Millisecond), p.rate())
}

// Error reports an error during the export.
func (p *ExportProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\n✗ Export stopped after %s: %v\n", policyCount(p.current), err)
}

func (p *ExportProgress) render() {
	if p.total <= 0 {
		return
	}

	percent := p.current * 100 / p.total
	if percent == p.lastPercent {
		return
	}
	p.lastPercent = percent

	fmt.Fprintf(p.writer, "\rExporting policies: %d/%d (%d%%) %.1f policies/s",
		p.current, p.total, percent, p.rate())
}

// rate is the number of policies written per second so far. It is zero
// until any time has elapsed.
func (p *ExportProgress) rate() float64 {
	elapsed := p.now().Sub(p.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.current) / elapsed
}

func policyCount(n int64) string {
	if n == 1 {
		return "1 policy"
	}
	return fmt.Sprintf("%d policies", n)
}
