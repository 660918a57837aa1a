package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fslongjin/bandsweep/pkg/model"
	"golang.org/x/term"
)

const barWidth = 24

// IsTerminal reports whether the reader or writer is an interactive terminal.
func IsTerminal(stream interface{}) bool {
	f, ok := stream.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// ProgressLine redraws a single status line with the progress estimate. On a
// non-terminal writer it stays silent so piped output remains parseable.
type ProgressLine struct {
	w     io.Writer
	label string
	tty   bool

	mu    sync.Mutex
	drawn bool
}

func NewProgressLine(w io.Writer, label string) *ProgressLine {
	return &ProgressLine{w: w, label: label, tty: IsTerminal(w)}
}

func (p *ProgressLine) Update(est model.ProgressEstimate) {
	if !p.tty {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, "\r\033[2K"+RenderProgress(p.label, est))
	p.drawn = true
}

func (p *ProgressLine) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.drawn {
		return
	}
	fmt.Fprint(p.w, "\r\033[2K")
	p.drawn = false
}

// RenderProgress formats "label [#####.....] 5/12".
func RenderProgress(label string, est model.ProgressEstimate) string {
	filled := 0
	if est.Total > 0 {
		filled = est.Current * barWidth / est.Total
	}
	if filled > barWidth {
		filled = barWidth
	}
	bar := AccentStyle.Render(strings.Repeat("█", filled)) + MutedStyle.Render(strings.Repeat("░", barWidth-filled))
	return fmt.Sprintf("%s %s %d/%d", label, bar, est.Current, est.Total)
}
