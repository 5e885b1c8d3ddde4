// Package report persists and renders the outcome of a run.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bartekus/matrixci/internal/fanout"
	"github.com/bartekus/matrixci/internal/matrix"
	"github.com/bartekus/matrixci/internal/runner"
)

// Printer renders run summaries for a terminal.
type Printer struct {
	head  lipgloss.Style
	ok    lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
}

// NewPrinter creates a printer for w. plain disables colors and attributes.
func NewPrinter(w io.Writer, plain bool) *Printer {
	r := lipgloss.NewRenderer(w)
	if plain {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		head:  r.NewStyle().Bold(true),
		ok:    r.NewStyle().Foreground(lipgloss.Color("10")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("11")),
		muted: r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Summary renders one line per job in matrix order followed by the failing
// (version, platform, stage) triples.
func (p *Printer) Summary(o *fanout.RunOutcome) string {
	var sb strings.Builder

	verdict := p.ok.Render("SUCCESS")
	if !o.Succeeded() {
		verdict = p.fail.Render("FAILURE")
	}
	if o.Cancelled {
		verdict += " " + p.warn.Render("(cancelled)")
	}
	cancelled := 0
	for _, j := range o.Jobs {
		if j.Status == runner.JobCancelled {
			cancelled++
		}
	}

	writeLine(&sb, p.head.Render("RUN "+o.RunID)+" "+verdict)
	writeLine(&sb, p.muted.Render(fmt.Sprintf("%d job(s), %d failed, %d cancelled", len(o.Jobs), len(o.Failures), cancelled)))
	writeLine(&sb, "")

	vw, pw := widths(o.Jobs)
	for _, j := range o.Jobs {
		label := fmt.Sprintf("%-*s  %-*s", vw, j.Job.Version, pw, j.Job.Platform)
		switch j.Status {
		case runner.JobSuccess:
			writeLine(&sb, "  "+p.ok.Render("PASS")+"  "+label)
		case runner.JobCancelled:
			writeLine(&sb, "  "+p.warn.Render("STOP")+"  "+label+"  "+fmt.Sprintf("cancelled at %s", j.FailedStage))
		default:
			writeLine(&sb, "  "+p.fail.Render("FAIL")+"  "+label+"  "+fmt.Sprintf("%s (exit %d)", j.FailedStage, j.ExitCode))
		}
	}

	if len(o.Failures) > 0 {
		writeLine(&sb, "")
		writeLine(&sb, p.head.Render("Failing:"))
		for _, f := range o.Failures {
			writeLine(&sb, fmt.Sprintf("  - %s %s %s (exit %d)", f.Job.Version, f.Job.Platform, f.Stage, f.ExitCode))
		}
	}
	return sb.String()
}

// Matrix renders the job matrix, one job per line.
func (p *Printer) Matrix(jobs []matrix.JobSpec) string {
	var sb strings.Builder
	vw := len("VERSION")
	for _, j := range jobs {
		vw = max(vw, len(j.Version))
	}
	writeLine(&sb, p.head.Render(fmt.Sprintf("%-3s  %-*s  %s", "#", vw, "VERSION", "PLATFORM")))
	for _, j := range jobs {
		writeLine(&sb, fmt.Sprintf("%-3d  %-*s  %s", j.Index, vw, j.Version, j.Platform))
	}
	return sb.String()
}

func widths(jobs []runner.JobOutcome) (int, int) {
	var vw, pw int
	for _, j := range jobs {
		vw = max(vw, len(j.Job.Version))
		pw = max(pw, len(j.Job.Platform.String()))
	}
	return vw, pw
}

func writeLine(sb *strings.Builder, line string) {
	sb.WriteString(strings.TrimRight(line, " "))
	sb.WriteByte('\n')
}
