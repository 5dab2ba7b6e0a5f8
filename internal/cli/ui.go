package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/kahnsched/pkg/dag"
	"github.com/matzehuels/kahnsched/pkg/kahn"
	"github.com/matzehuels/kahnsched/pkg/pipeline"
)

// Palette. Node states share colors between summaries and the replay viewer.
var (
	colorAccent  = lipgloss.Color("36")
	colorDone    = lipgloss.Color("35")
	colorForced  = lipgloss.Color("220")
	colorFailed  = lipgloss.Color("167")
	colorCommand = lipgloss.Color("75")
	colorValue   = lipgloss.Color("255")
	colorLabel   = lipgloss.Color("245")
	colorMuted   = lipgloss.Color("240")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleAccent  = lipgloss.NewStyle().Foreground(colorAccent)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleValue   = lipgloss.NewStyle().Foreground(colorValue)
	styleWarning = lipgloss.NewStyle().Foreground(colorForced)
	styleCommand = lipgloss.NewStyle().Foreground(colorCommand)
	styleKey     = lipgloss.NewStyle().Foreground(colorLabel).Width(8)
	styleSpinner = lipgloss.NewStyle().Foreground(colorAccent)

	markOK     = lipgloss.NewStyle().Foreground(colorDone).Render("✓")
	markFailed = lipgloss.NewStyle().Foreground(colorFailed).Render("✗")
	markForced = lipgloss.NewStyle().Foreground(colorForced).Render("!")
	markNote   = lipgloss.NewStyle().Foreground(colorLabel).Render("›")
)

// noneMark stands in for an empty order or an unset label.
const noneMark = "—"

// console writes command output. Diagnostics go through the logger instead.
type console struct {
	w io.Writer
}

func (c console) printf(format string, args ...any) {
	fmt.Fprintf(c.w, format, args...)
}

func (c console) success(format string, args ...any) {
	c.printf("%s %s\n", markOK, fmt.Sprintf(format, args...))
}

func (c console) failure(format string, args ...any) {
	c.printf("%s %s\n", markFailed, fmt.Sprintf(format, args...))
}

func (c console) warning(format string, args ...any) {
	c.printf("%s %s\n", markForced, styleWarning.Render(fmt.Sprintf(format, args...)))
}

func (c console) note(format string, args ...any) {
	c.printf("%s %s\n", markNote, fmt.Sprintf(format, args...))
}

func (c console) detail(format string, args ...any) {
	c.printf("  %s\n", styleMuted.Render(fmt.Sprintf(format, args...)))
}

func (c console) field(key, value string) {
	c.printf("%s %s\n", styleKey.Render(key), styleValue.Render(value))
}

func (c console) wrote(path string) {
	c.printf("  %s %s\n", styleMuted.Render("→"), styleValue.Render(path))
}

func (c console) hint(description, command string) {
	c.printf("\n%s %s\n", styleMuted.Render(description+":"), styleCommand.Render(command))
}

// result prints the outcome of one scheduled graph: the headline, a stats
// line, then the order and whatever the run had to give up on.
func (c console) result(res *pipeline.Result) {
	run := res.Run
	ids := res.NodeIDs()

	switch run.Status {
	case kahn.Deadlocked:
		c.warning("Deadlocked after %d of %d steps, %s force-terminated",
			run.Steps, res.Stats.NodeCount, plural(len(run.Forced), "node"))
	default:
		c.success("Scheduled %s in %d steps", plural(res.Stats.NodeCount, "node"), run.Steps)
	}
	c.detail("%s", runStats(res))

	c.field("Order", joinIDs(ids, run.Order(), " → "))
	if len(run.Forced) > 0 {
		c.field("Forced", joinIDs(ids, run.Forced, ", "))
	}
	if len(res.RemovedEdges) > 0 {
		c.field("Removed", joinEdges(res.RemovedEdges))
	}
	if res.Archived != nil {
		c.field("Run", res.Archived.ID)
	}
}

// runStats summarizes graph size and where the result came from, e.g.
// "4 nodes · 4 edges · ascending · cached".
func runStats(res *pipeline.Result) string {
	parts := []string{plural(res.Stats.NodeCount, "node")}
	if res.Stats.EdgeCount > 0 {
		parts = append(parts, plural(res.Stats.EdgeCount, "edge"))
	}
	if res.Options.TieBreak != "" {
		parts = append(parts, res.Options.TieBreak)
	}
	if res.CacheHit {
		parts = append(parts, "cached")
	} else {
		parts = append(parts, res.Stats.ScheduleTime.Round(time.Microsecond).String())
	}
	return strings.Join(parts, " · ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func joinIDs(ids []string, indices []int, sep string) string {
	if len(indices) == 0 {
		return noneMark
	}
	names := make([]string, len(indices))
	for i, idx := range indices {
		names[i] = nodeName(ids, idx)
	}
	return strings.Join(names, sep)
}

func joinEdges(edges []dag.Edge) string {
	parts := make([]string, len(edges))
	for i, e := range edges {
		parts[i] = e.From + "→" + e.To
	}
	return strings.Join(parts, ", ")
}
