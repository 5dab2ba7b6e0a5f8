package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/kahnsched/pkg/kahn"
)

// Replay styles
var (
	replayDimStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	replayHeaderStyle  = lipgloss.NewStyle().Foreground(colorLabel).Bold(true)
	replayDoneStyle    = lipgloss.NewStyle().Foreground(colorDone).Bold(true)
	replayPromoteStyle = lipgloss.NewStyle().Foreground(colorAccent)
	replayForcedStyle  = lipgloss.NewStyle().Foreground(colorForced)
)

// =============================================================================
// Frames
// =============================================================================

// replayFrames returns the snapshots to show: the recorded history plus the
// final state when nodes were force-terminated after the last step.
func replayFrames(res *kahn.Result) []kahn.State {
	frames := make([]kahn.State, 0, len(res.History)+1)
	frames = append(frames, res.History...)
	if res.Deadlocked() && res.Final != nil {
		frames = append(frames, res.Final)
	}
	return frames
}

// frameTitle describes frame i of res.
func frameTitle(res *kahn.Result, i int) string {
	switch {
	case i == 0:
		return fmt.Sprintf("Initial state (step 0/%d)", res.Steps)
	case i > res.Steps:
		return fmt.Sprintf("Deadlock: %d nodes force-terminated", len(res.Forced))
	default:
		return fmt.Sprintf("Step %d/%d", i, res.Steps)
	}
}

// snapshotTable renders rows [from, to) of cur. Nodes that changed since
// prev are highlighted.
func snapshotTable(ids []string, prev, cur kahn.State, from, to int) *table.Table {
	rows := make([][]string, 0, to-from)
	for i := from; i < to; i++ {
		e := cur[i]
		label := noneMark
		if e.Labeled() {
			label = strconv.Itoa(e.Label)
		}
		state := e.Lifecycle.String()
		if e.Forced {
			state = "forced"
		}
		rows = append(rows, []string{nodeName(ids, i), strconv.Itoa(e.Remaining), label, state})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers("Node", "Remaining", "Label", "State").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return replayHeaderStyle
			}
			i := from + row
			if i >= len(cur) {
				return lipgloss.NewStyle()
			}
			e := cur[i]
			changed := prev != nil && prev[i].Lifecycle != e.Lifecycle
			switch {
			case e.Forced:
				return replayForcedStyle
			case changed && e.Lifecycle == kahn.Done:
				return replayDoneStyle
			case changed && e.Lifecycle == kahn.Ready:
				return replayPromoteStyle
			case e.Lifecycle == kahn.Blocked:
				return replayDimStyle
			}
			return lipgloss.NewStyle().Foreground(colorValue)
		})
}

func nodeName(ids []string, i int) string {
	if i < len(ids) && ids[i] != "" {
		return ids[i]
	}
	return strconv.Itoa(i)
}

// stateSummary counts nodes per lifecycle stage.
func stateSummary(s kahn.State) string {
	return fmt.Sprintf("ready %d · blocked %d · done %d",
		s.Count(kahn.Ready), s.Count(kahn.Blocked), s.Count(kahn.Done))
}

// =============================================================================
// ReplayModel - Interactive history viewer
// =============================================================================

// ReplayModel is the bubbletea model for stepping through a history.
type ReplayModel struct {
	Result *kahn.Result
	IDs    []string
	Frame  int
	Height int
	Offset int

	frames    []kahn.State
	finalized []int
}

// NewReplayModel creates a replay model positioned at the initial state.
func NewReplayModel(res *kahn.Result, ids []string) ReplayModel {
	return ReplayModel{
		Result:    res,
		IDs:       ids,
		Height:    15,
		frames:    replayFrames(res),
		finalized: kahn.Transitions(res.History),
	}
}

func (m ReplayModel) Init() tea.Cmd {
	return nil
}

func (m ReplayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	last := len(m.frames) - 1
	n := len(m.frames[0])

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h", "p":
			if m.Frame > 0 {
				m.Frame--
			}
		case "right", "l", "n", " ":
			if m.Frame < last {
				m.Frame++
			}
		case "home", "g":
			m.Frame = 0
		case "end", "G":
			m.Frame = last
		case "up", "k":
			if m.Offset > 0 {
				m.Offset--
			}
		case "down", "j":
			if m.Offset+m.Height < n {
				m.Offset++
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 10
		if m.Height < 5 {
			m.Height = 5
		}
		if m.Offset+m.Height > n {
			m.Offset = max(0, n-m.Height)
		}
	}
	return m, nil
}

func (m ReplayModel) View() string {
	var b strings.Builder

	cur := m.frames[m.Frame]
	var prev kahn.State
	if m.Frame > 0 {
		prev = m.frames[m.Frame-1]
	}

	b.WriteString(styleTitle.Render(frameTitle(m.Result, m.Frame)))
	b.WriteString("\n")
	b.WriteString(replayDimStyle.Render("←/→ step  home/end jump  ↑/↓ scroll  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(cur))
	b.WriteString(snapshotTable(m.IDs, prev, cur, m.Offset, end).Render())
	b.WriteString("\n\n")

	b.WriteString("  " + replayDimStyle.Render(stateSummary(cur)))
	if m.Frame > 0 && m.Frame <= len(m.finalized) {
		node := m.finalized[m.Frame-1]
		b.WriteString(replayDimStyle.Render(" · finalized "))
		b.WriteString(styleAccent.Render(nodeName(m.IDs, node)))
	}
	if len(cur) > m.Height {
		b.WriteString(replayDimStyle.Render(fmt.Sprintf("  [%d-%d/%d]", m.Offset+1, end, len(cur))))
	}
	b.WriteString("\n")

	return b.String()
}
