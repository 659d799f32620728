package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/flowscope/flowscope/pkg/flow"
	"github.com/flowscope/flowscope/pkg/view"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// explorerModel - Interactive session explorer
// =============================================================================

// explorerModel is the bubbletea model for walking a view session. Every
// key that mutates the view goes through the session, so the explorer sees
// exactly the collapse, filter and focus behavior the server exposes.
type explorerModel struct {
	session *view.Session
	state   *view.State
	rows    []view.StateNode

	cursor int
	offset int
	height int

	searching bool
	query     string

	err error
}

// newExplorerModel creates an explorer over a loaded session.
func newExplorerModel(sess *view.Session) explorerModel {
	st := sess.State(context.Background())
	return explorerModel{
		session: sess,
		state:   st,
		rows:    visibleRows(st),
		height:  15,
	}
}

func (m explorerModel) Init() tea.Cmd {
	return nil
}

func (m explorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg), nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.query == "" && m.state.Focus == "" {
				return m, tea.Quit
			}
			m.query = ""
			m = m.apply(m.session.SetSearchFilter(context.Background(), ""))
			m = m.apply(m.session.Focus(context.Background(), ""))
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
			}
		case "enter":
			if len(m.rows) == 0 {
				return m, nil
			}
			node := m.rows[m.cursor]
			switch {
			case node.Kind == flow.KindPipeline:
				m = m.apply(m.session.ToggleCollapsed(context.Background(), node.ID))
			case node.Pipeline != "":
				m = m.apply(m.session.ToggleCollapsed(context.Background(), node.Pipeline))
			}
		case "f":
			if len(m.rows) == 0 {
				return m, nil
			}
			target := m.rows[m.cursor].ID
			if m.state.Focus == target {
				target = ""
			}
			m = m.apply(m.session.Focus(context.Background(), target))
		case "/":
			m.searching = true
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height - 8
		if m.height < 5 {
			m.height = 5
		}
	}
	return m, nil
}

// updateSearch handles keys while the search prompt is active. The filter
// is applied live on every edit.
func (m explorerModel) updateSearch(msg tea.KeyMsg) explorerModel {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.searching = false
		m.query = ""
		return m.apply(m.session.SetSearchFilter(context.Background(), ""))
	case "enter":
		m.searching = false
		return m
	case "backspace":
		if m.query == "" {
			return m
		}
		m.query = m.query[:len(m.query)-1]
		return m.apply(m.session.SetSearchFilter(context.Background(), m.query))
	default:
		if msg.Type != tea.KeyRunes {
			return m
		}
		m.query += string(msg.Runes)
		return m.apply(m.session.SetSearchFilter(context.Background(), m.query))
	}
}

// apply folds one session mutation into the model, clamping the cursor to
// the new row set.
func (m explorerModel) apply(st *view.State, err error) explorerModel {
	if err != nil {
		m.err = err
		return m
	}
	m.err = nil
	m.state = st
	m.rows = visibleRows(st)

	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.offset > m.cursor {
		m.offset = m.cursor
	}
	return m
}

func (m explorerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Flowscope Explorer"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ collapse/expand  f focus  / search  q quit"))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(listDimStyle.Render("  no nodes match the active filters"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderTable())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())

	return b.String()
}

// renderTable draws the visible window of rows.
func (m explorerModel) renderTable() string {
	end := m.offset + m.height
	if end > len(m.rows) {
		end = len(m.rows)
	}

	rows := [][]string{}
	for i := m.offset; i < end; i++ {
		n := m.rows[i]

		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}

		tags := strings.Join(n.Tags, ", ")
		if tags == "" {
			tags = "—"
		}

		rows = append(rows, []string{cursor, n.Name, string(n.Kind), strconv.Itoa(n.Rank), tags})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Node", "Kind", "Rank", "Tags").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}

			actualIdx := m.offset + row
			if actualIdx >= len(m.rows) {
				return lipgloss.NewStyle()
			}
			n := m.rows[actualIdx]

			base := lipgloss.NewStyle()
			switch {
			case n.Highlighted:
				base = base.Foreground(colorGreen)
			case n.Faded:
				base = base.Foreground(colorDim)
			case n.Kind == flow.KindPipeline:
				base = base.Foreground(colorCyan)
			case col == 3 || col == 4:
				base = base.Foreground(colorGray)
			default:
				base = base.Foreground(colorWhite)
			}
			if actualIdx == m.cursor {
				base = base.Bold(true)
			}
			return base
		})

	return t.Render()
}

// renderStatus draws the position, stats and active filter line.
func (m explorerModel) renderStatus() string {
	parts := []string{fmt.Sprintf("[%d/%d]", m.cursor+1, len(m.rows))}
	if len(m.rows) == 0 {
		parts[0] = "[0/0]"
	}

	st := m.state
	parts = append(parts, fmt.Sprintf("%d/%d nodes visible", st.Stats.VisibleNodes, st.Stats.TotalNodes))
	if st.Stats.Pipelines > 0 {
		parts = append(parts, fmt.Sprintf("%d pipelines", st.Stats.Pipelines))
	}
	if st.Focus != "" {
		parts = append(parts, "focus: "+st.Focus)
	}

	line := "  " + listDimStyle.Render(strings.Join(parts, " · "))

	if m.searching {
		line += "\n  " + StyleHighlight.Render("/"+m.query+"▌")
	} else if m.query != "" {
		line += "\n  " + listDimStyle.Render("filter: ") + StyleHighlight.Render(m.query)
	}
	if st.Fallback {
		line += "\n  " + StyleWarning.Render("layout fell back to a single column")
	}
	if m.err != nil {
		line += "\n  " + StyleWarning.Render(m.err.Error())
	}

	return line
}

// visibleRows orders the state's nodes for listing: by rank, then order
// within the rank, then id.
func visibleRows(st *view.State) []view.StateNode {
	rows := make([]view.StateNode, len(st.Nodes))
	copy(rows, st.Nodes)
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	return rows
}
