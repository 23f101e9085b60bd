package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"teamboard/internal/models"
	"teamboard/internal/sync"
	"teamboard/internal/ui/drag"
	"teamboard/internal/ui/keys"
	"teamboard/internal/ui/styles"
)

// BackToProjects is emitted when the user leaves the board.
type BackToProjects struct{}

// ShowMessages is emitted when the user switches to the messages pane.
type ShowMessages struct{}

type boardRefreshedMsg struct {
	err error
}

type taskCreatedMsg struct {
	err error
}

type taskMovedMsg struct {
	taskID int64
	err    error
}

type clearFlashMsg struct{}

// BoardView renders a project's tasks as three status columns and turns key
// gestures into status-change commands. All task state lives in the session's
// store; the view re-reads it on every render, so optimistic applies,
// rollbacks and poll merges all show up without extra plumbing.
type BoardView struct {
	session *sync.Session
	project models.Project
	styles  *styles.Styles
	keys    keys.KeyMap
	width   int
	height  int

	focusCol int
	selIdx   int
	drag     drag.State
	flash    string

	creating   bool
	submitting bool
	formErr    string
	newTitle   textinput.Model
	newDesc    textinput.Model
	focusIdx   int
}

// NewBoardView creates a board over the given project.
func NewBoardView(session *sync.Session, project models.Project) *BoardView {
	newTitle := textinput.New()
	newTitle.Placeholder = "Task title"
	newTitle.CharLimit = 200

	newDesc := textinput.New()
	newDesc.Placeholder = "Description (optional)"
	newDesc.CharLimit = 500

	return &BoardView{
		session:  session,
		project:  project,
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		newTitle: newTitle,
		newDesc:  newDesc,
	}
}

func (v *BoardView) Init() tea.Cmd {
	return func() tea.Msg {
		return boardRefreshedMsg{err: v.session.RefreshProject(context.Background(), v.project.ID)}
	}
}

// columns groups the project's tasks by status in column order.
func (v *BoardView) columns() [3][]models.Task {
	var cols [3][]models.Task
	for _, t := range v.session.Tasks(v.project.ID) {
		if i := drag.ColumnForStatus(t.Status); i >= 0 {
			cols[i] = append(cols[i], t)
		}
	}
	return cols
}

func (v *BoardView) selectedTask() (models.Task, bool) {
	cols := v.columns()
	col := cols[v.focusCol]
	if len(col) == 0 {
		return models.Task{}, false
	}
	idx := clamp(v.selIdx, 0, len(col)-1)
	return col[idx], true
}

func (v *BoardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case boardRefreshedMsg:
		if msg.err != nil {
			return v, v.setFlash(sync.FailureMessage(msg.err))
		}
		return v, nil

	case taskCreatedMsg:
		v.submitting = false
		if msg.err != nil {
			v.formErr = sync.FailureMessage(msg.err)
			return v, nil
		}
		v.creating = false
		return v, nil

	case taskMovedMsg:
		if msg.err == nil {
			return v, nil
		}
		if errors.Is(msg.err, sync.ErrBusy) {
			// The gate rejected the second mutation; the card snaps back
			// because the store was never touched.
			return v, v.setFlash("task has a change in flight")
		}
		return v, v.setFlash(sync.FailureMessage(msg.err))

	case clearFlashMsg:
		v.flash = ""
		return v, nil

	case tea.KeyMsg:
		if v.creating {
			return v.updateCreating(msg)
		}
		return v.updateBoard(msg)
	}

	return v, nil
}

func (v *BoardView) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		if v.drag.Phase == drag.Dragging {
			v.drag = drag.Cancel(v.drag)
			return v, nil
		}
		return v, func() tea.Msg { return BackToProjects{} }

	case key.Matches(msg, v.keys.Chat):
		return v, func() tea.Msg { return ShowMessages{} }

	case key.Matches(msg, v.keys.New):
		v.creating = true
		v.formErr = ""
		v.focusIdx = 0
		v.newTitle.Reset()
		v.newDesc.Reset()
		v.newTitle.Focus()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Left):
		if v.drag.Phase == drag.Dragging {
			v.drag = drag.HoverLeft(v.drag)
		} else if v.focusCol > 0 {
			v.focusCol--
			v.selIdx = 0
		}
		return v, nil

	case key.Matches(msg, v.keys.Right):
		if v.drag.Phase == drag.Dragging {
			v.drag = drag.HoverRight(v.drag)
		} else if v.focusCol < 2 {
			v.focusCol++
			v.selIdx = 0
		}
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.selIdx > 0 {
			v.selIdx--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		cols := v.columns()
		if v.selIdx < len(cols[v.focusCol])-1 {
			v.selIdx++
		}
		return v, nil

	case key.Matches(msg, v.keys.Grab), key.Matches(msg, v.keys.Enter):
		if v.drag.Phase == drag.Dragging {
			var move *drag.Move
			v.drag, move = drag.Drop(v.drag)
			if move == nil {
				return v, nil
			}
			return v, v.moveTask(move.TaskID, move.To)
		}
		if task, ok := v.selectedTask(); ok {
			v.drag = drag.Grab(v.drag, task.ID, task.Status)
		}
		return v, nil

	case key.Matches(msg, v.keys.Status):
		// Direct status control: advance to the next column without a drag.
		if task, ok := v.selectedTask(); ok {
			next := drag.ColumnForStatus(task.Status) + 1
			if status, ok := drag.StatusForColumn(next % 3); ok {
				return v, v.moveTask(task.ID, status)
			}
		}
		return v, nil
	}

	return v, nil
}

func (v *BoardView) moveTask(taskID int64, status models.Status) tea.Cmd {
	return func() tea.Msg {
		err := v.session.UpdateTaskStatus(context.Background(), taskID, status)
		return taskMovedMsg{taskID: taskID, err: err}
	}
}

func (v *BoardView) setFlash(text string) tea.Cmd {
	v.flash = text
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return clearFlashMsg{}
	})
}

func (v *BoardView) submitCreate() tea.Cmd {
	if v.submitting {
		return nil
	}
	title := strings.TrimSpace(v.newTitle.Value())
	desc := strings.TrimSpace(v.newDesc.Value())

	v.submitting = true
	v.formErr = ""
	return func() tea.Msg {
		_, err := v.session.CreateTask(context.Background(), v.project.ID, title, desc)
		return taskCreatedMsg{err: err}
	}
}

func (v *BoardView) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		if !v.submitting {
			v.creating = false
		}
		return v, nil

	case msg.String() == "ctrl+s":
		return v, v.submitCreate()

	case msg.String() == "shift+tab":
		v.focusIdx = (v.focusIdx + 2) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Tab):
		v.focusIdx = (v.focusIdx + 1) % 3
		v.updateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.focusIdx < 2 {
			v.focusIdx++
			v.updateFocus()
			return v, nil
		}
		return v, v.submitCreate()
	}

	var cmd tea.Cmd
	switch v.focusIdx {
	case 0:
		v.newTitle, cmd = v.newTitle.Update(msg)
	case 1:
		v.newDesc, cmd = v.newDesc.Update(msg)
	}
	return v, cmd
}

func (v *BoardView) updateFocus() {
	v.newTitle.Blur()
	v.newDesc.Blur()
	switch v.focusIdx {
	case 0:
		v.newTitle.Focus()
	case 1:
		v.newDesc.Focus()
	}
}

// View renders the board
func (v *BoardView) View() string {
	if v.creating {
		return v.renderCreateForm()
	}

	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	colWidth := max(contentWidth/3-2, 24)
	cols := v.columns()

	rendered := make([]string, 0, 3)
	for i, status := range models.AllStatuses {
		rendered = append(rendered, v.renderColumn(i, status, cols[i], colWidth))
	}

	header := s.Title.Render(v.project.Name)
	board := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	parts := []string{header, v.renderProgress(cols), board, v.renderFooter()}
	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return styles.CenterView(content, v.width, v.height)
}

func (v *BoardView) renderColumn(idx int, status models.Status, tasks []models.Task, width int) string {
	s := v.styles

	headerStyle := s.ColumnHeader.Foreground(styles.StatusColor(status))
	header := headerStyle.Render(fmt.Sprintf("%s (%d)", status.Label(), len(tasks)))

	dropTarget := v.drag.Phase == drag.Dragging && v.drag.Over == status

	sel := -1
	if idx == v.focusCol {
		sel = v.boundedSel(idx)
	}

	lines := []string{header}
	if len(tasks) == 0 {
		lines = append(lines, s.TitleMuted.Render("  No tasks"))
	}
	now := time.Now()
	for i, t := range tasks {
		lines = append(lines, v.renderCard(t, i == sel, width-4, now))
	}
	if dropTarget && v.drag.From != status {
		lines = append(lines, s.CardDragging.Render("▼ drop here"))
	}

	colStyle := s.Column
	if idx == v.focusCol || dropTarget {
		colStyle = s.ColumnFocus
	}
	return colStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (v *BoardView) renderCard(t models.Task, selected bool, width int, now time.Time) string {
	s := v.styles

	style := s.Card
	switch {
	case v.drag.Phase == drag.Dragging && v.drag.TaskID == t.ID:
		style = s.CardDragging
	case selected:
		style = s.CardSelected
	case v.session.Busy(sync.EntityTask, t.ID):
		style = s.CardPending
	case t.Overdue(now):
		style = s.CardOverdue
	}

	title := t.Title
	if t.ID < 0 {
		// Optimistic create awaiting its server id.
		title += " …"
	}
	if t.DueDate != nil {
		title += s.MessageTime.Render(" " + t.DueDate.Format("Jan 2"))
	}
	return style.MaxWidth(width).Render(title)
}

// boundedSel clamps the selection index against the focused column's size.
func (v *BoardView) boundedSel(colIdx int) int {
	cols := v.columns()
	if len(cols[colIdx]) == 0 {
		return -1
	}
	return clamp(v.selIdx, 0, len(cols[colIdx])-1)
}

func (v *BoardView) renderProgress(cols [3][]models.Task) string {
	total := len(cols[0]) + len(cols[1]) + len(cols[2])
	done := len(cols[2])
	pct := 0
	if total > 0 {
		pct = done * 100 / total
	}
	return v.styles.StatusBar.Render(fmt.Sprintf("%d%% Complete (%d/%d tasks)", pct, done, total))
}

func (v *BoardView) renderFooter() string {
	s := v.styles
	if v.flash != "" {
		return s.ErrorBanner.Render(v.flash)
	}
	if v.drag.Phase == drag.Dragging {
		return s.Help.Render(
			fmt.Sprintf("%s move • %s drop • %s cancel",
				s.HelpKey.Render("←/→"),
				s.HelpKey.Render("space"),
				s.HelpKey.Render("esc"),
			),
		)
	}
	return s.Help.Render(
		fmt.Sprintf("%s navigate • %s grab • %s status • %s new • %s chat • %s back",
			s.HelpKey.Render("←↑↓→"),
			s.HelpKey.Render("space"),
			s.HelpKey.Render("s"),
			s.HelpKey.Render("n"),
			s.HelpKey.Render("m"),
			s.HelpKey.Render("esc"),
		),
	)
}

func (v *BoardView) renderCreateForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	titleStyle := s.Input
	descStyle := s.Input
	btnStyle := s.Button

	switch v.focusIdx {
	case 0:
		titleStyle = s.InputFocused
	case 1:
		descStyle = s.InputFocused
	case 2:
		btnStyle = s.ButtonFocused
	}

	inputWidth := clamp(contentWidth-6, 20, 60)

	btnLabel := " Create "
	if v.submitting {
		btnLabel = " Creating... "
		btnStyle = s.Button
	}

	rows := []string{
		s.Title.Render("New Task"),
		"",
		"Title:",
		titleStyle.Width(inputWidth).Render(v.newTitle.View()),
		"",
		"Description:",
		descStyle.Width(inputWidth).Render(v.newDesc.View()),
		"",
		btnStyle.Render(btnLabel),
	}
	if v.formErr != "" {
		rows = append(rows, "", s.ErrorBanner.Render(v.formErr))
	}
	rows = append(rows, "", s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"))

	form := lipgloss.JoinVertical(lipgloss.Left, rows...)
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}
