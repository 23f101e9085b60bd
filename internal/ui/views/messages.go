package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"teamboard/internal/models"
	"teamboard/internal/sync"
	"teamboard/internal/ui/keys"
	"teamboard/internal/ui/styles"
)

// BackToBoard is emitted when the user leaves the messages pane.
type BackToBoard struct{}

type messageSentMsg struct {
	err error
}

// MessagesView is the project conversation pane. Messages come from the store
// sorted by creation time; an optimistic send shows up immediately and is
// corrected or withdrawn when the server answers.
type MessagesView struct {
	session *sync.Session
	project models.Project
	styles  *styles.Styles
	keys    keys.KeyMap
	width   int
	height  int

	viewport viewport.Model
	input    textinput.Model
	sending  bool
	errMsg   string
	ready    bool
}

// NewMessagesView creates the conversation pane for a project.
func NewMessagesView(session *sync.Session, project models.Project) *MessagesView {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 1000
	input.Focus()

	return &MessagesView{
		session: session,
		project: project,
		styles:  styles.NewStyles(),
		keys:    keys.DefaultKeyMap(),
		input:   input,
	}
}

func (v *MessagesView) Init() tea.Cmd {
	return textinput.Blink
}

// Reload re-renders the conversation from the store and follows the tail.
func (v *MessagesView) Reload() {
	if !v.ready {
		return
	}
	v.viewport.SetContent(v.renderMessages())
	v.viewport.GotoBottom()
}

func (v *MessagesView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(msg.Width)
		if !v.ready {
			v.viewport = viewport.New(contentWidth-4, max(msg.Height-8, 4))
			v.ready = true
		} else {
			v.viewport.Width = contentWidth - 4
			v.viewport.Height = max(msg.Height-8, 4)
		}
		v.Reload()
		return v, nil

	case messageSentMsg:
		v.sending = false
		if msg.err != nil {
			if !errors.Is(msg.err, sync.ErrBusy) {
				v.errMsg = sync.FailureMessage(msg.err)
			}
			return v, nil
		}
		v.input.Reset()
		v.Reload()
		return v, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.Back):
			return v, func() tea.Msg { return BackToBoard{} }
		case msg.String() == "ctrl+c":
			return v, tea.Quit
		case key.Matches(msg, v.keys.Enter):
			return v, v.send()
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	cmds = append(cmds, cmd)
	v.viewport, cmd = v.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return v, tea.Batch(cmds...)
}

func (v *MessagesView) send() tea.Cmd {
	if v.sending {
		return nil
	}
	content := strings.TrimSpace(v.input.Value())
	if content == "" {
		v.errMsg = "message content is required"
		return nil
	}

	v.sending = true
	v.errMsg = ""
	return func() tea.Msg {
		_, err := v.session.SendMessage(context.Background(), v.project.ID, content)
		return messageSentMsg{err: err}
	}
}

// View renders the pane
func (v *MessagesView) View() string {
	if !v.ready {
		return v.styles.TitleMuted.Render("Loading...")
	}

	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	header := s.Title.Render(v.project.Name + " — Messages")

	inputStyle := s.InputFocused
	if v.sending {
		inputStyle = s.Input
	}
	inputLine := inputStyle.Width(contentWidth - 4).Render(v.input.View())

	footer := s.Help.Render(
		fmt.Sprintf("%s send • %s board",
			s.HelpKey.Render("↵"),
			s.HelpKey.Render("esc"),
		),
	)
	if v.errMsg != "" {
		footer = s.ErrorBanner.Render(v.errMsg)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		v.viewport.View(),
		inputLine,
		footer,
	)
	return styles.CenterView(content, v.width, v.height)
}

func (v *MessagesView) renderMessages() string {
	s := v.styles
	msgs := v.session.Messages(v.project.ID)
	if len(msgs) == 0 {
		return s.TitleMuted.Render("No messages yet. Start the conversation.")
	}

	now := time.Now()
	lines := make([]string, 0, len(msgs)*2)
	for _, m := range msgs {
		author := m.UserName
		if author == "" {
			author = "You"
		}
		when := relativeTime(m.CreatedAt, now)
		if m.ID < 0 {
			when = "sending..."
		}
		lines = append(lines,
			s.MessageAuthor.Render(author)+" "+s.MessageTime.Render(when),
			s.MessageBody.Render(m.Content),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// relativeTime renders a message timestamp the way the conversation pane
// shows it: minutes, then hours, then the date.
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2, 2006")
	}
}
