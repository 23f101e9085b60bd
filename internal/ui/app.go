package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"teamboard/internal/models"
	"teamboard/internal/sync"
	"teamboard/internal/ui/views"
)

// Currently active view
type View int

const (
	ViewProjects View = iota
	ViewBoard
	ViewMessages
)

// StoreChangedMsg is sent into the program whenever the entity store changes.
// Views re-read the store when they see it.
type StoreChangedMsg struct {
	Type sync.EntityType
}

// App is the root model. It owns view switching and the polling lifecycle:
// polling runs only while a project is open.
type App struct {
	session     *sync.Session
	currentView View
	projectList *views.ProjectListView
	board       *views.BoardView
	messages    *views.MessagesView
	project     models.Project
	width       int
	height      int
}

// NewApp creates the application over a session.
func NewApp(session *sync.Session) *App {
	return &App{
		session:     session,
		currentView: ViewProjects,
		projectList: views.NewProjectListView(session),
	}
}

func (a *App) Init() tea.Cmd {
	return a.projectList.Init()
}

func (a *App) openProject(project models.Project) tea.Cmd {
	a.currentView = ViewBoard
	a.project = project
	a.board = views.NewBoardView(a.session, project)
	a.messages = views.NewMessagesView(a.session, project)

	// One polling target at a time: starting here follows a Stop in
	// closeProject, so switching projects never leaks a ticker.
	a.session.StartPolling(project.ID)

	return tea.Batch(
		a.board.Init(),
		a.messages.Init(),
		func() tea.Msg {
			return tea.WindowSizeMsg{Width: a.width, Height: a.height}
		},
	)
}

func (a *App) closeProject() tea.Cmd {
	a.session.StopPolling()
	a.currentView = ViewProjects
	a.board = nil
	a.messages = nil
	a.projectList.Reload()
	return tea.Batch(
		a.projectList.Init(),
		func() tea.Msg {
			return tea.WindowSizeMsg{Width: a.width, Height: a.height}
		},
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// The project list persists across views; keep its size current.
		a.projectList.Update(msg)

	case StoreChangedMsg:
		switch msg.Type {
		case sync.EntityProject:
			a.projectList.Reload()
		case sync.EntityMessage:
			if a.messages != nil {
				a.messages.Reload()
			}
		}
		// The board re-reads the store on every render; no reload needed.
		return a, nil

	case views.SelectedProject:
		return a, a.openProject(msg.Project)

	case views.BackToProjects:
		return a, a.closeProject()

	case views.ShowMessages:
		if a.messages != nil {
			a.currentView = ViewMessages
			a.messages.Reload()
			return a, func() tea.Msg {
				return tea.WindowSizeMsg{Width: a.width, Height: a.height}
			}
		}
		return a, nil

	case views.BackToBoard:
		a.currentView = ViewBoard
		return a, nil
	}

	var cmd tea.Cmd
	switch a.currentView {
	case ViewProjects:
		_, cmd = a.projectList.Update(msg)
	case ViewBoard:
		if a.board != nil {
			_, cmd = a.board.Update(msg)
		}
	case ViewMessages:
		if a.messages != nil {
			_, cmd = a.messages.Update(msg)
		}
	}

	return a, cmd
}

func (a *App) View() string {
	switch a.currentView {
	case ViewBoard:
		if a.board != nil {
			return a.board.View()
		}
	case ViewMessages:
		if a.messages != nil {
			return a.messages.View()
		}
	}
	return a.projectList.View()
}
