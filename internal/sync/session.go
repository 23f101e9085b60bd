package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"teamboard/internal/api"
	"teamboard/internal/models"
)

// DefaultPollInterval is the refresh cadence used when none is configured.
const DefaultPollInterval = 10 * time.Second

// SessionDeps holds the collaborators a Session is built from. Everything is
// injected so the core can run against a fake transport in tests.
type SessionDeps struct {
	Client       *api.Client
	Notifier     Notifier
	Logger       *slog.Logger
	PollInterval time.Duration
}

// Session is the only surface presentation code talks to: commands in,
// store subscriptions and reads out. It wires the store, gate, reconciler and
// poller together.
type Session struct {
	client   *api.Client
	store    *Store
	gate     *Gate
	rec      *Reconciler
	poller   *Poller
	notifier Notifier
	log      *slog.Logger
}

// NewSession assembles a session from its dependencies.
func NewSession(deps SessionDeps) *Session {
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = DefaultPollInterval
	}

	store := NewStore()
	gate := NewGate(store)
	s := &Session{
		client:   deps.Client,
		store:    store,
		gate:     gate,
		rec:      NewReconciler(store, gate),
		notifier: deps.Notifier,
		log:      deps.Logger,
	}
	s.poller = NewPoller(deps.PollInterval, map[string]FetchFunc{
		"tasks":    s.refreshTasks,
		"messages": s.refreshMessages,
	}, deps.Logger)
	return s
}

// Store exposes the entity store for subscriptions and reads.
func (s *Session) Store() *Store { return s.store }

// Subscribe registers fn to run after every change to the given entity type.
func (s *Session) Subscribe(t EntityType, fn func()) { s.store.Subscribe(t, fn) }

// Busy reports whether the entity currently has a mutation in flight. The UI
// uses it to disable the triggering control; the gate remains the enforcement
// point either way.
func (s *Session) Busy(t EntityType, id int64) bool {
	_, pending := s.gate.Pending(t, id)
	return pending
}

// Projects returns cached projects sorted by creation time.
func (s *Session) Projects() []models.Project {
	projects := s.store.Projects()
	sortProjects(projects)
	return projects
}

// Tasks returns the cached tasks of a project in stable id order; the board
// groups them by status column.
func (s *Session) Tasks(projectID int64) []models.Task {
	tasks := s.store.Tasks(projectID)
	sortTasks(tasks)
	return tasks
}

// Messages returns the cached messages of a project ordered by creation time
// ascending. The store may hold them in any order; ordering is applied here,
// at the render boundary.
func (s *Session) Messages(projectID int64) []models.Message {
	msgs := s.store.Messages(projectID)
	sortMessages(msgs)
	return msgs
}

// RefreshProjects pulls the project list and reconciles it into the store.
// Used at startup and after returning to the project list.
func (s *Session) RefreshProjects(ctx context.Context) error {
	projects, err := s.client.ListProjects(ctx)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.rec.Apply(EntityProject, wrapProjects(projects), nil)
	return nil
}

func (s *Session) refreshTasks(ctx context.Context, projectID int64) error {
	tasks, err := s.client.ListTasks(ctx, projectID)
	if err != nil {
		return err
	}
	// A poll cancelled mid-flight must not merge a stale snapshot.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.rec.Apply(EntityTask, wrapTasks(tasks), func(e Entity) bool {
		return e.(taskEntity).ProjectID == projectID
	})
	return nil
}

func (s *Session) refreshMessages(ctx context.Context, projectID int64) error {
	msgs, err := s.client.ListMessages(ctx, projectID)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.rec.Apply(EntityMessage, wrapMessages(msgs), func(e Entity) bool {
		return e.(messageEntity).ProjectID == projectID
	})
	return nil
}

// RefreshProject pulls one project's tasks and messages immediately, outside
// the polling cadence. Used when a project is opened so the board is not
// empty until the first tick.
func (s *Session) RefreshProject(ctx context.Context, projectID int64) error {
	if err := s.refreshTasks(ctx, projectID); err != nil {
		return err
	}
	return s.refreshMessages(ctx, projectID)
}

// StartPolling begins the periodic refresh of a project's tasks and messages.
// Exactly one project is polled at a time.
func (s *Session) StartPolling(projectID int64) { s.poller.Start(projectID) }

// StopPolling halts the periodic refresh. Safe to call repeatedly.
func (s *Session) StopPolling() { s.poller.Stop() }

// CreateProject optimistically adds a project and confirms it with the
// server. The returned project carries the server-assigned id.
func (s *Session) CreateProject(ctx context.Context, name, description string) (models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Project{}, &ValidationError{Field: "name", Message: "project name is required"}
	}

	temp := models.Project{
		ID:          s.gate.NextTempID(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	}
	confirmed, err := s.gate.Create(ctx, EntityProject, WrapProject(temp), func(ctx context.Context) (Entity, error) {
		p, err := s.client.CreateProject(ctx, name, description)
		if err != nil {
			return nil, err
		}
		return WrapProject(*p), nil
	})
	if err != nil {
		s.reportFailure("create project", err)
		return models.Project{}, err
	}
	p := confirmed.(projectEntity).Project
	s.notifier.EntityCreated(EntityProject, p.Name)
	return p, nil
}

// UpdateProject renames a project and/or changes its description.
func (s *Session) UpdateProject(ctx context.Context, id int64, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "project name is required"}
	}

	err := s.gate.Update(ctx, EntityProject, id, func(e Entity) Entity {
		p := e.(projectEntity).Project
		p.Name = name
		p.Description = description
		return WrapProject(p)
	}, func(ctx context.Context) (Entity, error) {
		p, err := s.client.UpdateProject(ctx, id, name, description)
		if err != nil {
			return nil, err
		}
		return WrapProject(*p), nil
	})
	if err != nil {
		s.reportFailure("update project", err)
		return err
	}
	s.notifier.EntityUpdated(EntityProject, id)
	return nil
}

// DeleteProject optimistically removes a project. The server cascades the
// delete to tasks and messages; locally they disappear with the project's
// cached children on the next reconcile, or immediately here.
func (s *Session) DeleteProject(ctx context.Context, id int64) error {
	err := s.gate.Delete(ctx, EntityProject, id, func(ctx context.Context) (Entity, error) {
		return nil, s.client.DeleteProject(ctx, id)
	})
	if err != nil {
		s.reportFailure("delete project", err)
		return err
	}
	for _, t := range s.store.Tasks(id) {
		s.store.Remove(EntityTask, t.ID)
	}
	for _, m := range s.store.Messages(id) {
		s.store.Remove(EntityMessage, m.ID)
	}
	return nil
}

// CreateTask optimistically adds a task in the todo column and confirms it
// with the server.
func (s *Session) CreateTask(ctx context.Context, projectID int64, title, description string) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, &ValidationError{Field: "title", Message: "task title is required"}
	}

	temp := models.Task{
		ID:          s.gate.NextTempID(),
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Status:      models.StatusTodo,
	}
	confirmed, err := s.gate.Create(ctx, EntityTask, WrapTask(temp), func(ctx context.Context) (Entity, error) {
		t, err := s.client.CreateTask(ctx, projectID, title, description)
		if err != nil {
			return nil, err
		}
		return WrapTask(*t), nil
	})
	if err != nil {
		s.reportFailure("create task", err)
		return models.Task{}, err
	}
	t := confirmed.(taskEntity).Task
	s.notifier.EntityCreated(EntityTask, t.Title)
	return t, nil
}

// UpdateTaskStatus moves a task to another column. Both the drag gesture and
// the direct status control route through here, so the single-pending
// invariant serializes them.
func (s *Session) UpdateTaskStatus(ctx context.Context, taskID int64, status models.Status) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Message: "unknown status"}
	}

	err := s.gate.Update(ctx, EntityTask, taskID, func(e Entity) Entity {
		t := e.(taskEntity).Task
		t.Status = status
		return WrapTask(t)
	}, func(ctx context.Context) (Entity, error) {
		t, err := s.client.PatchTask(ctx, taskID, api.TaskPatch{Status: &status})
		if err != nil {
			return nil, err
		}
		return WrapTask(*t), nil
	})
	if err != nil {
		s.reportFailure("move task", err)
		return err
	}
	s.notifier.EntityUpdated(EntityTask, taskID)
	return nil
}

// SendMessage posts a message to the project conversation. The optimistic
// copy has no user attribution; the server's confirmation fills it in.
func (s *Session) SendMessage(ctx context.Context, projectID int64, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, &ValidationError{Field: "content", Message: "message content is required"}
	}

	temp := models.Message{
		ID:        s.gate.NextTempID(),
		ProjectID: projectID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	confirmed, err := s.gate.Create(ctx, EntityMessage, WrapMessage(temp), func(ctx context.Context) (Entity, error) {
		m, err := s.client.CreateMessage(ctx, projectID, content)
		if err != nil {
			return nil, err
		}
		return WrapMessage(*m), nil
	})
	if err != nil {
		s.reportFailure("send message", err)
		return models.Message{}, err
	}
	m := confirmed.(messageEntity).Message
	s.notifier.EntityCreated(EntityMessage, m.UserName)
	return m, nil
}

// reportFailure forwards a mutation failure to the notifier, except Busy,
// which the triggering control handles in place.
func (s *Session) reportFailure(kind string, err error) {
	if errors.Is(err, ErrBusy) {
		return
	}
	s.log.Error("mutation failed", "kind", kind, "err", err)
	s.notifier.MutationFailed(kind, FailureMessage(err))
}

// FailureMessage renders a mutation error for display: field-attributable
// lines when the server supplied field errors, otherwise the general message.
func FailureMessage(err error) string {
	var se *api.ServerError
	if errors.As(err, &se) && len(se.FieldErrors) > 0 {
		parts := make([]string, 0, len(se.FieldErrors))
		for field, msg := range se.FieldErrors {
			parts = append(parts, field+": "+msg)
		}
		sort.Strings(parts)
		return strings.Join(parts, "; ")
	}
	var ne *api.NetworkError
	if errors.As(err, &ne) {
		return "could not reach the server"
	}
	return err.Error()
}
