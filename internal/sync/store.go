package sync

import (
	stdsync "sync"

	"teamboard/internal/models"
)

// EntityType identifies which collection an entity belongs to.
type EntityType int

const (
	EntityProject EntityType = iota
	EntityTask
	EntityMessage
)

func (t EntityType) String() string {
	switch t {
	case EntityProject:
		return "project"
	case EntityTask:
		return "task"
	case EntityMessage:
		return "message"
	}
	return "unknown"
}

// Entity is anything the store can hold: models.Project, models.Task or
// models.Message, stored by value.
type Entity interface {
	EntityID() int64
}

// Wrappers give the model types identity without the models package knowing
// about the store.

type projectEntity struct{ models.Project }
type taskEntity struct{ models.Task }
type messageEntity struct{ models.Message }

func (p projectEntity) EntityID() int64 { return p.ID }
func (t taskEntity) EntityID() int64    { return t.ID }
func (m messageEntity) EntityID() int64 { return m.ID }

// WrapProject adapts a project for the store.
func WrapProject(p models.Project) Entity { return projectEntity{p} }

// WrapTask adapts a task for the store.
func WrapTask(t models.Task) Entity { return taskEntity{t} }

// WrapMessage adapts a message for the store.
func WrapMessage(m models.Message) Entity { return messageEntity{m} }

// Store is the canonical in-memory cache of entities, keyed by type and id.
// It knows nothing about the network; the gate and reconciler write into it
// and presentation code reads out of it via Get/List and Subscribe.
type Store struct {
	mu       stdsync.RWMutex
	entities map[EntityType]map[int64]Entity
	subs     map[EntityType][]func()
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entities: map[EntityType]map[int64]Entity{
			EntityProject: {},
			EntityTask:    {},
			EntityMessage: {},
		},
		subs: map[EntityType][]func(){},
	}
}

// Get returns the entity with the given id, if present.
func (s *Store) Get(t EntityType, id int64) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[t][id]
	return e, ok
}

// List returns entities of a type matching filter (nil matches all). No
// particular order is guaranteed; callers sort for display.
func (s *Store) List(t EntityType, filter func(Entity) bool) []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entity
	for _, e := range s.entities[t] {
		if filter == nil || filter(e) {
			out = append(out, e)
		}
	}
	return out
}

// Upsert inserts or replaces an entity by id and notifies subscribers.
func (s *Store) Upsert(t EntityType, e Entity) {
	s.mu.Lock()
	s.entities[t][e.EntityID()] = e
	subs := s.subs[t]
	s.mu.Unlock()
	notify(subs)
}

// Remove deletes an entity by id. Subscribers are notified only if something
// was actually removed.
func (s *Store) Remove(t EntityType, id int64) {
	s.mu.Lock()
	_, existed := s.entities[t][id]
	delete(s.entities[t], id)
	var subs []func()
	if existed {
		subs = s.subs[t]
	}
	s.mu.Unlock()
	notify(subs)
}

// Subscribe registers fn to be called synchronously after every upsert or
// remove affecting the given type. Callbacks run outside the store lock in
// registration order.
func (s *Store) Subscribe(t EntityType, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[t] = append(s.subs[t], fn)
}

func notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}

// Project returns a typed project from the store.
func (s *Store) Project(id int64) (models.Project, bool) {
	e, ok := s.Get(EntityProject, id)
	if !ok {
		return models.Project{}, false
	}
	return e.(projectEntity).Project, true
}

// Task returns a typed task from the store.
func (s *Store) Task(id int64) (models.Task, bool) {
	e, ok := s.Get(EntityTask, id)
	if !ok {
		return models.Task{}, false
	}
	return e.(taskEntity).Task, true
}

// Message returns a typed message from the store.
func (s *Store) Message(id int64) (models.Message, bool) {
	e, ok := s.Get(EntityMessage, id)
	if !ok {
		return models.Message{}, false
	}
	return e.(messageEntity).Message, true
}

// Projects returns all cached projects.
func (s *Store) Projects() []models.Project {
	var out []models.Project
	for _, e := range s.List(EntityProject, nil) {
		out = append(out, e.(projectEntity).Project)
	}
	return out
}

// Tasks returns all cached tasks for a project.
func (s *Store) Tasks(projectID int64) []models.Task {
	var out []models.Task
	for _, e := range s.List(EntityTask, func(e Entity) bool {
		return e.(taskEntity).ProjectID == projectID
	}) {
		out = append(out, e.(taskEntity).Task)
	}
	return out
}

// Messages returns all cached messages for a project, in store order. The
// render layer sorts by creation time.
func (s *Store) Messages(projectID int64) []models.Message {
	var out []models.Message
	for _, e := range s.List(EntityMessage, func(e Entity) bool {
		return e.(messageEntity).ProjectID == projectID
	}) {
		out = append(out, e.(messageEntity).Message)
	}
	return out
}

// ReassignProject rewrites the project id on every cached task and message
// that still points at oldID. Used when a project created optimistically is
// confirmed with its server id, so local children follow in the same step.
func (s *Store) ReassignProject(oldID, newID int64) {
	s.mu.Lock()
	for id, e := range s.entities[EntityTask] {
		if te := e.(taskEntity); te.ProjectID == oldID {
			te.ProjectID = newID
			s.entities[EntityTask][id] = te
		}
	}
	for id, e := range s.entities[EntityMessage] {
		if me := e.(messageEntity); me.ProjectID == oldID {
			me.ProjectID = newID
			s.entities[EntityMessage][id] = me
		}
	}
	taskSubs := s.subs[EntityTask]
	msgSubs := s.subs[EntityMessage]
	s.mu.Unlock()
	notify(taskSubs)
	notify(msgSubs)
}
