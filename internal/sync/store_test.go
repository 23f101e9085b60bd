package sync

import (
	"testing"
	"time"

	"teamboard/internal/models"
)

func TestStoreUpsertGetRemove(t *testing.T) {
	s := NewStore()

	s.Upsert(EntityTask, WrapTask(models.Task{ID: 1, ProjectID: 9, Title: "a", Status: models.StatusTodo}))

	task, ok := s.Task(1)
	if !ok {
		t.Fatal("expected task 1 after upsert")
	}
	if task.Title != "a" {
		t.Errorf("task.Title = %q", task.Title)
	}

	// Upsert replaces by id.
	s.Upsert(EntityTask, WrapTask(models.Task{ID: 1, ProjectID: 9, Title: "b", Status: models.StatusDone}))
	task, _ = s.Task(1)
	if task.Title != "b" || task.Status != models.StatusDone {
		t.Errorf("replaced task = %+v", task)
	}

	s.Remove(EntityTask, 1)
	if _, ok := s.Task(1); ok {
		t.Error("task 1 still present after remove")
	}
}

func TestStoreListFiltersByProject(t *testing.T) {
	s := NewStore()
	s.Upsert(EntityTask, WrapTask(models.Task{ID: 1, ProjectID: 1, Status: models.StatusTodo}))
	s.Upsert(EntityTask, WrapTask(models.Task{ID: 2, ProjectID: 2, Status: models.StatusTodo}))
	s.Upsert(EntityTask, WrapTask(models.Task{ID: 3, ProjectID: 1, Status: models.StatusTodo}))

	tasks := s.Tasks(1)
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks for project 1, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.ProjectID != 1 {
			t.Errorf("task %d belongs to project %d", task.ID, task.ProjectID)
		}
	}
}

func TestStoreSubscribeFiresSynchronously(t *testing.T) {
	s := NewStore()

	var taskEvents, projectEvents int
	s.Subscribe(EntityTask, func() { taskEvents++ })
	s.Subscribe(EntityProject, func() { projectEvents++ })

	s.Upsert(EntityTask, WrapTask(models.Task{ID: 1, Status: models.StatusTodo}))
	if taskEvents != 1 {
		t.Fatalf("taskEvents = %d after upsert, want 1", taskEvents)
	}
	if projectEvents != 0 {
		t.Fatalf("project subscriber fired for a task change")
	}

	s.Remove(EntityTask, 1)
	if taskEvents != 2 {
		t.Fatalf("taskEvents = %d after remove, want 2", taskEvents)
	}

	// Removing something that is not there stays silent.
	s.Remove(EntityTask, 99)
	if taskEvents != 2 {
		t.Fatalf("taskEvents = %d after no-op remove, want 2", taskEvents)
	}
}

func TestStoreSubscriberMayReadStore(t *testing.T) {
	s := NewStore()

	var seen int
	s.Subscribe(EntityTask, func() {
		// Callbacks run outside the store lock, so reads are safe.
		seen = len(s.Tasks(1))
	})

	s.Upsert(EntityTask, WrapTask(models.Task{ID: 1, ProjectID: 1, Status: models.StatusTodo}))
	if seen != 1 {
		t.Fatalf("subscriber saw %d tasks, want 1", seen)
	}
}

func TestStoreReassignProject(t *testing.T) {
	s := NewStore()
	s.Upsert(EntityTask, WrapTask(models.Task{ID: -5, ProjectID: -1, Status: models.StatusTodo}))
	s.Upsert(EntityMessage, WrapMessage(models.Message{ID: -6, ProjectID: -1, Content: "hi", CreatedAt: time.Now()}))
	s.Upsert(EntityTask, WrapTask(models.Task{ID: 2, ProjectID: 3, Status: models.StatusTodo}))

	s.ReassignProject(-1, 42)

	task, _ := s.Task(-5)
	if task.ProjectID != 42 {
		t.Errorf("task.ProjectID = %d, want 42", task.ProjectID)
	}
	msg, _ := s.Message(-6)
	if msg.ProjectID != 42 {
		t.Errorf("message.ProjectID = %d, want 42", msg.ProjectID)
	}
	other, _ := s.Task(2)
	if other.ProjectID != 3 {
		t.Errorf("unrelated task moved to project %d", other.ProjectID)
	}
}
