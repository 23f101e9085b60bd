package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"teamboard/internal/api"
	"teamboard/internal/models"
)

// fakeServer is a minimal in-memory backend speaking the wire protocol.
type fakeServer struct {
	mu       stdsync.Mutex
	nextID   int64
	tasks    map[int64]models.Task
	requests []string

	// patchTask, when set, overrides the PATCH handler response.
	patchTask http.HandlerFunc
	// block, when non-nil, is received from before any handler answers.
	block chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{nextID: 100, tasks: map[int64]models.Task{}}
}

func (f *fakeServer) record(r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()
}

func (f *fakeServer) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// handler routes by hand because Go 1.21's ServeMux has no method or
// wildcard patterns.
func (f *fakeServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		switch {
		case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "projects" && parts[2] == "tasks":
			f.record(r)
			f.waitIfBlocked()
			f.mu.Lock()
			tasks := make([]models.Task, 0, len(f.tasks))
			for _, t := range f.tasks {
				tasks = append(tasks, t)
			}
			f.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{"tasks": tasks})
		case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "projects" && parts[2] == "messages":
			f.record(r)
			json.NewEncoder(w).Encode(map[string]any{"messages": []models.Message{}})
		case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "projects" && parts[2] == "tasks":
			f.record(r)
			f.waitIfBlocked()
			var body struct {
				Title       string `json:"title"`
				Description string `json:"description"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			id := f.nextID
			f.nextID++
			t := models.Task{ID: id, ProjectID: 1, Title: body.Title, Description: body.Description, Status: models.StatusTodo}
			f.tasks[id] = t
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(t)
		case r.Method == http.MethodPatch && len(parts) == 2 && parts[0] == "tasks":
			f.record(r)
			f.waitIfBlocked()
			if f.patchTask != nil {
				f.patchTask(w, r)
				return
			}
			var id int64
			fmt.Sscanf(parts[1], "%d", &id)
			var patch struct {
				Status *models.Status `json:"status"`
			}
			json.NewDecoder(r.Body).Decode(&patch)
			f.mu.Lock()
			t := f.tasks[id]
			if patch.Status != nil {
				t.Status = *patch.Status
			}
			f.tasks[id] = t
			f.mu.Unlock()
			json.NewEncoder(w).Encode(t)
		case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "projects" && parts[2] == "messages":
			f.record(r)
			var body struct {
				Content string `json:"content"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			id := f.nextID
			f.nextID++
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.Message{ID: id, ProjectID: 1, UserID: 7, UserName: "alice", Content: body.Content})
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeServer) waitIfBlocked() {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
}

func newTestSession(t *testing.T, fake *fakeServer) *Session {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewSession(SessionDeps{Client: api.New(srv.URL, nil)})
}

func TestCreateTaskConfirmAndPollIdempotent(t *testing.T) {
	fake := newFakeServer()
	s := newTestSession(t, fake)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, 1, "Write docs", "")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID != 100 {
		t.Fatalf("confirmed task id = %d, want 100", task.ID)
	}

	tasks := s.Tasks(1)
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks after confirm, want 1", len(tasks))
	}
	if tasks[0].ID != 100 {
		t.Errorf("surviving task id = %d, want server id 100", tasks[0].ID)
	}

	// The next poll returns the same task; merging must not duplicate it.
	if err := s.RefreshProject(ctx, 1); err != nil {
		t.Fatalf("RefreshProject: %v", err)
	}
	if n := len(s.Tasks(1)); n != 1 {
		t.Errorf("got %d tasks after poll merge, want 1", n)
	}
}

func TestUpdateTaskStatusBusyIssuesOneRequest(t *testing.T) {
	fake := newFakeServer()
	fake.tasks[5] = models.Task{ID: 5, ProjectID: 1, Title: "t", Status: models.StatusTodo}
	s := newTestSession(t, fake)
	ctx := context.Background()

	if err := s.RefreshProject(ctx, 1); err != nil {
		t.Fatalf("RefreshProject: %v", err)
	}
	baseline := fake.requestCount()

	block := make(chan struct{})
	fake.mu.Lock()
	fake.block = block
	fake.mu.Unlock()

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.UpdateTaskStatus(ctx, 5, models.StatusInProgress) }()

	// Wait for the first PATCH to reach the server.
	for fake.requestCount() == baseline {
		time.Sleep(time.Millisecond)
	}

	err := s.UpdateTaskStatus(ctx, 5, models.StatusDone)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second move: got %v, want ErrBusy", err)
	}
	if n := fake.requestCount(); n != baseline+1 {
		t.Errorf("server saw %d requests, want %d (rejected move must not hit the network)", n, baseline+1)
	}

	close(block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first move: %v", err)
	}
	tasks := s.Tasks(1)
	if tasks[0].Status != models.StatusInProgress {
		t.Errorf("status = %q, want %q", tasks[0].Status, models.StatusInProgress)
	}
}

func TestUpdateTaskStatusRollsBackOnServerError(t *testing.T) {
	fake := newFakeServer()
	fake.tasks[5] = models.Task{ID: 5, ProjectID: 1, Title: "t", Status: models.StatusTodo}
	fake.patchTask = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "database unavailable"})
	}
	s := newTestSession(t, fake)
	ctx := context.Background()

	if err := s.RefreshProject(ctx, 1); err != nil {
		t.Fatalf("RefreshProject: %v", err)
	}

	err := s.UpdateTaskStatus(ctx, 5, models.StatusDone)
	var se *api.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("got %T (%v), want *api.ServerError", err, err)
	}
	if se.Message != "database unavailable" {
		t.Errorf("server message = %q", se.Message)
	}

	tasks := s.Tasks(1)
	if tasks[0].Status != models.StatusTodo {
		t.Errorf("status after rollback = %q, want %q", tasks[0].Status, models.StatusTodo)
	}
	if s.Busy(EntityTask, 5) {
		t.Error("task still busy after settlement")
	}
}

func TestSendMessageEmptyContentNoRequest(t *testing.T) {
	fake := newFakeServer()
	s := newTestSession(t, fake)

	_, err := s.SendMessage(context.Background(), 1, "   ")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %T (%v), want *ValidationError", err, err)
	}
	if ve.Field != "content" {
		t.Errorf("ve.Field = %q, want content", ve.Field)
	}
	if n := fake.requestCount(); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
	if len(s.Messages(1)) != 0 {
		t.Error("rejected message left an optimistic entity behind")
	}
}

func TestSendMessageConfirmFillsAttribution(t *testing.T) {
	fake := newFakeServer()
	s := newTestSession(t, fake)

	msg, err := s.SendMessage(context.Background(), 1, "hello team")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.UserName != "alice" {
		t.Errorf("msg.UserName = %q, want alice", msg.UserName)
	}
	msgs := s.Messages(1)
	if len(msgs) != 1 || msgs[0].ID != msg.ID {
		t.Errorf("store messages = %+v", msgs)
	}
}

func TestCreateTaskEmptyTitle(t *testing.T) {
	fake := newFakeServer()
	s := newTestSession(t, fake)

	_, err := s.CreateTask(context.Background(), 1, "  ", "")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %T (%v), want *ValidationError", err, err)
	}
	if n := fake.requestCount(); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "field errors sorted and joined",
			err: &api.ServerError{StatusCode: 400, Message: "Validation failed", FieldErrors: map[string]string{
				"title": "is required",
				"due":   "is in the past",
			}},
			want: "due: is in the past; title: is required",
		},
		{
			name: "network error gets a friendly line",
			err:  &api.NetworkError{Err: errors.New("dial tcp: connection refused")},
			want: "could not reach the server",
		},
		{
			name: "server error without fields uses its message",
			err:  &api.ServerError{StatusCode: 500, Message: "database unavailable"},
			want: "database unavailable",
		},
		{
			name: "validation error",
			err:  &ValidationError{Field: "name", Message: "project name is required"},
			want: "name: project name is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureMessage(tt.err); got != tt.want {
				t.Errorf("FailureMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
