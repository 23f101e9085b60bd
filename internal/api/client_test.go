package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"teamboard/internal/models"
)

func TestListTasksWrappedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/7/tasks" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tasks": [
			{"id": 1, "project_id": 7, "title": "a", "status": "todo"},
			{"id": 2, "project_id": 7, "title": "b", "status": "done"}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	tasks, err := c.ListTasks(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[1].Status != models.StatusDone {
		t.Errorf("tasks[1].Status = %q, want done", tasks[1].Status)
	}
}

func TestRequestHeaders(t *testing.T) {
	var gotAuth, gotRequestID, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"projects": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, BearerToken("secret"))
	if _, err := c.ListProjects(context.Background()); err != nil {
		t.Fatalf("ListProjects: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret")
	}
	if gotRequestID == "" {
		t.Error("expected an X-Request-ID header on every request")
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

func TestServerErrorWithFieldErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "Validation failed", "field_errors": {"name": "is required"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.CreateProject(context.Background(), "", "")
	if err == nil {
		t.Fatal("expected error")
	}

	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ServerError, got %T: %v", err, err)
	}
	if se.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", se.StatusCode)
	}
	if se.Message != "Validation failed" {
		t.Errorf("Message = %q", se.Message)
	}
	if se.FieldErrors["name"] != "is required" {
		t.Errorf("FieldErrors = %v", se.FieldErrors)
	}
}

func TestServerErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetProject(context.Background(), 1)

	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ServerError, got %T: %v", err, err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", se.StatusCode)
	}
	if se.Message == "" {
		t.Error("expected a fallback message from the HTTP status")
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(srv.URL, nil)
	_, err := c.ListProjects(context.Background())

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
}

func TestDeleteProjectNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %q, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	if err := c.DeleteProject(context.Background(), 3); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
}

func TestPatchTaskSendsOnlyChangedFields(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		body = string(buf)
		w.Write([]byte(`{"id": 5, "project_id": 1, "title": "t", "status": "done"}`))
	}))
	defer srv.Close()

	status := models.StatusDone
	c := New(srv.URL, nil)
	task, err := c.PatchTask(context.Background(), 5, TaskPatch{Status: &status})
	if err != nil {
		t.Fatalf("PatchTask: %v", err)
	}
	if task.Status != models.StatusDone {
		t.Errorf("task.Status = %q, want done", task.Status)
	}
	if body != `{"status":"done"}` {
		t.Errorf("patch body = %s, want only the status field", body)
	}
}
