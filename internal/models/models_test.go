package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"todo", StatusTodo, false},
		{"in_progress", StatusInProgress, false},
		{"done", StatusDone, false},
		{"archived", "", true},
		{"", "", true},
		{"TODO", "", true},
	}

	for _, tc := range cases {
		got, err := ParseStatus(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseStatus(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStatus(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTaskUnmarshalRejectsUnknownStatus(t *testing.T) {
	payload := `{"id": 1, "project_id": 2, "title": "x", "status": "blocked"}`
	var task Task
	if err := json.Unmarshal([]byte(payload), &task); err == nil {
		t.Fatalf("expected unmarshal to reject status %q, got task %+v", "blocked", task)
	}

	payload = `{"id": 1, "project_id": 2, "title": "x", "status": "in_progress"}`
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		t.Fatalf("unexpected error for valid status: %v", err)
	}
	if task.Status != StatusInProgress {
		t.Fatalf("status = %q, want %q", task.Status, StatusInProgress)
	}
}

func TestTaskOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	laterToday := now.Add(2 * time.Hour)

	if (Task{}).Overdue(now) {
		t.Error("task without due date should not be overdue")
	}
	if !(Task{DueDate: &yesterday}).Overdue(now) {
		t.Error("task due yesterday should be overdue")
	}
	if (Task{DueDate: &laterToday}).Overdue(now) {
		t.Error("task due later today should not be overdue")
	}
}
