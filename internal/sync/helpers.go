package sync

import (
	"sort"

	"teamboard/internal/models"
)

func wrapProjects(ps []models.Project) []Entity {
	out := make([]Entity, len(ps))
	for i, p := range ps {
		out[i] = WrapProject(p)
	}
	return out
}

func wrapTasks(ts []models.Task) []Entity {
	out := make([]Entity, len(ts))
	for i, t := range ts {
		out[i] = WrapTask(t)
	}
	return out
}

func wrapMessages(ms []models.Message) []Entity {
	out := make([]Entity, len(ms))
	for i, m := range ms {
		out[i] = WrapMessage(m)
	}
	return out
}

func sortProjects(ps []models.Project) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}

func sortTasks(ts []models.Task) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}

// sortMessages orders by creation time ascending; ties (and optimistic
// messages sharing a timestamp) fall back to id order.
func sortMessages(ms []models.Message) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID < ms[j].ID
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}
