package sync

// Notifier receives discrete user-facing events from the session. A toast or
// status-bar collaborator implements it; the core never renders anything
// itself.
type Notifier interface {
	EntityCreated(t EntityType, name string)
	EntityUpdated(t EntityType, id int64)
	MutationFailed(kind string, message string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) EntityCreated(EntityType, string) {}
func (NopNotifier) EntityUpdated(EntityType, int64)  {}
func (NopNotifier) MutationFailed(string, string)    {}
