package sync

// Reconciler merges polled snapshots into the store without clobbering
// entities guarded by an in-flight mutation.
type Reconciler struct {
	store *Store
	gate  *Gate
}

// NewReconciler creates a reconciler over the store and gate.
func NewReconciler(store *Store, gate *Gate) *Reconciler {
	return &Reconciler{store: store, gate: gate}
}

// Apply merges a full snapshot of one resource. scope selects which store
// entities the snapshot is authoritative over (e.g. tasks of the polled
// project); entities outside the scope are never pruned. nil means the whole
// collection.
//
// Rules, per entity:
//   - in snapshot, no pending mutation: upsert unconditionally, server wins;
//   - in snapshot, pending mutation: skip this cycle, the mutation's
//     confirm/rollback is authoritative, not the stale snapshot;
//   - in store (and scope) but not in snapshot: removed by another actor
//     server-side, so remove locally — unless it is a pending create that the
//     server simply has not seen yet.
func (r *Reconciler) Apply(t EntityType, snapshot []Entity, scope func(Entity) bool) {
	seen := make(map[int64]bool, len(snapshot))
	for _, e := range snapshot {
		seen[e.EntityID()] = true
		if _, pending := r.gate.Pending(t, e.EntityID()); pending {
			continue
		}
		r.store.Upsert(t, e)
	}

	for _, e := range r.store.List(t, scope) {
		id := e.EntityID()
		if seen[id] {
			continue
		}
		if _, pending := r.gate.Pending(t, id); pending {
			// A pending create is local-only and must not be pruned before
			// confirmation; any other pending mutation settles authoritatively
			// on its own, so the stale snapshot does not get a vote either.
			continue
		}
		r.store.Remove(t, id)
	}
}
