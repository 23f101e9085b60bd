package sync

import (
	"context"
	stdsync "sync"
)

// MutationKind distinguishes the rollback behavior of a pending mutation.
type MutationKind int

const (
	MutationCreate MutationKind = iota
	MutationUpdate
	MutationDelete
)

func (k MutationKind) String() string {
	switch k {
	case MutationCreate:
		return "create"
	case MutationUpdate:
		return "update"
	case MutationDelete:
		return "delete"
	}
	return "unknown"
}

// RPC is the network half of a mutation. It is owned by the caller; the gate
// only cares about the authoritative entity it returns (nil for deletes).
type RPC func(ctx context.Context) (Entity, error)

type pendingKey struct {
	t  EntityType
	id int64
}

// pendingMutation records an in-flight optimistic change and the snapshot
// needed to undo it.
type pendingMutation struct {
	kind MutationKind
	prev Entity // ignored for creates
}

// Gate enforces at most one in-flight mutation per entity and performs the
// optimistic apply / confirm / rollback cycle against the store. It is the
// only writer the UI ever goes through; the reconciler consults it before
// merging polled snapshots.
type Gate struct {
	store *Store

	mu         stdsync.Mutex
	pending    map[pendingKey]pendingMutation
	nextTempID int64
}

// NewGate creates a gate over the given store.
func NewGate(store *Store) *Gate {
	return &Gate{
		store:   store,
		pending: map[pendingKey]pendingMutation{},
	}
}

// NextTempID hands out a fresh temporary id for an optimistic create.
// Temporary ids are negative; server ids are positive, so the two can never
// collide.
func (g *Gate) NextTempID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextTempID--
	return g.nextTempID
}

// Pending reports whether the entity is guarded by an in-flight mutation.
func (g *Gate) Pending(t EntityType, id int64) (MutationKind, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pm, ok := g.pending[pendingKey{t, id}]
	return pm.kind, ok
}

// begin registers a pending mutation, failing with ErrBusy if one exists.
func (g *Gate) begin(t EntityType, id int64, pm pendingMutation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := pendingKey{t, id}
	if _, exists := g.pending[key]; exists {
		return ErrBusy
	}
	g.pending[key] = pm
	return nil
}

// Mutation settlement always completes before the pending record clears, so a
// later submit or reconcile never sees a half-applied state. Each finish
// helper below does its store work first and deletes the pending entry last.

func (g *Gate) clear(t EntityType, id int64) {
	g.mu.Lock()
	delete(g.pending, pendingKey{t, id})
	g.mu.Unlock()
}

func (g *Gate) setSnapshot(t EntityType, id int64, prev Entity) {
	g.mu.Lock()
	key := pendingKey{t, id}
	pm := g.pending[key]
	pm.prev = prev
	g.pending[key] = pm
	g.mu.Unlock()
}

// Update optimistically applies a change to an existing entity, then runs the
// RPC. On success the server's authoritative copy replaces the optimistic one
// (including a temp-to-server id swap if the ids differ); on failure the
// pre-mutation snapshot is restored. The typed error from the RPC passes
// through to the caller after rollback completes.
func (g *Gate) Update(ctx context.Context, t EntityType, id int64, apply func(Entity) Entity, rpc RPC) error {
	// Guard first: once the pending record exists the reconciler skips this
	// id, so the snapshot taken next cannot be overtaken by a poll merge.
	if err := g.begin(t, id, pendingMutation{kind: MutationUpdate}); err != nil {
		return err
	}
	prev, ok := g.store.Get(t, id)
	if !ok {
		g.clear(t, id)
		return &ValidationError{Message: t.String() + " not found"}
	}
	g.setSnapshot(t, id, prev)

	g.store.Upsert(t, apply(prev))

	resp, err := rpc(ctx)
	if err != nil {
		g.store.Upsert(t, prev)
		g.clear(t, id)
		return err
	}

	g.confirm(t, id, resp)
	g.clear(t, id)
	return nil
}

// Create optimistically inserts temp (which must carry a temporary id from
// NextTempID), then runs the RPC. On success the temporary entity is replaced
// by the server's copy under its real id; on failure the temporary entity is
// purged. Returns the confirmed entity.
func (g *Gate) Create(ctx context.Context, t EntityType, temp Entity, rpc RPC) (Entity, error) {
	id := temp.EntityID()
	if err := g.begin(t, id, pendingMutation{kind: MutationCreate}); err != nil {
		return nil, err
	}

	g.store.Upsert(t, temp)

	resp, err := rpc(ctx)
	if err != nil {
		g.store.Remove(t, id)
		g.clear(t, id)
		return nil, err
	}

	g.confirm(t, id, resp)
	g.clear(t, id)
	return resp, nil
}

// Delete optimistically removes the entity, then runs the RPC (whose returned
// entity is ignored). On failure the removed entity is restored from the
// pre-delete snapshot.
func (g *Gate) Delete(ctx context.Context, t EntityType, id int64, rpc RPC) error {
	if err := g.begin(t, id, pendingMutation{kind: MutationDelete}); err != nil {
		return err
	}
	prev, ok := g.store.Get(t, id)
	if !ok {
		g.clear(t, id)
		return &ValidationError{Message: t.String() + " not found"}
	}
	g.setSnapshot(t, id, prev)

	g.store.Remove(t, id)

	if _, err := rpc(ctx); err != nil {
		g.store.Upsert(t, prev)
		g.clear(t, id)
		return err
	}

	g.clear(t, id)
	return nil
}

// confirm merges the server's authoritative entity. When the server assigned
// a new id (create confirmation), the optimistic record is removed and every
// local reference to the temporary id follows the swap.
func (g *Gate) confirm(t EntityType, localID int64, resp Entity) {
	if resp == nil {
		return
	}
	if resp.EntityID() != localID {
		g.store.Remove(t, localID)
		if t == EntityProject {
			g.store.ReassignProject(localID, resp.EntityID())
		}
	}
	g.store.Upsert(t, resp)
}
