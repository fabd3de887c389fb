package permkit

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SessionState is the lifecycle state of an editing session.
type SessionState string

const (
	// SessionClean means no pending edits exist.
	SessionClean SessionState = "clean"

	// SessionDirty means one or more pending edits exist.
	SessionDirty SessionState = "dirty"

	// SessionApplying means a batch apply is in flight. Toggles arriving in
	// this window are queued and replayed after the batch settles.
	SessionApplying SessionState = "applying"
)

// EditKind discriminates the two pending edit variants.
type EditKind string

const (
	// EditGrant stages adding a permission.
	EditGrant EditKind = "grant"

	// EditRevoke stages removing a permission.
	EditRevoke EditKind = "revoke"
)

// PendingEdit is one staged toggle against the baseline. Edits are keyed by
// their (role, resource, action, scope) tuple: a later edit to the same cell
// supersedes the earlier one, and a toggle that returns a cell to its
// baseline state removes the edit entirely.
//
// Pending edits live only inside a session; they are never persisted.
type PendingEdit struct {
	Kind     EditKind
	RoleID   string
	Resource string
	Action   string
	Scope    Scope
}

func (e PendingEdit) cellKey() string {
	return CellKey(e.RoleID, e.Resource, e.Action, e.Scope)
}

// EditOutcome reports how a single pending edit fared during apply.
type EditOutcome struct {
	Edit PendingEdit

	// PermissionID is the created permission's ID for a grant, or the
	// baseline permission ID targeted by a revoke.
	PermissionID string

	// Err is nil when the edit reached the system of record.
	Err error
}

// ApplyResult is the per-edit outcome list of one apply cycle.
type ApplyResult struct {
	Outcomes []EditOutcome
	Failed   int
}

// Succeeded reports whether every edit in the batch reached the system of
// record.
func (r *ApplyResult) Succeeded() bool {
	return r.Failed == 0
}

// defaultApplyConcurrency bounds the apply fan-out. Edits target independent
// tuples, so they can be dispatched in parallel.
const defaultApplyConcurrency = 4

// toggleRequest is a queued toggle received while an apply was in flight.
type toggleRequest struct {
	RoleID   string
	Resource string
	Action   string
	Scope    Scope
}

// Session accumulates pending toggles against an immutable baseline snapshot
// of the role/permission state, computes the minimal diff, and applies it as
// an all-or-nothing-intent batch against the Store.
//
// A session assumes a single logical editor: toggles are synchronous
// in-memory transitions, and Apply is the only suspending operation. The
// baseline is owned exclusively by the session; refreshing it while edits
// are pending is a caller error (ErrStaleSession).
type Session struct {
	id      string
	store   Store
	catalog *Catalog
	service *Service // set when created through Service.NewSession

	mu           sync.Mutex
	state        SessionState
	closed       bool
	roles        map[string]*Role       // roleID -> role identity (baseline)
	baseline     map[string]*Permission // cell key -> permission (baseline)
	pending      map[string]PendingEdit // cell key -> staged edit
	queued       []toggleRequest        // toggles received while applying
	lastOutcomes []EditOutcome
	applyLimit   int
}

// NewSession opens an editing session over a Store, snapshotting the current
// role and permission state as the baseline.
func NewSession(ctx context.Context, store Store, catalog *Catalog) (*Session, error) {
	sess := &Session{
		id:         uuid.NewString(),
		store:      store,
		catalog:    catalog,
		state:      SessionClean,
		pending:    make(map[string]PendingEdit),
		applyLimit: defaultApplyConcurrency,
	}
	if err := sess.loadBaseline(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// NewSession opens an editing session backed by this service's database
// store. The session is registered so that DeleteRole can discard pending
// edits referencing a removed role.
func (s *Service) NewSession(ctx context.Context) (*Session, error) {
	sess, err := NewSession(ctx, s, s.catalog)
	if err != nil {
		return nil, err
	}
	sess.service = s
	s.registerSession(sess)
	return sess, nil
}

// ID returns the session identifier used for audit batch correlation.
func (sess *Session) ID() string {
	return sess.id
}

// State returns the current session state.
func (sess *Session) State() SessionState {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}

// PendingCount returns the number of staged edits.
func (sess *Session) PendingCount() int {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.pending)
}

// PendingEdits returns a copy of the staged edits. Order is unspecified;
// edits target independent tuples.
func (sess *Session) PendingEdits() []PendingEdit {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]PendingEdit, 0, len(sess.pending))
	for _, e := range sess.pending {
		out = append(out, e)
	}
	return out
}

// LastOutcomes returns the per-edit outcome list of the most recent apply.
func (sess *Session) LastOutcomes() []EditOutcome {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]EditOutcome, len(sess.lastOutcomes))
	copy(out, sess.lastOutcomes)
	return out
}

// SetApplyConcurrency bounds how many Store operations one apply dispatches
// at a time. Values below 1 reset the default.
func (sess *Session) SetApplyConcurrency(n int) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if n < 1 {
		n = defaultApplyConcurrency
	}
	sess.applyLimit = n
}

// EffectiveState reports whether the cell is granted as presented to the
// operator: the baseline state reconciled with any pending toggle. Pure
// read, no side effect.
func (sess *Session) EffectiveState(roleID, resource, action string, scope Scope) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.effectiveStateLocked(roleID, resource, action, scope)
}

func (sess *Session) effectiveStateLocked(roleID, resource, action string, scope Scope) bool {
	key := CellKey(roleID, resource, action, scope)
	_, inBaseline := sess.baseline[key]
	_, hasPending := sess.pending[key]
	return inBaseline != hasPending // XOR
}

// ToggleCell stages a toggle of one matrix cell. If the cell's effective
// state is granted the toggle stages a revoke, otherwise a grant. Toggling
// the same cell twice cancels out to a no-op, keeping the diff minimal.
//
// While an apply is in flight the toggle is queued and replayed against the
// post-apply baseline; it is never merged into the running batch.
func (sess *Session) ToggleCell(roleID, resource, action string, scope Scope) error {
	if err := sess.catalog.ValidateCell(resource, action, scope); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return NewError(ErrSessionClosed, "session is closed").WithRole(roleID)
	}

	role, ok := sess.roles[roleID]
	if !ok {
		return NewError(ErrNotFound, "role not in session baseline").WithRole(roleID)
	}
	if role.IsSystem {
		return NewError(ErrProtectedRole, "system role cells cannot be toggled").
			WithRole(roleID).
			WithRoleName(role.Name).
			WithCell(resource, action, scope)
	}

	if sess.state == SessionApplying {
		sess.queued = append(sess.queued, toggleRequest{
			RoleID:   roleID,
			Resource: resource,
			Action:   action,
			Scope:    scope,
		})
		return nil
	}

	sess.toggleLocked(roleID, resource, action, scope)
	return nil
}

func (sess *Session) toggleLocked(roleID, resource, action string, scope Scope) {
	key := CellKey(roleID, resource, action, scope)

	if _, exists := sess.pending[key]; exists {
		// Second toggle of the same cell: back to baseline, drop the edit.
		delete(sess.pending, key)
	} else {
		kind := EditGrant
		if _, inBaseline := sess.baseline[key]; inBaseline {
			kind = EditRevoke
		}
		sess.pending[key] = PendingEdit{
			Kind:     kind,
			RoleID:   roleID,
			Resource: resource,
			Action:   action,
			Scope:    scope,
		}
	}

	if len(sess.pending) == 0 {
		sess.state = SessionClean
	} else {
		sess.state = SessionDirty
	}
}

// Discard clears all pending and queued edits and returns to Clean. The
// baseline is untouched.
func (sess *Session) Discard() {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state == SessionApplying {
		// The in-flight batch keeps running; only the not-yet-applied edits
		// and the queue are dropped.
		sess.queued = nil
		return
	}
	sess.pending = make(map[string]PendingEdit)
	sess.queued = nil
	sess.state = SessionClean
}

// Refresh replaces the baseline with a fresh snapshot from the Store.
// Refreshing is only safe when the session is Clean; with pending edits the
// caller must Discard (or apply) first.
func (sess *Session) Refresh(ctx context.Context) error {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return NewError(ErrSessionClosed, "session is closed")
	}
	switch sess.state {
	case SessionApplying:
		sess.mu.Unlock()
		return NewError(ErrApplyInProgress, "cannot refresh while applying")
	case SessionDirty:
		sess.mu.Unlock()
		return NewError(ErrStaleSession, "discard or apply pending edits before refreshing")
	}
	sess.mu.Unlock()

	return sess.loadBaseline(ctx)
}

// Apply sends the minimal diff to the Store as one batch: every pending
// edit becomes exactly one AddPermission or RemovePermission call. The calls
// are dispatched concurrently (tuples are independent) and joined before
// Apply returns, so callers observe the batch as a single awaitable unit.
//
// On full success the baseline is replaced with the freshly fetched
// authoritative state and the session returns to Clean. On partial failure
// nothing is rolled back: the session returns to Dirty retaining exactly the
// failed edits, and the outcome list reports each edit individually.
func (sess *Session) Apply(ctx context.Context) (*ApplyResult, error) {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, NewError(ErrSessionClosed, "session is closed")
	}
	if sess.state == SessionApplying {
		sess.mu.Unlock()
		return nil, NewError(ErrApplyInProgress, "another apply is in flight")
	}
	if len(sess.pending) == 0 {
		sess.mu.Unlock()
		return &ApplyResult{}, nil
	}

	edits := make([]PendingEdit, 0, len(sess.pending))
	for _, e := range sess.pending {
		edits = append(edits, e)
	}

	// Resolve revoke targets against the baseline before releasing the lock:
	// the diff must reference the permission IDs the baseline knew about.
	revokeIDs := make(map[string]string, len(edits))
	for _, e := range edits {
		if e.Kind != EditRevoke {
			continue
		}
		if perm, ok := sess.baseline[e.cellKey()]; ok {
			revokeIDs[e.cellKey()] = perm.ID
		}
	}

	sess.state = SessionApplying
	limit := sess.applyLimit
	sess.mu.Unlock()

	ctx = WithSessionID(ctx, sess.id)

	outcomes := make([]EditOutcome, len(edits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, edit := range edits {
		g.Go(func() error {
			outcomes[i] = sess.applyEdit(gctx, edit, revokeIDs[edit.cellKey()])
			return nil
		})
	}
	_ = g.Wait() // outcomes carry the per-edit errors

	result := &ApplyResult{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Err != nil {
			result.Failed++
		}
	}

	sess.mu.Lock()
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		key := o.Edit.cellKey()
		delete(sess.pending, key)
		switch o.Edit.Kind {
		case EditGrant:
			sess.baseline[key] = &Permission{
				ID:            o.PermissionID,
				RoleID:        o.Edit.RoleID,
				Resource:      o.Edit.Resource,
				Action:        o.Edit.Action,
				ScopeKind:     o.Edit.Scope.Kind,
				ScopeInstance: o.Edit.Scope.Instance,
			}
		case EditRevoke:
			delete(sess.baseline, key)
		}
	}
	sess.lastOutcomes = outcomes
	if len(sess.pending) == 0 {
		sess.state = SessionClean
	} else {
		sess.state = SessionDirty
	}
	queued := sess.queued
	sess.queued = nil
	sess.mu.Unlock()

	if result.Succeeded() {
		// Replace the locally reconciled baseline with the system of
		// record's authoritative post-apply state. A failed re-fetch keeps
		// the reconciled baseline; the next Refresh resolves it.
		_ = sess.loadBaseline(ctx)
	}

	// Replay toggles queued during the apply against the settled baseline.
	sess.mu.Lock()
	for _, q := range queued {
		if _, ok := sess.roles[q.RoleID]; !ok {
			continue // role disappeared while applying
		}
		sess.toggleLocked(q.RoleID, q.Resource, q.Action, q.Scope)
	}
	sess.mu.Unlock()

	if sess.service != nil {
		sess.service.monitor.recordApply(len(edits), result.Failed)
	}

	return result, nil
}

func (sess *Session) applyEdit(ctx context.Context, edit PendingEdit, revokeID string) EditOutcome {
	outcome := EditOutcome{Edit: edit}

	switch edit.Kind {
	case EditGrant:
		perm, err := sess.store.AddPermission(ctx, edit.RoleID, edit.Resource, edit.Action, edit.Scope)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		outcome.PermissionID = perm.ID
	case EditRevoke:
		if revokeID == "" {
			outcome.Err = NewError(ErrNotFound, "no baseline permission for staged revoke").
				WithRole(edit.RoleID).
				WithCell(edit.Resource, edit.Action, edit.Scope)
			return outcome
		}
		outcome.PermissionID = revokeID
		if err := sess.store.RemovePermission(ctx, edit.RoleID, revokeID); err != nil {
			outcome.Err = err
			return outcome
		}
	default:
		outcome.Err = NewError(ErrValidation, "unknown edit kind")
	}
	return outcome
}

// Close releases the session. Pending edits are dropped and the session is
// unregistered from its service.
func (sess *Session) Close() {
	sess.mu.Lock()
	sess.closed = true
	sess.pending = make(map[string]PendingEdit)
	sess.queued = nil
	sess.mu.Unlock()

	if sess.service != nil {
		sess.service.unregisterSession(sess.id)
	}
}

// discardRole drops pending edits, queued toggles, and baseline entries for
// a role that no longer exists.
func (sess *Session) discardRole(roleID string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for key, e := range sess.pending {
		if e.RoleID == roleID {
			delete(sess.pending, key)
		}
	}
	kept := sess.queued[:0]
	for _, q := range sess.queued {
		if q.RoleID != roleID {
			kept = append(kept, q)
		}
	}
	sess.queued = kept
	for key, p := range sess.baseline {
		if p.RoleID == roleID {
			delete(sess.baseline, key)
		}
	}
	delete(sess.roles, roleID)

	if sess.state != SessionApplying {
		if len(sess.pending) == 0 {
			sess.state = SessionClean
		} else {
			sess.state = SessionDirty
		}
	}
}

// loadBaseline snapshots the authoritative role/permission state.
func (sess *Session) loadBaseline(ctx context.Context) error {
	roles, err := sess.store.ListRoles(ctx)
	if err != nil {
		return err
	}

	roleIndex := make(map[string]*Role, len(roles))
	baseline := make(map[string]*Permission)
	for _, role := range roles {
		roleIndex[role.ID] = role
		perms := role.Permissions
		if perms == nil {
			perms, err = sess.store.ListPermissions(ctx, role.ID)
			if err != nil {
				return err
			}
		}
		for _, p := range perms {
			baseline[p.CellKey()] = p
		}
	}

	sess.mu.Lock()
	sess.roles = roleIndex
	sess.baseline = baseline
	sess.mu.Unlock()
	return nil
}
