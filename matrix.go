package permkit

// MatrixCell is the derived state of one (role, resource, action, scope)
// cell as presented to the operator: the baseline reconciled with any
// pending toggle. Cells are computed on demand, never stored.
type MatrixCell struct {
	RoleID   string
	Resource string
	Action   string
	Scope    Scope

	// Granted is the effective state: baseline XOR pending toggle.
	Granted bool

	// Pending is true when an unsaved toggle targets this cell.
	Pending bool

	// Baseline is the last known-authoritative state of the cell.
	Baseline bool
}

// Matrix is a read-only projection of a session for presentation layers:
// rows of cells per resource, with staged-but-unsaved cells marked. It holds
// no state of its own; every read goes through the session.
type Matrix struct {
	session *Session
}

// Matrix returns the presentation projection of this session.
func (sess *Session) Matrix() *Matrix {
	return &Matrix{session: sess}
}

// Cell computes the derived state of a single cell.
func (m *Matrix) Cell(roleID, resource, action string, scope Scope) MatrixCell {
	sess := m.session
	sess.mu.Lock()
	defer sess.mu.Unlock()

	key := CellKey(roleID, resource, action, scope)
	_, inBaseline := sess.baseline[key]
	_, hasPending := sess.pending[key]

	return MatrixCell{
		RoleID:   roleID,
		Resource: resource,
		Action:   action,
		Scope:    scope,
		Granted:  inBaseline != hasPending,
		Pending:  hasPending,
		Baseline: inBaseline,
	}
}

// Row computes the all-scope cells of one resource for one role, in the
// resource's declared action order.
func (m *Matrix) Row(roleID, resource string) ([]MatrixCell, error) {
	res, err := m.session.catalog.GetResource(resource)
	if err != nil {
		return nil, err
	}

	cells := make([]MatrixCell, 0, len(res.Actions))
	for _, action := range res.Actions {
		cells = append(cells, m.Cell(roleID, resource, action, AllScope()))
	}
	return cells, nil
}

// Rows computes the all-scope cells of every catalog resource for one role.
func (m *Matrix) Rows(roleID string) ([][]MatrixCell, error) {
	resources := m.session.catalog.Resources()
	rows := make([][]MatrixCell, 0, len(resources))
	for _, res := range resources {
		row, err := m.Row(roleID, res.Name)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// InstanceCells returns the instance-scoped cells of a role that exist in
// the baseline or are staged, for rendering instance-level grants. The
// all-scope cells of Row do not include these.
func (m *Matrix) InstanceCells(roleID string) []MatrixCell {
	sess := m.session
	sess.mu.Lock()
	defer sess.mu.Unlock()

	seen := make(map[string]bool)
	var cells []MatrixCell

	appendCell := func(resource, action string, scope Scope) {
		if scope.Kind != ScopeInstance {
			return
		}
		key := CellKey(roleID, resource, action, scope)
		if seen[key] {
			return
		}
		seen[key] = true
		_, inBaseline := sess.baseline[key]
		_, hasPending := sess.pending[key]
		cells = append(cells, MatrixCell{
			RoleID:   roleID,
			Resource: resource,
			Action:   action,
			Scope:    scope,
			Granted:  inBaseline != hasPending,
			Pending:  hasPending,
			Baseline: inBaseline,
		})
	}

	for _, p := range sess.baseline {
		if p.RoleID == roleID {
			appendCell(p.Resource, p.Action, p.Scope())
		}
	}
	for _, e := range sess.pending {
		if e.RoleID == roleID {
			appendCell(e.Resource, e.Action, e.Scope)
		}
	}
	return cells
}

// Roles returns the baseline roles known to the session. Order is
// unspecified; callers sort at presentation time.
func (m *Matrix) Roles() []*Role {
	sess := m.session
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]*Role, 0, len(sess.roles))
	for _, r := range sess.roles {
		out = append(out, r)
	}
	return out
}
