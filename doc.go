// Package permkit is a role-based access control administration core: it
// models resources, actions, scopes, permissions, and roles, and provides a
// staged-edit workflow for changing which role may perform which action on
// which resource.
//
// PermKit is the policy-administration side of RBAC only. It does not
// enforce permissions at request time, render UI, or manage sessions; it
// maintains the role/permission matrix and the safe batch-mutation protocol
// around it.
//
// # Core Concepts
//
// Catalog: the immutable reference data — resources, each with the ordered
// list of actions it supports. Every permission mutation is validated
// against it.
//
// Scope: the breadth of a grant. Either all instances of a resource, or one
// named instance. Modeled as a closed sum type (ScopeAll | ScopeInstance).
//
// Permission: a concrete grant of (resource, action, scope) to a role. The
// tuple is unique within a role.
//
// Role: a named bundle of permissions assignable to users. System roles
// (IsSystem) are protected: they cannot be deleted and their permission set
// cannot be changed through PermKit.
//
// Session: the staging engine. An operator toggles matrix cells against an
// immutable baseline snapshot; the effective state of every cell is computed
// as baseline XOR pending toggle, nothing is written until Apply. Apply
// computes the minimal diff (double-toggles cancel), issues one Store call
// per edit, and reports the outcome of every edit individually. On partial
// failure nothing is rolled back: the session keeps exactly the failed
// edits and stays Dirty.
//
// # Basic Usage
//
//	// 1. Define the catalog (at application startup)
//	catalog := permkit.NewCatalog()
//
//	catalog.DefineResource("node").
//	    Display("Nodes").
//	    Actions("read", "write", "delete").
//	    DefineResource("user").
//	    Display("Users").
//	    Actions("read", "write", "delete")
//
//	// 2. Create the service
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := permkit.NewService(catalog, db)
//
//	// 3. Run migrations and seed the built-in roles
//	db.Migrate(ctx, service.Migrations())
//	service.EnsureSystemRoles(ctx, []permkit.SystemRoleInput{
//	    {Name: "admin", DisplayName: "Administrator", Grants: []permkit.SystemGrant{
//	        {Resource: "node", Action: "read", Scope: permkit.AllScope()},
//	        {Resource: "node", Action: "write", Scope: permkit.AllScope()},
//	    }},
//	})
//
//	// 4. Stage and apply matrix edits
//	session, _ := service.NewSession(ctx)
//	session.ToggleCell(roleID, "node", "read", permkit.AllScope())
//	session.ToggleCell(roleID, "node", "write", permkit.InstanceScope("node-7"))
//
//	result, _ := session.Apply(ctx)
//	if !result.Succeeded() {
//	    for _, outcome := range result.Outcomes {
//	        if outcome.Err != nil {
//	            // the cell is still pending; retry or session.Discard()
//	        }
//	    }
//	}
//
// # Direct CRUD
//
// The Service also exposes the unstaged contracts directly: CreateRole,
// DeleteRole, GetRole, ListRoles, AddPermission, RemovePermission,
// ListPermissions, and the user-role assignment bookkeeping. All mutations
// respect the same validation and system-role protection rules the staging
// engine relies on.
//
// # Audit Log
//
// Every grant and revoke that reaches the system of record is logged with
// the actor, the cell, the staging session that batched it (if any), and
// request metadata (IP, user agent, request ID) taken from the context.
package permkit
