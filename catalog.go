package permkit

import (
	"context"
	"fmt"
	"sync"
)

// Resource is a protectable entity category (e.g. a node, a user) together
// with the ordered list of actions it supports. Resources are loaded once and
// are read-only for the lifetime of the catalog.
type Resource struct {
	Name        string
	DisplayName string
	Description string
	Actions     []string
}

// Action is an operation performable on a resource. Actions are
// resource-qualified: an action is only meaningful paired with a resource
// that declares it supported.
type Action struct {
	Name        string
	DisplayName string
	Description string
}

// Catalog holds the resource and action reference data the permission model
// is validated against. It is created at startup and should be treated as
// immutable after initialization.
type Catalog struct {
	mu            sync.RWMutex
	resources     map[string]*ResourceDefinition
	resourceOrder []string
	actions       map[string]*ActionDefinition
	actionOrder   []string
}

// ResourceDefinition defines a resource and the actions it supports.
type ResourceDefinition struct {
	name        string
	displayName string
	description string
	actions     []string
	catalog     *Catalog
}

// ActionDefinition defines an action identifier with display metadata.
type ActionDefinition struct {
	name        string
	displayName string
	description string
	catalog     *Catalog
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		resources: make(map[string]*ResourceDefinition),
		actions:   make(map[string]*ActionDefinition),
	}
}

// DefineAction starts defining an action identifier.
// Returns an ActionDefinition builder for fluent configuration.
//
// Example:
//
//	catalog.DefineAction("read").Display("Read").Describe("View the resource")
func (c *Catalog) DefineAction(name string) *ActionDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.actions[name]; ok {
		return existing
	}
	action := &ActionDefinition{name: name, catalog: c}
	c.actions[name] = action
	c.actionOrder = append(c.actionOrder, name)
	return action
}

// DefineResource starts defining a resource.
// Returns a ResourceDefinition builder for fluent configuration.
//
// Example:
//
//	catalog.DefineResource("node").
//	    Display("Nodes").
//	    Actions("read", "write", "delete")
func (c *Catalog) DefineResource(name string) *ResourceDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.resources[name]; ok {
		return existing
	}
	resource := &ResourceDefinition{name: name, catalog: c}
	c.resources[name] = resource
	c.resourceOrder = append(c.resourceOrder, name)
	return resource
}

// Resources returns all resources in definition order.
func (c *Catalog) Resources() []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Resource, 0, len(c.resourceOrder))
	for _, name := range c.resourceOrder {
		out = append(out, c.resources[name].snapshot())
	}
	return out
}

// Actions returns all actions in definition order.
func (c *Catalog) Actions() []Action {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Action, 0, len(c.actionOrder))
	for _, name := range c.actionOrder {
		def := c.actions[name]
		out = append(out, Action{Name: def.name, DisplayName: def.displayName, Description: def.description})
	}
	return out
}

// GetResource returns the resource by name.
func (c *Catalog) GetResource(name string) (Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.resources[name]
	if !ok {
		return Resource{}, NewError(ErrNotFound, fmt.Sprintf("resource %q not in catalog", name))
	}
	return def.snapshot(), nil
}

// Supports reports whether the resource declares the action.
func (c *Catalog) Supports(resource, action string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.resources[resource]
	if !ok {
		return false
	}
	for _, a := range def.actions {
		if a == action {
			return true
		}
	}
	return false
}

// ValidateCell checks that a (resource, action, scope) cell is well-formed:
// the resource exists, the resource declares the action, and the scope
// invariants hold.
func (c *Catalog) ValidateCell(resource, action string, scope Scope) error {
	c.mu.RLock()
	def, ok := c.resources[resource]
	c.mu.RUnlock()

	if !ok {
		return NewError(ErrNotFound, fmt.Sprintf("resource %q not in catalog", resource)).
			WithCell(resource, action, scope)
	}

	supported := false
	for _, a := range def.actions {
		if a == action {
			supported = true
			break
		}
	}
	if !supported {
		return NewError(ErrValidation, fmt.Sprintf("action %q not supported by resource %q", action, resource)).
			WithCell(resource, action, scope)
	}

	if err := scope.Validate(); err != nil {
		return err
	}
	return nil
}

// Display sets the resource display name.
func (r *ResourceDefinition) Display(displayName string) *ResourceDefinition {
	r.displayName = displayName
	return r
}

// Describe sets the resource description.
func (r *ResourceDefinition) Describe(description string) *ResourceDefinition {
	r.description = description
	return r
}

// Actions appends supported actions to the resource. Actions referenced here
// are registered in the catalog's action list if not already defined.
func (r *ResourceDefinition) Actions(actions ...string) *ResourceDefinition {
	for _, a := range actions {
		r.catalog.DefineAction(a)
	}
	r.catalog.mu.Lock()
	defer r.catalog.mu.Unlock()
	r.actions = append(r.actions, actions...)
	return r
}

// DefineResource continues defining resources on the catalog (fluent API).
func (r *ResourceDefinition) DefineResource(name string) *ResourceDefinition {
	return r.catalog.DefineResource(name)
}

// DefineAction continues defining actions on the catalog (fluent API).
func (r *ResourceDefinition) DefineAction(name string) *ActionDefinition {
	return r.catalog.DefineAction(name)
}

// Name returns the resource name.
func (r *ResourceDefinition) Name() string {
	return r.name
}

func (r *ResourceDefinition) snapshot() Resource {
	actions := make([]string, len(r.actions))
	copy(actions, r.actions)
	return Resource{
		Name:        r.name,
		DisplayName: r.displayName,
		Description: r.description,
		Actions:     actions,
	}
}

// Display sets the action display name.
func (a *ActionDefinition) Display(displayName string) *ActionDefinition {
	a.displayName = displayName
	return a
}

// Describe sets the action description.
func (a *ActionDefinition) Describe(description string) *ActionDefinition {
	a.description = description
	return a
}

// DefineAction continues defining actions on the catalog (fluent API).
func (a *ActionDefinition) DefineAction(name string) *ActionDefinition {
	return a.catalog.DefineAction(name)
}

// DefineResource continues defining resources on the catalog (fluent API).
func (a *ActionDefinition) DefineResource(name string) *ResourceDefinition {
	return a.catalog.DefineResource(name)
}

// Name returns the action name.
func (a *ActionDefinition) Name() string {
	return a.name
}

// CatalogProvider supplies resource and action reference data from an
// external system of record.
type CatalogProvider interface {
	ListResources(ctx context.Context) ([]Resource, error)
	ListActions(ctx context.Context) ([]Action, error)
}

// NewCatalogFromProvider builds a catalog from an external provider. The
// result is a point-in-time snapshot; the provider is not consulted again.
func NewCatalogFromProvider(ctx context.Context, provider CatalogProvider) (*Catalog, error) {
	actions, err := provider.ListActions(ctx)
	if err != nil {
		return nil, err
	}
	resources, err := provider.ListResources(ctx)
	if err != nil {
		return nil, err
	}

	catalog := NewCatalog()
	for _, a := range actions {
		catalog.DefineAction(a.Name).Display(a.DisplayName).Describe(a.Description)
	}
	for _, r := range resources {
		catalog.DefineResource(r.Name).
			Display(r.DisplayName).
			Describe(r.Description).
			Actions(r.Actions...)
	}
	return catalog, nil
}
