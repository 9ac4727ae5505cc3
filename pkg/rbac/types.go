// Package rbac implements permission verification and response dehydration
// for the metadata store. It decides, per resource, whether the calling
// user may act on it, and rewrites response object graphs so that denied
// sub-resources are replaced by redacted stand-ins.
package rbac

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Action is the operation a caller wants to perform on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ResourceType classifies the entities subject to permission checks.
// Response models without a resource type (users, workspaces, runs,
// model versions) require no check of their own.
type ResourceType string

const (
	ResourceTypeStack            ResourceType = "stack"
	ResourceTypeStackComponent   ResourceType = "stack_component"
	ResourceTypeFlavor           ResourceType = "flavor"
	ResourceTypeServiceConnector ResourceType = "service_connector"
	ResourceTypePipeline         ResourceType = "pipeline"
	ResourceTypeSecret           ResourceType = "secret"
	ResourceTypeModel            ResourceType = "model"
	ResourceTypeArtifact         ResourceType = "artifact"
)

// Resource is the unit of authorization: a resource type plus an optional
// instance ID. A zero ID denotes a type-level check. Resource is a value
// type used as a map and set key.
type Resource struct {
	Type ResourceType
	ID   uuid.UUID
}

// String renders the resource as "type" or "type/id".
func (r Resource) String() string {
	if r.ID == uuid.Nil {
		return string(r.Type)
	}
	return fmt.Sprintf("%s/%s", r.Type, r.ID)
}

// ErrPermissionDenied is returned when the caller lacks permission to act
// on a top-level resource. Denied sub-resources never produce this error;
// they are redacted instead.
var ErrPermissionDenied = errors.New("insufficient permissions")

// deniedError wraps ErrPermissionDenied with the action and resource.
func deniedError(action Action, resource Resource) error {
	return fmt.Errorf("cannot %s resource %q: %w", action, resource, ErrPermissionDenied)
}
