package rbac

import (
	"context"

	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

// Authorizer is the permission oracle consulted by the engine. Its
// implementation (policy engine, Kubernetes RBAC) lives outside this core.
type Authorizer interface {
	// CheckPermissions returns a per-resource verdict for the given user
	// and action. The returned map contains an entry for every requested
	// resource.
	CheckPermissions(ctx context.Context, user apimodels.UserRef, resources []Resource, action Action) (map[Resource]bool, error)

	// ListAllowedResourceIDs enumerates the instances of a resource type
	// the user may act on. full=true means unrestricted access to the
	// type, in which case ids is nil.
	ListAllowedResourceIDs(ctx context.Context, user apimodels.UserRef, rt ResourceType, action Action) (full bool, ids []uuid.UUID, err error)
}

// AllowAllAuthorizer grants every request. Used when authorization is
// delegated entirely to the deployment boundary.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) CheckPermissions(_ context.Context, _ apimodels.UserRef, resources []Resource, _ Action) (map[Resource]bool, error) {
	verdicts := make(map[Resource]bool, len(resources))
	for _, r := range resources {
		verdicts[r] = true
	}
	return verdicts, nil
}

func (AllowAllAuthorizer) ListAllowedResourceIDs(context.Context, apimodels.UserRef, ResourceType, Action) (bool, []uuid.UUID, error) {
	return true, nil, nil
}
