package rbac

import (
	"context"
	"fmt"

	authorizationv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

// APIGroup is the API group under which metadata-store resources are
// registered in Kubernetes RBAC.
const APIGroup = "metastore.mlfoundry.io"

// sarResources maps resource types to their Kubernetes resource names.
var sarResources = map[ResourceType]string{
	ResourceTypeStack:            "stacks",
	ResourceTypeStackComponent:   "stackcomponents",
	ResourceTypeFlavor:           "flavors",
	ResourceTypeServiceConnector: "serviceconnectors",
	ResourceTypePipeline:         "pipelines",
	ResourceTypeSecret:           "secrets",
	ResourceTypeModel:            "models",
	ResourceTypeArtifact:         "artifacts",
}

// sarVerbs maps actions to Kubernetes RBAC verbs.
var sarVerbs = map[Action]string{
	ActionCreate: "create",
	ActionRead:   "get",
	ActionUpdate: "update",
	ActionDelete: "delete",
}

// SARAuthorizer answers permission checks with Kubernetes
// SubjectAccessReview. Each resource in a batch is reviewed individually;
// wrap this authorizer with NewCachedAuthorizer to keep the API server
// call volume down.
type SARAuthorizer struct {
	client kubernetes.Interface
}

// NewSARAuthorizer creates a SARAuthorizer backed by the given client.
func NewSARAuthorizer(client kubernetes.Interface) *SARAuthorizer {
	return &SARAuthorizer{client: client}
}

func (s *SARAuthorizer) CheckPermissions(ctx context.Context, user apimodels.UserRef, resources []Resource, action Action) (map[Resource]bool, error) {
	verdicts := make(map[Resource]bool, len(resources))
	for _, r := range resources {
		allowed, err := s.review(ctx, user, r, action)
		if err != nil {
			return nil, err
		}
		verdicts[r] = allowed
	}
	return verdicts, nil
}

// ListAllowedResourceIDs answers with a type-level review: SAR cannot
// enumerate instances, so the verdict is all-or-nothing.
func (s *SARAuthorizer) ListAllowedResourceIDs(ctx context.Context, user apimodels.UserRef, rt ResourceType, action Action) (bool, []uuid.UUID, error) {
	full, err := s.review(ctx, user, Resource{Type: rt}, action)
	if err != nil {
		return false, nil, err
	}
	return full, nil, nil
}

func (s *SARAuthorizer) review(ctx context.Context, user apimodels.UserRef, r Resource, action Action) (bool, error) {
	resource, ok := sarResources[r.Type]
	if !ok {
		return false, fmt.Errorf("no Kubernetes resource mapped for type %q", r.Type)
	}

	sar := &authorizationv1.SubjectAccessReview{
		Spec: authorizationv1.SubjectAccessReviewSpec{
			User: user.Name,
			ResourceAttributes: &authorizationv1.ResourceAttributes{
				Group:    APIGroup,
				Resource: resource,
				Verb:     sarVerbs[action],
			},
		},
	}
	if r.ID != uuid.Nil {
		sar.Spec.ResourceAttributes.Name = r.ID.String()
	}

	review, err := s.client.AuthorizationV1().SubjectAccessReviews().Create(ctx, sar, metav1.CreateOptions{})
	if err != nil {
		return false, fmt.Errorf("SAR check for %q failed: %w", r, err)
	}
	return review.Status.Allowed, nil
}
