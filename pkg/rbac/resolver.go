package rbac

import "github.com/mlfoundry/metastore/pkg/apimodels"

// ResourceTypeForModel maps a response model variant to its resource type.
// Returns false for variants that are not tied to any resource type and
// therefore require no permission check (workspaces, runs, versions).
func ResourceTypeForModel(m apimodels.ResponseModel) (ResourceType, bool) {
	switch m.(type) {
	case *apimodels.FlavorResponse:
		return ResourceTypeFlavor, true
	case *apimodels.ServiceConnectorResponse:
		return ResourceTypeServiceConnector, true
	case *apimodels.StackComponentResponse:
		return ResourceTypeStackComponent, true
	case *apimodels.StackResponse:
		return ResourceTypeStack, true
	case *apimodels.PipelineResponse:
		return ResourceTypePipeline, true
	case *apimodels.SecretResponse:
		return ResourceTypeSecret, true
	case *apimodels.ModelResponse:
		return ResourceTypeModel, true
	case *apimodels.ArtifactResponse:
		return ResourceTypeArtifact, true
	default:
		return "", false
	}
}

// ResourceForModel returns the Resource identifying a model instance, or
// false if the model's variant requires no permission check.
func ResourceForModel(m apimodels.ResponseModel) (Resource, bool) {
	rt, ok := ResourceTypeForModel(m)
	if !ok {
		return Resource{}, false
	}
	return Resource{Type: rt, ID: m.GetID()}, true
}
