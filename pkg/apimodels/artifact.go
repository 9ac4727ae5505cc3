package apimodels

// ArtifactResponse is the response model for a produced artifact.
type ArtifactResponse struct {
	BaseResponse
	Name      string             `json:"name"`
	URI       string             `json:"uri"`
	Type      ArtifactType       `json:"type"`
	DataType  string             `json:"data_type"`
	User      *UserRef           `json:"user,omitempty"`
	Workspace *WorkspaceResponse `json:"workspace"`
}

func (a *ArtifactResponse) GetName() string   { return a.Name }
func (a *ArtifactResponse) GetOwner() *UserRef { return a.User }

func (a *ArtifactResponse) Submodels() []ResponseModel {
	var subs []ResponseModel
	if a.Workspace != nil {
		subs = append(subs, a.Workspace)
	}
	return subs
}

func (a *ArtifactResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *a
	if a.Workspace != nil {
		out.Workspace = fn(a.Workspace).(*WorkspaceResponse)
	}
	return &out
}

func (a *ArtifactResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &ArtifactResponse{
		BaseResponse: redactedBase(a.BaseResponse, keepID),
		Type:         ArtifactTypeData,
	}
	if keepName {
		out.Name = a.Name
	}
	if a.Workspace != nil {
		out.Workspace = a.Workspace.Redacted(false, false).(*WorkspaceResponse)
	}
	return out
}
