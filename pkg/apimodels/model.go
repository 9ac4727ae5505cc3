package apimodels

// ModelResponse is the response model for a registered model.
type ModelResponse struct {
	BaseResponse
	Name          string                `json:"name"`
	License       string                `json:"license"`
	Description   string                `json:"description"`
	User          *UserRef              `json:"user,omitempty"`
	Workspace     *WorkspaceResponse    `json:"workspace"`
	LatestVersion *ModelVersionResponse `json:"latest_version,omitempty"`
}

func (m *ModelResponse) GetName() string   { return m.Name }
func (m *ModelResponse) GetOwner() *UserRef { return m.User }

func (m *ModelResponse) Submodels() []ResponseModel {
	var subs []ResponseModel
	if m.Workspace != nil {
		subs = append(subs, m.Workspace)
	}
	if m.LatestVersion != nil {
		subs = append(subs, m.LatestVersion)
	}
	return subs
}

func (m *ModelResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *m
	if m.Workspace != nil {
		out.Workspace = fn(m.Workspace).(*WorkspaceResponse)
	}
	if m.LatestVersion != nil {
		out.LatestVersion = fn(m.LatestVersion).(*ModelVersionResponse)
	}
	return &out
}

func (m *ModelResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &ModelResponse{BaseResponse: redactedBase(m.BaseResponse, keepID)}
	if keepName {
		out.Name = m.Name
	}
	if m.Workspace != nil {
		out.Workspace = m.Workspace.Redacted(false, false).(*WorkspaceResponse)
	}
	return out
}

// ModelVersionResponse is the response model for a model version. Model is
// a back-reference hydrated without its own LatestVersion, so the graph
// stays finite.
type ModelVersionResponse struct {
	BaseResponse
	Name        string              `json:"name"`
	Number      int                 `json:"number"`
	Stage       Stage               `json:"stage"`
	Description string              `json:"description"`
	User        *UserRef            `json:"user,omitempty"`
	Workspace   *WorkspaceResponse  `json:"workspace"`
	Model       *ModelResponse      `json:"model,omitempty"`
	Artifacts   []*ArtifactResponse `json:"artifacts,omitempty"`
}

func (v *ModelVersionResponse) GetName() string   { return v.Name }
func (v *ModelVersionResponse) GetOwner() *UserRef { return v.User }

func (v *ModelVersionResponse) Submodels() []ResponseModel {
	var subs []ResponseModel
	if v.Workspace != nil {
		subs = append(subs, v.Workspace)
	}
	if v.Model != nil {
		subs = append(subs, v.Model)
	}
	for _, a := range v.Artifacts {
		if a != nil {
			subs = append(subs, a)
		}
	}
	return subs
}

func (v *ModelVersionResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *v
	if v.Workspace != nil {
		out.Workspace = fn(v.Workspace).(*WorkspaceResponse)
	}
	if v.Model != nil {
		out.Model = fn(v.Model).(*ModelResponse)
	}
	if v.Artifacts != nil {
		out.Artifacts = make([]*ArtifactResponse, 0, len(v.Artifacts))
		for _, a := range v.Artifacts {
			if a == nil {
				continue
			}
			out.Artifacts = append(out.Artifacts, fn(a).(*ArtifactResponse))
		}
	}
	return &out
}

func (v *ModelVersionResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &ModelVersionResponse{BaseResponse: redactedBase(v.BaseResponse, keepID)}
	if keepName {
		out.Name = v.Name
	}
	if v.Workspace != nil {
		out.Workspace = v.Workspace.Redacted(false, false).(*WorkspaceResponse)
	}
	return out
}
