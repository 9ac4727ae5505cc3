package apimodels

// PipelineResponse is the response model for a pipeline.
type PipelineResponse struct {
	BaseResponse
	Name        string             `json:"name"`
	VersionHash string             `json:"version_hash"`
	User        *UserRef           `json:"user,omitempty"`
	Workspace   *WorkspaceResponse `json:"workspace"`
}

func (p *PipelineResponse) GetName() string   { return p.Name }
func (p *PipelineResponse) GetOwner() *UserRef { return p.User }

func (p *PipelineResponse) Submodels() []ResponseModel {
	var subs []ResponseModel
	if p.Workspace != nil {
		subs = append(subs, p.Workspace)
	}
	return subs
}

func (p *PipelineResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *p
	if p.Workspace != nil {
		out.Workspace = fn(p.Workspace).(*WorkspaceResponse)
	}
	return &out
}

func (p *PipelineResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &PipelineResponse{BaseResponse: redactedBase(p.BaseResponse, keepID)}
	if keepName {
		out.Name = p.Name
	}
	if p.Workspace != nil {
		out.Workspace = p.Workspace.Redacted(false, false).(*WorkspaceResponse)
	}
	return out
}

// PipelineRunResponse is the response model for a pipeline run. The
// pipeline and stack it references are sub-resources with their own
// permission checks: a caller may see a run without seeing the stack it
// executed on.
type PipelineRunResponse struct {
	BaseResponse
	Name      string             `json:"name"`
	Status    RunStatus          `json:"status"`
	User      *UserRef           `json:"user,omitempty"`
	Workspace *WorkspaceResponse `json:"workspace"`
	Pipeline  *PipelineResponse  `json:"pipeline,omitempty"`
	Stack     *StackResponse     `json:"stack,omitempty"`
}

func (r *PipelineRunResponse) GetName() string   { return r.Name }
func (r *PipelineRunResponse) GetOwner() *UserRef { return r.User }

func (r *PipelineRunResponse) Submodels() []ResponseModel {
	var subs []ResponseModel
	if r.Workspace != nil {
		subs = append(subs, r.Workspace)
	}
	if r.Pipeline != nil {
		subs = append(subs, r.Pipeline)
	}
	if r.Stack != nil {
		subs = append(subs, r.Stack)
	}
	return subs
}

func (r *PipelineRunResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *r
	if r.Workspace != nil {
		out.Workspace = fn(r.Workspace).(*WorkspaceResponse)
	}
	if r.Pipeline != nil {
		out.Pipeline = fn(r.Pipeline).(*PipelineResponse)
	}
	if r.Stack != nil {
		out.Stack = fn(r.Stack).(*StackResponse)
	}
	return &out
}

func (r *PipelineRunResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &PipelineRunResponse{
		BaseResponse: redactedBase(r.BaseResponse, keepID),
		Status:       RunStatusInitializing,
	}
	if keepName {
		out.Name = r.Name
	}
	if r.Workspace != nil {
		out.Workspace = r.Workspace.Redacted(false, false).(*WorkspaceResponse)
	}
	return out
}
