package apimodels

// WorkspaceResponse is the response model for a workspace. Workspaces are
// not tied to an RBAC resource type: every authenticated user of a
// workspace may read it, so the model carries no owner and is never the
// subject of a permission check.
type WorkspaceResponse struct {
	BaseResponse
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (w *WorkspaceResponse) GetName() string   { return w.Name }
func (w *WorkspaceResponse) GetOwner() *UserRef { return nil }

func (w *WorkspaceResponse) Submodels() []ResponseModel { return nil }

func (w *WorkspaceResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *w
	return &out
}

func (w *WorkspaceResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &WorkspaceResponse{BaseResponse: redactedBase(w.BaseResponse, keepID)}
	if keepName {
		out.Name = w.Name
	}
	return out
}
