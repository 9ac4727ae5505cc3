package apimodels

// SecretResponse is the response model for a secret. Values may be masked
// by the serving layer before the response leaves the process; redaction
// always drops them entirely.
type SecretResponse struct {
	BaseResponse
	Name      string             `json:"name"`
	Scope     SecretScope        `json:"scope"`
	Values    map[string]string  `json:"values,omitempty"`
	User      *UserRef           `json:"user,omitempty"`
	Workspace *WorkspaceResponse `json:"workspace"`
}

func (s *SecretResponse) GetName() string   { return s.Name }
func (s *SecretResponse) GetOwner() *UserRef { return s.User }

func (s *SecretResponse) Submodels() []ResponseModel {
	var subs []ResponseModel
	if s.Workspace != nil {
		subs = append(subs, s.Workspace)
	}
	return subs
}

func (s *SecretResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *s
	if s.Workspace != nil {
		out.Workspace = fn(s.Workspace).(*WorkspaceResponse)
	}
	return &out
}

func (s *SecretResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &SecretResponse{
		BaseResponse: redactedBase(s.BaseResponse, keepID),
		Scope:        SecretScopeWorkspace,
	}
	if keepName {
		out.Name = s.Name
	}
	if s.Workspace != nil {
		out.Workspace = s.Workspace.Redacted(false, false).(*WorkspaceResponse)
	}
	return out
}

// Masked returns a copy of the secret with every value replaced by a
// placeholder, keeping the keys visible.
func (s *SecretResponse) Masked() *SecretResponse {
	out := *s
	if s.Values != nil {
		out.Values = make(map[string]string, len(s.Values))
		for k := range s.Values {
			out.Values[k] = "***"
		}
	}
	return &out
}
