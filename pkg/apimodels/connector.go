package apimodels

// ServiceConnectorResponse is the response model for a service connector.
// The workspace is always present on a hydrated connector and stays
// present (redacted) on a permission-denied stand-in.
type ServiceConnectorResponse struct {
	BaseResponse
	Name          string             `json:"name"`
	ConnectorType string             `json:"connector_type"`
	AuthMethod    string             `json:"auth_method"`
	ResourceTypes []string           `json:"resource_types,omitempty"`
	User          *UserRef           `json:"user,omitempty"`
	Workspace     *WorkspaceResponse `json:"workspace"`
}

func (c *ServiceConnectorResponse) GetName() string   { return c.Name }
func (c *ServiceConnectorResponse) GetOwner() *UserRef { return c.User }

func (c *ServiceConnectorResponse) Submodels() []ResponseModel {
	var subs []ResponseModel
	if c.Workspace != nil {
		subs = append(subs, c.Workspace)
	}
	return subs
}

func (c *ServiceConnectorResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *c
	if c.Workspace != nil {
		out.Workspace = fn(c.Workspace).(*WorkspaceResponse)
	}
	return &out
}

func (c *ServiceConnectorResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &ServiceConnectorResponse{BaseResponse: redactedBase(c.BaseResponse, keepID)}
	if keepName {
		out.Name = c.Name
	}
	if c.Workspace != nil {
		out.Workspace = c.Workspace.Redacted(false, false).(*WorkspaceResponse)
	}
	return out
}
