package apimodels

// StackComponentResponse is the response model for a registered stack
// component. Flavor and Connector are optional sub-resources: they are
// dropped entirely when the component is redacted.
type StackComponentResponse struct {
	BaseResponse
	Name          string                    `json:"name"`
	Type          ComponentType             `json:"type"`
	FlavorName    string                    `json:"flavor_name"`
	Configuration map[string]string         `json:"configuration,omitempty"`
	User          *UserRef                  `json:"user,omitempty"`
	Workspace     *WorkspaceResponse        `json:"workspace"`
	Flavor        *FlavorResponse           `json:"flavor,omitempty"`
	Connector     *ServiceConnectorResponse `json:"connector,omitempty"`
}

func (c *StackComponentResponse) GetName() string   { return c.Name }
func (c *StackComponentResponse) GetOwner() *UserRef { return c.User }

func (c *StackComponentResponse) Submodels() []ResponseModel {
	var subs []ResponseModel
	if c.Workspace != nil {
		subs = append(subs, c.Workspace)
	}
	if c.Flavor != nil {
		subs = append(subs, c.Flavor)
	}
	if c.Connector != nil {
		subs = append(subs, c.Connector)
	}
	return subs
}

func (c *StackComponentResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *c
	if c.Workspace != nil {
		out.Workspace = fn(c.Workspace).(*WorkspaceResponse)
	}
	if c.Flavor != nil {
		out.Flavor = fn(c.Flavor).(*FlavorResponse)
	}
	if c.Connector != nil {
		out.Connector = fn(c.Connector).(*ServiceConnectorResponse)
	}
	return &out
}

func (c *StackComponentResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &StackComponentResponse{
		BaseResponse: redactedBase(c.BaseResponse, keepID),
		Type:         ComponentTypeOrchestrator,
	}
	if keepName {
		out.Name = c.Name
	}
	if c.Workspace != nil {
		out.Workspace = c.Workspace.Redacted(false, false).(*WorkspaceResponse)
	}
	return out
}

// StackResponse is the response model for a stack. Components is a map
// keyed by component type; the dehydration contract requires the map (and
// the slices inside it) to be rebuilt with the same container kinds.
type StackResponse struct {
	BaseResponse
	Name        string                                     `json:"name"`
	Description string                                     `json:"description"`
	User        *UserRef                                   `json:"user,omitempty"`
	Workspace   *WorkspaceResponse                         `json:"workspace"`
	Components  map[ComponentType][]*StackComponentResponse `json:"components,omitempty"`
}

func (s *StackResponse) GetName() string   { return s.Name }
func (s *StackResponse) GetOwner() *UserRef { return s.User }

func (s *StackResponse) Submodels() []ResponseModel {
	var subs []ResponseModel
	if s.Workspace != nil {
		subs = append(subs, s.Workspace)
	}
	for _, components := range s.Components {
		for _, c := range components {
			if c != nil {
				subs = append(subs, c)
			}
		}
	}
	return subs
}

func (s *StackResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *s
	if s.Workspace != nil {
		out.Workspace = fn(s.Workspace).(*WorkspaceResponse)
	}
	if s.Components != nil {
		out.Components = make(map[ComponentType][]*StackComponentResponse, len(s.Components))
		for ct, components := range s.Components {
			mapped := make([]*StackComponentResponse, 0, len(components))
			for _, c := range components {
				if c == nil {
					continue
				}
				mapped = append(mapped, fn(c).(*StackComponentResponse))
			}
			out.Components[ct] = mapped
		}
	}
	return &out
}

func (s *StackResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &StackResponse{BaseResponse: redactedBase(s.BaseResponse, keepID)}
	if keepName {
		out.Name = s.Name
	}
	if s.Workspace != nil {
		out.Workspace = s.Workspace.Redacted(false, false).(*WorkspaceResponse)
	}
	return out
}
