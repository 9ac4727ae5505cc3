package apimodels

// FlavorResponse is the response model for a stack component flavor.
type FlavorResponse struct {
	BaseResponse
	Name        string        `json:"name"`
	Type        ComponentType `json:"type"`
	Integration string        `json:"integration"`
	User        *UserRef      `json:"user,omitempty"`
}

func (f *FlavorResponse) GetName() string   { return f.Name }
func (f *FlavorResponse) GetOwner() *UserRef { return f.User }

func (f *FlavorResponse) Submodels() []ResponseModel { return nil }

func (f *FlavorResponse) MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel {
	out := *f
	return &out
}

func (f *FlavorResponse) Redacted(keepID, keepName bool) ResponseModel {
	out := &FlavorResponse{
		BaseResponse: redactedBase(f.BaseResponse, keepID),
		Type:         ComponentTypeOrchestrator,
	}
	if keepName {
		out.Name = f.Name
	}
	return out
}
