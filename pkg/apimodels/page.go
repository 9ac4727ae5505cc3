package apimodels

// Page is one page of a paginated list response.
type Page[M ResponseModel] struct {
	Index      int `json:"index"`
	MaxSize    int `json:"max_size"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
	Items      []M `json:"items"`
}

// WithItems returns a copy of the page with its items replaced.
func (p Page[M]) WithItems(items []M) Page[M] {
	out := p
	out.Items = items
	return out
}
