package web

// ListRequest carries the query parameters shared by the read endpoints.
// Owner scopes every lookup; type and state narrow the listing queries.
type ListRequest struct {
	Owner string `json:"owner" validate:"required"`
	Type  string `json:"type"  validate:"omitempty"`
	State string `json:"state" validate:"omitempty"`
}
