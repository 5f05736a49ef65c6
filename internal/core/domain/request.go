package domain

// IdentifyRequest is one user submission of pill photos, created
// externally in the event store under requests/{id}. The pipeline never
// mutates it; its terminal state is the presence of a results subtree.
type IdentifyRequest struct {
	ID     string   `json:"id"`
	Images []string `json:"images"`
}
