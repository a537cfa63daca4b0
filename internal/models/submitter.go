package models

// Submitter identifies who filed a form and for which store. It comes from the
// verified bearer token, never from the request body.
type Submitter struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	StoreID string `json:"store_id"`
}
