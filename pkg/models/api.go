// pkg/models/api.go
package models

// Laravel-style validation error response
type ValidationErrorResponse struct {
	Message string              `json:"message" example:"Validation failed"`
	Errors  map[string][]string `json:"errors"`
}

// Generic error response (401/404/500)
type ErrorResponse struct {
	Error   bool   `json:"error" example:"true"`
	Message string `json:"message" example:"Forbidden"`
	Code    string `json:"code,omitempty" example:"FORBIDDEN"`
}

// Flash is the one-shot message shown on the page the client is sent to.
type Flash struct {
	Type    string `json:"type" example:"success"`
	Message string `json:"message" example:"Hearing added successfully"`
}

// ActionResponse ends every mutating action: where to go next and what to tell the user.
type ActionResponse struct {
	Redirect string `json:"redirect" example:"/cases/2f1c..."`
	Flash    Flash  `json:"flash"`
	ID       string `json:"id,omitempty"`
}

// Page wraps one page of a listing.
type Page[T any] struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
	Items    []T   `json:"items"`
}
