package workflow

import (
	"errors"
	"net/http"
)

// Rejection is a business-rule refusal raised inside a unit, such as editing
// a paid invoice. It rolls the unit back like any error, but its message is
// meant for the user and it is not logged as a failure.
type Rejection struct {
	Status  int
	Message string
}

func (r *Rejection) Error() string  { return r.Message }
func (r *Rejection) Expected() bool { return true }

// Reject builds a 409 Rejection.
func Reject(msg string) error { return &Rejection{Status: http.StatusConflict, Message: msg} }

// AsRejection extracts a Rejection from a unit error.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
