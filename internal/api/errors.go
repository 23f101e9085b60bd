package api

import "fmt"

// NetworkError means the request never produced a response: DNS failure,
// refused connection, timeout. The cause is preserved for logging.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a response with a non-success status. Message comes from the
// server's error body; FieldErrors, when present, attributes the failure to
// individual input fields.
type ServerError struct {
	StatusCode  int
	Message     string
	FieldErrors map[string]string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.StatusCode)
}
