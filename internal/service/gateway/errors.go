package gateway

import "errors"

// Error is the single failure shape of the gateway. Message carries the
// server response body when one was received, otherwise the transport
// error text.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// Message extracts the user-facing message of err. Errors that did not come
// from the gateway are rendered with err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return err.Error()
}
