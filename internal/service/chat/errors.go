package chat

import "errors"

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNoActiveThread     = errors.New("no active thread")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrThreadIDsExhausted = errors.New("no free thread id left in this session")
)

const (
	missingCredentialsMessage = "Please enter both username and password"
	loginFailedMessage        = "Login failed. Please check your credentials."
	queryFailedMessage        = "Failed to process query. Please try again."
)

// AuthError reports a rejected or failed login. The session stays
// unauthenticated.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// DisplayMessage renders err for the sidebar.
func DisplayMessage(err error) string {
	var authErr *AuthError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredentials):
		return missingCredentialsMessage
	case errors.As(err, &authErr):
		return authErr.Message
	default:
		return err.Error()
	}
}
