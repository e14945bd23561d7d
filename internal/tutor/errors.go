package tutor

// ValidationError reports invalid client input. No side effects are
// performed once one is raised.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError creates a ValidationError.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

// AuthorizationError reports a caller lacking the required role.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

// NewAuthorizationError creates an AuthorizationError.
func NewAuthorizationError(msg string) *AuthorizationError {
	return &AuthorizationError{Msg: msg}
}
