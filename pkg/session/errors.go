package session

import "errors"

// Validation errors are returned before any storage access.
var (
	ErrEmailRequired    = errors.New("Email is required")
	ErrPasswordRequired = errors.New("Password is required")
	ErrInvalidEmail     = errors.New("Invalid email format")
	ErrPasswordTooShort = errors.New("Password must be at least 6 characters")
	ErrNameTooShort     = errors.New("Name must be at least 2 characters")
)

var (
	// ErrEmailTaken is returned by SignUp when the email is already registered.
	ErrEmailTaken = errors.New("An account with this email already exists")

	// ErrInvalidCredentials is returned by SignIn for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("Invalid email or password")

	// ErrCredentialMissing is returned by SignIn when the user exists but has no stored credential.
	ErrCredentialMissing = errors.New("Account credentials not found")

	// ErrNotAuthenticated is returned by collection operations without an active session.
	ErrNotAuthenticated = errors.New("User not authenticated")
)
