package authn

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/expopass/expopass-auth/pkg/token"
)

// Error type constants. These four are the only outcomes a failed login
// exposes; invalid_credentials and account_blocked deliberately do not
// say which underlying condition produced them.
const (
	ErrorTypeInvalidCredentials = "invalid_credentials"
	ErrorTypeAccountBlocked     = "account_blocked"
	ErrorTypeAccountNotVerified = "account_not_verified"
	ErrorTypeInternalError      = "internal_error"
)

// LoginRequest contains the validated data for a login attempt
type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool
	IPAddress  string
	UserAgent  string
}

// Validate checks the request for required fields
func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// User is the public-safe projection of an authenticated account
type User struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Result contains the result of a login operation
type Result struct {
	Success       bool
	User          User
	Tokens        token.Pair
	SessionID     uuid.UUID
	ErrorResponse *Error
}

// Error represents a structured login failure
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func invalidCredentialsResult() Result {
	return Result{ErrorResponse: &Error{
		Type:    ErrorTypeInvalidCredentials,
		Message: "Invalid email or password",
	}}
}

func accountBlockedResult() Result {
	return Result{ErrorResponse: &Error{
		Type:    ErrorTypeAccountBlocked,
		Message: "Account access is blocked",
	}}
}

func accountNotVerifiedResult() Result {
	return Result{ErrorResponse: &Error{
		Type:    ErrorTypeAccountNotVerified,
		Message: "Account email is not verified",
	}}
}

func internalErrorResult() Result {
	return Result{ErrorResponse: &Error{
		Type:    ErrorTypeInternalError,
		Message: "Unable to process login request",
	}}
}
