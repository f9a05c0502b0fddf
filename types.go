package access

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SessionStore is the authentication backend surface the Authority consumes.
// Implementations own credential storage and session lifecycle; the Authority
// never persists sessions itself.
type SessionStore interface {
	// GetSession returns the current session, or nil when none exists.
	GetSession(ctx context.Context) (*SessionObject, error)
	// GetUser performs a server-validated lookup for the session's user.
	// A locally held session can be stale; this round-trip is authoritative.
	GetUser(ctx context.Context, accessToken string) (*User, error)
	SignUp(ctx context.Context, input SignUpInput) (*SessionObject, error)
	SignInWithPassword(ctx context.Context, email, password string) (*SessionObject, error)
	SignOut(ctx context.Context) error
	// OnAuthStateChange registers a handler for session change events. The
	// handler receives nil when the session is destroyed. The returned
	// function unsubscribes the handler.
	OnAuthStateChange(handler AuthChangeHandler) (unsubscribe func())
}

// AuthChangeHandler receives session change events, nil on sign-out.
type AuthChangeHandler func(session *SessionObject)

// SignUpInput carries the profile supplied at sign-up. Product and Message
// are optional; when present the store creates the initial pending
// AccessRequest as part of registration.
type SignUpInput struct {
	Email      string
	Password   string
	FullName   string
	Occupation string
	Company    string
	Phone      string
	Product    string
	Message    string
}

// AccessReader is the read surface of the Access Request Store the Authority
// depends on. The access token must be the session's own token so a rapid
// sign-out/sign-in sequence cannot attach the fetch to a stale credential.
type AccessReader interface {
	ListByUser(ctx context.Context, accessToken string, userID uuid.UUID) ([]*AccessRequest, error)
}

// AccessWriter inserts new access requests.
type AccessWriter interface {
	Request(ctx context.Context, userID uuid.UUID, product, message string) (*AccessRequest, error)
}

// AccessStore combines the surfaces the Authority's operations need.
type AccessStore interface {
	AccessReader
	AccessWriter
}

// TokenService issues and validates the access tokens backing sessions.
type TokenService interface {
	Generate(user *User) (string, error)
	Validate(tokenString string) (*SessionClaims, error)
}

// Config holds token/session options for the local session backend.
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCESS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCESS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCESS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCESS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// clock is injectable for tests.
type clock func() time.Time
