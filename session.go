package access

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionObject is the opaque credential bound to one user. It is created by
// sign-in/sign-up, destroyed by sign-out or expiry, and held exclusively by
// the Authority for the lifetime of the process.
type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Email          string         `json:"email,omitempty"`
	AccessToken    string         `json:"access_token,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetEmail() string {
	return s.Email
}

func (s *SessionObject) GetAccessToken() string {
	return s.AccessToken
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// Expired reports whether the session's token is past its expiry at t.
func (s *SessionObject) Expired(t time.Time) bool {
	if s == nil || s.ExpirationDate == nil {
		return false
	}
	return t.After(*s.ExpirationDate)
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s email=%s iat=%s data=%v",
		s.UserID,
		s.Email,
		issuedAt,
		s.Data,
	)
}

// sessionFromClaims builds a SessionObject for a validated token.
func sessionFromClaims(claims *SessionClaims, raw string) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToParseData
	}

	data := make(map[string]any)
	if len(claims.Metadata) > 0 {
		data["metadata"] = claims.Metadata
	}

	issuedAt := claims.GetIssuedAtTime()
	expiresAt := claims.GetExpiryTime()

	return &SessionObject{
		UserID:         claims.GetUserID(),
		Email:          claims.Email,
		AccessToken:    raw,
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}
