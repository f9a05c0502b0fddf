package access

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccessStatus is the lifecycle state of a product access request.
type AccessStatus = string

const (
	// StatusPending is the state every new request starts in.
	StatusPending AccessStatus = "pending"
	// StatusApproved grants the user entry to the product surface.
	StatusApproved AccessStatus = "approved"
	// StatusRejected denies the request; the user may request again.
	StatusRejected AccessStatus = "rejected"
)

// DefaultProduct is the only product currently open for access requests.
const DefaultProduct = "PHILO-001"

// User is the authenticated principal. Profile fields come from sign-up.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	FullName       string         `bun:"full_name,notnull" json:"full_name,omitempty"`
	Occupation     string         `bun:"occupation" json:"occupation,omitempty"`
	Company        string         `bun:"company" json:"company,omitempty"`
	Phone          string         `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"password_hash,omitempty"`
	EmailValidated bool           `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// AccessRequest is one user's request for one product. Requests are created
// as pending, moved by the approval workflow, and never deleted.
type AccessRequest struct {
	bun.BaseModel `bun:"table:product_access,alias:pacc"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID    `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User        `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Product       string       `bun:"product,notnull" json:"product,omitempty"`
	Status        AccessStatus `bun:"status,notnull" json:"status,omitempty"`
	Message       string       `bun:"message" json:"message,omitempty"`
	RequestedAt   *time.Time   `bun:"requested_at,nullzero,default:current_timestamp" json:"requested_at,omitempty"`
	ApprovedAt    *time.Time   `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus defaults a blank status to pending.
func (r *AccessRequest) EnsureStatus() {
	if r != nil && r.Status == "" {
		r.Status = StatusPending
	}
}

// IsApproved reports whether the request grants access.
func (r *AccessRequest) IsApproved() bool {
	return r != nil && r.Status == StatusApproved
}

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s AccessStatus) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}
