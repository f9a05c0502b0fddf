package access_test

import (
	"testing"

	access "github.com/butlerian/go-access"
	"github.com/stretchr/testify/assert"
)

func TestAccessRequestEnsureStatus(t *testing.T) {
	record := &access.AccessRequest{}
	record.EnsureStatus()
	assert.Equal(t, access.StatusPending, record.Status)

	record.Status = access.StatusApproved
	record.EnsureStatus()
	assert.Equal(t, access.StatusApproved, record.Status)

	var nilRecord *access.AccessRequest
	nilRecord.EnsureStatus()
	assert.False(t, nilRecord.IsApproved())
}

func TestValidStatus(t *testing.T) {
	assert.True(t, access.ValidStatus(access.StatusPending))
	assert.True(t, access.ValidStatus(access.StatusApproved))
	assert.True(t, access.ValidStatus(access.StatusRejected))
	assert.False(t, access.ValidStatus(""))
	assert.False(t, access.ValidStatus("banned"))
}

func TestUserAddMetadata(t *testing.T) {
	user := &access.User{}
	user.AddMetadata("product", access.DefaultProduct).AddMetadata("message", "hi")

	assert.Equal(t, access.DefaultProduct, user.Metadata["product"])
	assert.Equal(t, "hi", user.Metadata["message"])
}
