package access_test

import (
	"context"
	"errors"
	"testing"

	access "github.com/butlerian/go-access"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func accessStoreFixture(t *testing.T) (*access.TokenScopedAccessStore, *MockAccessRequests, access.TokenService, string, uuid.UUID) {
	t.Helper()

	tokens := access.NewTokenService([]byte("access-store-test-secret"), 1, "butlerian", nil, testLogger{})

	userID := uuid.New()
	raw, err := tokens.Generate(&access.User{ID: userID, Email: "person@example.com"})
	require.NoError(t, err)

	requests := &MockAccessRequests{}
	store := access.NewTokenScopedAccessStore(tokens, requests)

	return store, requests, tokens, raw, userID
}

func TestTokenScopedListByUser(t *testing.T) {
	store, requests, _, raw, userID := accessStoreFixture(t)

	records := []*access.AccessRequest{
		{ID: uuid.New(), UserID: userID, Product: access.DefaultProduct, Status: access.StatusPending},
	}
	requests.On("ListByUser", mock.Anything, userID).Return(records, nil).Once()

	got, err := store.ListByUser(context.Background(), raw, userID)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	requests.AssertExpectations(t)
}

func TestTokenScopedListByUserRejectsForeignToken(t *testing.T) {
	store, requests, _, raw, _ := accessStoreFixture(t)

	_, err := store.ListByUser(context.Background(), raw, uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token does not match queried user")

	requests.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything)
}

func TestTokenScopedListByUserRejectsGarbageToken(t *testing.T) {
	store, requests, _, _, userID := accessStoreFixture(t)

	_, err := store.ListByUser(context.Background(), "not-a-jwt", userID)
	require.Error(t, err)

	requests.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything)
}

func TestTokenScopedRequestNormalizesErrors(t *testing.T) {
	store, requests, _, _, userID := accessStoreFixture(t)

	requests.On("Request", mock.Anything, userID, access.DefaultProduct, "please").
		Return(nil, errors.New("database locked")).Once()

	_, err := store.Request(context.Background(), userID, access.DefaultProduct, "please")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database locked")
}

func TestTokenScopedRequestInsertsPending(t *testing.T) {
	store, requests, _, _, userID := accessStoreFixture(t)

	record := &access.AccessRequest{
		ID:      uuid.New(),
		UserID:  userID,
		Product: access.DefaultProduct,
		Status:  access.StatusPending,
	}
	requests.On("Request", mock.Anything, userID, access.DefaultProduct, "").
		Return(record, nil).Once()

	got, err := store.Request(context.Background(), userID, access.DefaultProduct, "")
	require.NoError(t, err)
	assert.Equal(t, record, got)
}
