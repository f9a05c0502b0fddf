package access

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenScopedAccessStore exposes the product_access repository behind the
// AccessStore contract: reads are authorized by the session token they are
// made with, never by ambient state. A token that does not belong to the
// queried user is rejected, which is what protects a rapid sign-out/sign-in
// sequence from reading with a stale credential.
type TokenScopedAccessStore struct {
	tokens   TokenService
	requests AccessRequests
}

// NewTokenScopedAccessStore builds the adapter over a token service and the
// access request repository.
func NewTokenScopedAccessStore(tokens TokenService, requests AccessRequests) *TokenScopedAccessStore {
	return &TokenScopedAccessStore{
		tokens:   tokens,
		requests: requests,
	}
}

func (s *TokenScopedAccessStore) ListByUser(ctx context.Context, accessToken string, userID uuid.UUID) ([]*AccessRequest, error) {
	claims, err := s.tokens.Validate(accessToken)
	if err != nil {
		return nil, err
	}

	if claims.GetUserID() != userID.String() {
		return nil, goerrors.New("token does not match queried user", goerrors.CategoryAuthz).
			WithCode(goerrors.CodeUnauthorized)
	}

	records, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, NormalizeStoreError(err)
	}

	return records, nil
}

func (s *TokenScopedAccessStore) Request(ctx context.Context, userID uuid.UUID, product, message string) (*AccessRequest, error) {
	record, err := s.requests.Request(ctx, userID, product, message)
	if err != nil {
		return nil, NormalizeStoreError(err)
	}

	return record, nil
}

var _ AccessStore = (*TokenScopedAccessStore)(nil)
