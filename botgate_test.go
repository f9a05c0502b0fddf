package access_test

import (
	"context"
	"errors"
	"testing"

	access "github.com/butlerian/go-access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateWithoutSiteKeySkipsVerification(t *testing.T) {
	access.ResetGateInit()

	loadCalls := 0
	source := access.TokenSourceFunc{
		LoadFunc: func(ctx context.Context) error {
			loadCalls++
			return nil
		},
		TokenFunc: func(ctx context.Context, action access.BotAction) (string, error) {
			return "should-not-happen", nil
		},
	}

	gate := access.NewGate("", source, access.WithGateLogger(testLogger{}))

	token, err := gate.Token(context.Background(), access.ActionLogin)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Zero(t, loadCalls)
}

func TestGateLoadsSourceOncePerProcess(t *testing.T) {
	access.ResetGateInit()

	loadCalls := 0
	source := access.TokenSourceFunc{
		LoadFunc: func(ctx context.Context) error {
			loadCalls++
			return nil
		},
		TokenFunc: func(ctx context.Context, action access.BotAction) (string, error) {
			return "proof-" + action, nil
		},
	}

	first := access.NewGate("site-key", source, access.WithGateLogger(testLogger{}))
	second := access.NewGate("site-key", source, access.WithGateLogger(testLogger{}))

	token, err := first.Token(context.Background(), access.ActionSignup)
	require.NoError(t, err)
	assert.Equal(t, "proof-signup", token)

	token, err = second.Token(context.Background(), access.ActionContact)
	require.NoError(t, err)
	assert.Equal(t, "proof-contact", token)

	require.NoError(t, first.EnsureLoaded(context.Background()))
	assert.Equal(t, 1, loadCalls)
}

func TestGateSurfacesLoadFailure(t *testing.T) {
	access.ResetGateInit()

	loadErr := errors.New("script blocked")
	source := access.TokenSourceFunc{
		LoadFunc: func(ctx context.Context) error {
			return loadErr
		},
	}

	gate := access.NewGate("site-key", source, access.WithGateLogger(testLogger{}))

	_, err := gate.Token(context.Background(), access.ActionLogin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification backend unavailable")

	// The failed load outcome is sticky for the process.
	_, err = gate.Token(context.Background(), access.ActionLogin)
	require.Error(t, err)
}

func TestGateWrapsTokenFailure(t *testing.T) {
	access.ResetGateInit()

	tokenErr := errors.New("widget not ready")
	source := access.TokenSourceFunc{
		TokenFunc: func(ctx context.Context, action access.BotAction) (string, error) {
			return "", tokenErr
		},
	}

	gate := access.NewGate("site-key", source, access.WithGateLogger(testLogger{}))

	_, err := gate.Token(context.Background(), access.ActionAccessRequest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not obtain verification token")
}
