package access_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	access "github.com/butlerian/go-access"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelaySendSuccess(t *testing.T) {
	var captured struct {
		Type           string                   `json:"type"`
		RecaptchaToken string                   `json:"recaptchaToken"`
		Data           *access.NotificationData `json:"data"`
	}
	var authHeader string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"score":0.9}`))
	}))
	defer ts.Close()

	relay := access.NewRelay(ts.URL, "service-key", access.WithRelayLogger(testLogger{}))

	result, err := relay.Send(context.Background(), access.TypeContact, "proof-token", &access.NotificationData{
		Name:    "Ada",
		Email:   "ada@example.com",
		Message: "hello",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.InDelta(t, 0.9, result.Score, 0.001)

	assert.Equal(t, "Bearer service-key", authHeader)
	assert.Equal(t, access.TypeContact, captured.Type)
	assert.Equal(t, "proof-token", captured.RecaptchaToken)
	require.NotNil(t, captured.Data)
	assert.Equal(t, "ada@example.com", captured.Data.Email)
}

func TestRelaySendVerificationRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Human verification failed"}`))
	}))
	defer ts.Close()

	relay := access.NewRelay(ts.URL, "service-key", access.WithRelayLogger(testLogger{}))

	_, err := relay.Send(context.Background(), access.TypeLoginVerify, "bot-token", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrVerificationFailed)
}

func TestRelaySendTimeoutAbortsRequest(t *testing.T) {
	started := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can notice the client disconnect and
		// cancel the request context; otherwise ts.Close deadlocks.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer ts.Close()

	relay := access.NewRelay(ts.URL, "service-key",
		access.WithRelayTimeout(50*time.Millisecond),
		access.WithRelayLogger(testLogger{}),
	)

	begin := time.Now()
	_, err := relay.Send(context.Background(), access.TypeContact, "proof-token", &access.NotificationData{})
	elapsed := time.Since(begin)

	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrRelayTimeout)
	// The window is enforced with cancellation, not a blocking wait.
	assert.Less(t, elapsed, 2*time.Second)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("server never saw the request")
	}
}

func TestRelaySendCallerCancellationIsNotATimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	relay := access.NewRelay(ts.URL, "service-key", access.WithRelayLogger(testLogger{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := relay.Send(ctx, access.TypeContact, "proof-token", &access.NotificationData{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, access.ErrRelayTimeout)
}

func TestRelaySendGatewayTimeoutStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer ts.Close()

	relay := access.NewRelay(ts.URL, "service-key", access.WithRelayLogger(testLogger{}))

	_, err := relay.Send(context.Background(), access.TypeSignup, "proof-token", &access.NotificationData{})
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrRelayTimeout)
}

func TestRelaySendDeliveryFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"mail provider down"}`))
	}))
	defer ts.Close()

	relay := access.NewRelay(ts.URL, "service-key", access.WithRelayLogger(testLogger{}))

	_, err := relay.Send(context.Background(), access.TypeAccessRequest, "proof-token", &access.NotificationData{})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, access.ErrDeliveryFailed.Message, richErr.Message)
	assert.Equal(t, "mail provider down", richErr.Metadata["response"])
}

func TestRelaySendErrorInSuccessBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"template missing"}`))
	}))
	defer ts.Close()

	relay := access.NewRelay(ts.URL, "service-key", access.WithRelayLogger(testLogger{}))

	_, err := relay.Send(context.Background(), access.TypeContact, "proof-token", &access.NotificationData{})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, access.ErrDeliveryFailed.Message, richErr.Message)
}

func TestRelaySendUnparseableResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer ts.Close()

	relay := access.NewRelay(ts.URL, "service-key", access.WithRelayLogger(testLogger{}))

	_, err := relay.Send(context.Background(), access.TypeContact, "proof-token", &access.NotificationData{})
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrUnknownResponse)
}
