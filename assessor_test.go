package access_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	access "github.com/butlerian/go-access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessmentPassed(t *testing.T) {
	tests := []struct {
		name       string
		assessment *access.Assessment
		want       bool
	}{
		{"nil assessment", nil, false},
		{"invalid token", &access.Assessment{Valid: false, Score: 0.9}, false},
		{"score below threshold", &access.Assessment{Valid: true, Score: 0.3}, false},
		{"score at threshold", &access.Assessment{Valid: true, Score: 0.5}, true},
		{"score above threshold", &access.Assessment{Valid: true, Score: 0.9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.assessment.Passed(access.DefaultScoreThreshold))
		})
	}
}

func TestEnterpriseAssessorAssess(t *testing.T) {
	var gotPath, gotKey string
	var gotEvent struct {
		Event struct {
			Token          string `json:"token"`
			SiteKey        string `json:"siteKey"`
			ExpectedAction string `json:"expectedAction"`
		} `json:"event"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotEvent))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"tokenProperties": {"valid": true, "action": "login"},
			"riskAnalysis": {"score": 0.8}
		}`))
	}))
	defer server.Close()

	assessor := access.NewEnterpriseAssessor(
		"butlerian-prod",
		"api-key",
		"site-key",
		access.WithAssessorBaseURL(server.URL),
		access.WithAssessorLogger(testLogger{}),
	)

	result, err := assessor.Assess(context.Background(), "proof-token", access.ActionLogin)
	require.NoError(t, err)

	assert.Equal(t, "/projects/butlerian-prod/assessments", gotPath)
	assert.Equal(t, "api-key", gotKey)
	assert.Equal(t, "proof-token", gotEvent.Event.Token)
	assert.Equal(t, "site-key", gotEvent.Event.SiteKey)
	assert.Equal(t, "login", gotEvent.Event.ExpectedAction)

	assert.True(t, result.Valid)
	assert.InDelta(t, 0.8, result.Score, 0.001)
	assert.Equal(t, "login", result.Action)
	assert.True(t, result.Passed(access.DefaultScoreThreshold))
}

func TestEnterpriseAssessorRejectsOnAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"message": "API key invalid"}}`))
	}))
	defer server.Close()

	assessor := access.NewEnterpriseAssessor(
		"butlerian-prod",
		"bad-key",
		"site-key",
		access.WithAssessorBaseURL(server.URL),
		access.WithAssessorLogger(testLogger{}),
	)

	result, err := assessor.Assess(context.Background(), "proof-token", access.ActionLogin)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Valid)
	assert.False(t, result.Passed(access.DefaultScoreThreshold))
}

func TestEnterpriseAssessorSurfacesTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	assessor := access.NewEnterpriseAssessor(
		"butlerian-prod",
		"api-key",
		"site-key",
		access.WithAssessorBaseURL(server.URL),
		access.WithAssessorLogger(testLogger{}),
	)

	_, err := assessor.Assess(context.Background(), "proof-token", access.ActionLogin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assessment request failed")
}
