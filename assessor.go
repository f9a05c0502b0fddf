package access

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultScoreThreshold is the minimum risk score a token must reach before
// the notify endpoint treats the caller as human.
const DefaultScoreThreshold = 0.5

// Assessment is the normalized outcome of a token risk check.
type Assessment struct {
	Valid  bool
	Score  float64
	Action string
}

// Passed reports whether the assessment clears the given threshold.
func (a *Assessment) Passed(threshold float64) bool {
	if a == nil {
		return false
	}
	return a.Valid && a.Score >= threshold
}

// Assessor scores a verification token against an expected action.
type Assessor interface {
	Assess(ctx context.Context, token, expectedAction string) (*Assessment, error)
}

// AssessorFunc adapts a function to the Assessor interface.
type AssessorFunc func(ctx context.Context, token, expectedAction string) (*Assessment, error)

func (f AssessorFunc) Assess(ctx context.Context, token, expectedAction string) (*Assessment, error) {
	return f(ctx, token, expectedAction)
}

// EnterpriseAssessor scores tokens through the reCAPTCHA Enterprise
// assessments API.
type EnterpriseAssessor struct {
	projectID string
	apiKey    string
	siteKey   string
	baseURL   string
	client    *http.Client
	logger    Logger
}

// EnterpriseAssessorOption customizes assessor construction.
type EnterpriseAssessorOption func(*EnterpriseAssessor)

// WithAssessorBaseURL overrides the assessments API endpoint (tests).
func WithAssessorBaseURL(baseURL string) EnterpriseAssessorOption {
	return func(a *EnterpriseAssessor) {
		if baseURL != "" {
			a.baseURL = baseURL
		}
	}
}

// WithAssessorHTTPClient overrides the transport.
func WithAssessorHTTPClient(client *http.Client) EnterpriseAssessorOption {
	return func(a *EnterpriseAssessor) {
		if client != nil {
			a.client = client
		}
	}
}

// WithAssessorLogger overrides the default logger.
func WithAssessorLogger(logger Logger) EnterpriseAssessorOption {
	return func(a *EnterpriseAssessor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewEnterpriseAssessor(projectID, apiKey, siteKey string, opts ...EnterpriseAssessorOption) *EnterpriseAssessor {
	a := &EnterpriseAssessor{
		projectID: projectID,
		apiKey:    apiKey,
		siteKey:   siteKey,
		baseURL:   "https://recaptchaenterprise.googleapis.com/v1",
		client:    http.DefaultClient,
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

type assessmentEvent struct {
	Token          string `json:"token"`
	SiteKey        string `json:"siteKey"`
	ExpectedAction string `json:"expectedAction"`
}

type assessmentRequest struct {
	Event assessmentEvent `json:"event"`
}

type assessmentResponse struct {
	TokenProperties struct {
		Valid  bool   `json:"valid"`
		Action string `json:"action"`
	} `json:"tokenProperties"`
	RiskAnalysis struct {
		Score float64 `json:"score"`
	} `json:"riskAnalysis"`
}

// Assess creates an assessment for the token. A malformed or rejected token
// comes back as a non-valid assessment, not an error; errors mean we could
// not reach or parse the API at all.
func (a *EnterpriseAssessor) Assess(ctx context.Context, token, expectedAction string) (*Assessment, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/assessments?key=%s", a.baseURL, a.projectID, a.apiKey)

	body, err := json.Marshal(assessmentRequest{
		Event: assessmentEvent{
			Token:          token,
			SiteKey:        a.siteKey,
			ExpectedAction: expectedAction,
		},
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode assessment request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build assessment request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "assessment request failed")
	}
	defer res.Body.Close()

	var parsed assessmentResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode assessment response")
	}

	if res.StatusCode != http.StatusOK {
		a.logger.Warn("assessment API returned status %d", res.StatusCode)
		return &Assessment{Valid: false}, nil
	}

	return &Assessment{
		Valid:  parsed.TokenProperties.Valid,
		Score:  parsed.RiskAnalysis.Score,
		Action: parsed.TokenProperties.Action,
	}, nil
}
