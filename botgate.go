package access

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// BotAction names the flow a verification token is minted for. The verify
// endpoint checks the token was issued for the expected action.
type BotAction = string

const (
	ActionLogin         BotAction = "login"
	ActionSignup        BotAction = "signup"
	ActionAccessRequest BotAction = "access_request"
	ActionContact       BotAction = "contact"
)

// TokenSource mints single-use proof-of-humanity tokens. Load initializes
// the underlying verification client; Token must only be called after a
// successful Load.
type TokenSource interface {
	Load(ctx context.Context) error
	Token(ctx context.Context, action BotAction) (string, error)
}

// gateInit guards the one-time source initialization. The verification
// client is process-wide: many Gate values may exist, the source loads once.
var gateInit struct {
	mu     sync.Mutex
	loaded bool
	err    error
}

// resetGateInit is a test hook.
func resetGateInit() {
	gateInit.mu.Lock()
	defer gateInit.mu.Unlock()
	gateInit.loaded = false
	gateInit.err = nil
}

// Gate obtains a proof token for a named action before a sensitive mutation
// proceeds. With no site key configured it hands out empty tokens so the
// surrounding flow still works without a verification backend; callers must
// treat an empty token as "verification skipped", not as a failure.
type Gate struct {
	siteKey string
	source  TokenSource
	logger  Logger
}

// GateOption customizes Gate construction.
type GateOption func(*Gate)

// WithGateLogger overrides the default logger.
func WithGateLogger(logger Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate builds a Gate for the given site key and token source.
func NewGate(siteKey string, source TokenSource, opts ...GateOption) *Gate {
	g := &Gate{
		siteKey: siteKey,
		source:  source,
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// EnsureLoaded initializes the verification source at most once per
// process. Safe to call from any number of flows; only the first call does
// work, later calls observe its outcome.
func (g *Gate) EnsureLoaded(ctx context.Context) error {
	if g.siteKey == "" || g.source == nil {
		return nil
	}

	gateInit.mu.Lock()
	defer gateInit.mu.Unlock()

	if gateInit.loaded {
		return gateInit.err
	}

	gateInit.loaded = true
	gateInit.err = g.source.Load(ctx)

	if gateInit.err != nil {
		g.logger.Warn("bot verification source load failed: %v", gateInit.err)
	}

	return gateInit.err
}

// Token returns a proof token for the action, or an empty token when no
// site key is configured. Source failures come back as normal errors for
// the caller to display; the gate itself never blocks the flow beyond the
// source's own readiness.
func (g *Gate) Token(ctx context.Context, action BotAction) (string, error) {
	if g.siteKey == "" || g.source == nil {
		return "", nil
	}

	if err := g.EnsureLoaded(ctx); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "verification backend unavailable")
	}

	token, err := g.source.Token(ctx, action)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "could not obtain verification token")
	}

	return token, nil
}

// TokenSourceFunc adapts a pair of functions to the TokenSource interface.
type TokenSourceFunc struct {
	LoadFunc  func(ctx context.Context) error
	TokenFunc func(ctx context.Context, action BotAction) (string, error)
}

func (f TokenSourceFunc) Load(ctx context.Context) error {
	if f.LoadFunc == nil {
		return nil
	}
	return f.LoadFunc(ctx)
}

func (f TokenSourceFunc) Token(ctx context.Context, action BotAction) (string, error) {
	if f.TokenFunc == nil {
		return "", nil
	}
	return f.TokenFunc(ctx, action)
}
