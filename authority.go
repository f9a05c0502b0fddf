package access

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// AuthState is the Authority's in-memory aggregate. User and Session are
// both present or both nil. Access always holds the latest known set of
// rows for User, empty when User is nil. Loading is true only during
// bootstrap or between an auth-change event and its access-list fetch.
type AuthState struct {
	User    *User
	Session *SessionObject
	Access  []*AccessRequest
	Loading bool
}

// Authority is the single source of truth for "who is signed in and what may
// they access". It owns AuthState exclusively; every other component reads
// snapshots or calls the documented operations.
type Authority struct {
	mu       sync.Mutex
	state    AuthState
	seq      uint64
	sessions SessionStore
	store    AccessStore
	logger   Logger
	sink     ActivitySink

	unsubscribe func()
}

// AuthorityOption customizes Authority construction.
type AuthorityOption func(*Authority)

// WithAuthorityLogger overrides the default logger.
func WithAuthorityLogger(logger Logger) AuthorityOption {
	return func(a *Authority) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAuthorityActivitySink configures best-effort audit events.
func WithAuthorityActivitySink(sink ActivitySink) AuthorityOption {
	return func(a *Authority) {
		a.sink = normalizeActivitySink(sink)
	}
}

// NewAuthority creates an Authority over the given stores. Call Start to run
// the bootstrap protocol and begin consuming session change events.
func NewAuthority(sessions SessionStore, store AccessStore, opts ...AuthorityOption) *Authority {
	a := &Authority{
		state:    AuthState{Access: []*AccessRequest{}, Loading: true},
		sessions: sessions,
		store:    store,
		logger:   defLogger{},
		sink:     noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// Start runs the bootstrap protocol once and subscribes to the session
// store's change stream. A session found locally is never trusted without a
// server-side user lookup; stale sessions are cleaned up with a best-effort
// sign-out and resolve to the unauthenticated terminal.
func (a *Authority) Start(ctx context.Context) error {
	seq := a.beginTransition()

	session, err := a.sessions.GetSession(ctx)
	if err != nil {
		a.logger.Warn("authority bootstrap session lookup failed: %v", err)
		session = nil
	}

	if session == nil {
		a.apply(seq, nil, nil, nil)
	} else {
		user, err := a.sessions.GetUser(ctx, session.AccessToken)
		if err != nil || user == nil {
			// Session object exists but its user is gone server-side.
			a.logger.Info("authority discarding stale session for user %s", session.UserID)
			if err := a.sessions.SignOut(ctx); err != nil {
				a.logger.Debug("stale session sign out failed: %v", err)
			}
			a.apply(seq, nil, nil, nil)
		} else {
			a.apply(seq, user, session, a.fetchAccess(ctx, session, user.ID))
		}
	}

	a.unsubscribe = a.sessions.OnAuthStateChange(a.handleAuthChange)
	return nil
}

// Close unsubscribes from the session change stream.
func (a *Authority) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// handleAuthChange processes one session change event. Events are tagged
// with a monotonic sequence at receipt; a fetch whose sequence has been
// superseded by the time it resolves is discarded, and the superseding
// event's own resolution clears Loading.
func (a *Authority) handleAuthChange(session *SessionObject) {
	seq := a.beginTransition()

	if session == nil {
		a.apply(seq, nil, nil, nil)
		return
	}

	ctx := context.Background()
	user, err := a.sessions.GetUser(ctx, session.AccessToken)
	if err != nil || user == nil {
		a.logger.Warn("auth change user lookup failed for user %s, resolving unauthenticated", session.UserID)
		a.apply(seq, nil, nil, nil)
		return
	}

	a.apply(seq, user, session, a.fetchAccess(ctx, session, user.ID))
}

// fetchAccess lists access rows with the session's own token. A stale global
// token must never be attached to a newer user's fetch. Transport failures
// degrade to an empty list: absence of proof of access is never access.
func (a *Authority) fetchAccess(ctx context.Context, session *SessionObject, userID uuid.UUID) []*AccessRequest {
	records, err := a.store.ListByUser(ctx, session.AccessToken, userID)
	if err != nil {
		a.logger.Warn("access list fetch failed for user %s, defaulting to empty: %v", userID, err)
		return []*AccessRequest{}
	}
	if records == nil {
		records = []*AccessRequest{}
	}
	return records
}

func (a *Authority) beginTransition() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	a.state.Loading = true
	return a.seq
}

// apply installs a resolved state for the given sequence. Superseded
// sequences are dropped; the latest one always resolves Loading.
func (a *Authority) apply(seq uint64, user *User, session *SessionObject, records []*AccessRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if seq != a.seq {
		return
	}

	if records == nil {
		records = []*AccessRequest{}
	}

	a.state = AuthState{
		User:    user,
		Session: session,
		Access:  records,
		Loading: false,
	}
}

// State returns a snapshot of the current aggregate.
func (a *Authority) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()

	records := make([]*AccessRequest, len(a.state.Access))
	copy(records, a.state.Access)

	return AuthState{
		User:    a.state.User,
		Session: a.state.Session,
		Access:  records,
		Loading: a.state.Loading,
	}
}

// Loading reports whether a session resolution is in flight.
func (a *Authority) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Loading
}

// CurrentUser returns the authenticated user, nil when signed out.
func (a *Authority) CurrentUser() *User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.User
}

// SignUp delegates registration to the session store. It does not itself
// create an AccessRequest: callers either pass Product/Message metadata so
// the store creates the row, or follow up with RequestAccess. Both call
// patterns are supported.
func (a *Authority) SignUp(ctx context.Context, input SignUpInput) error {
	_, err := a.sessions.SignUp(ctx, input)
	if err != nil {
		return NormalizeStoreError(err)
	}

	a.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignUp,
		Actor:     ActorRef{Type: "user"},
		Metadata:  map[string]any{"email": input.Email, "product": input.Product},
	})

	return nil
}

// SignIn authenticates with email and password.
func (a *Authority) SignIn(ctx context.Context, email, password string) error {
	session, err := a.sessions.SignInWithPassword(ctx, email, password)
	if err != nil {
		a.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSignInFailure,
			Actor:     ActorRef{Type: "unknown"},
			Metadata:  map[string]any{"email": email},
		})
		return NormalizeStoreError(err)
	}

	a.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		Actor:     ActorRef{ID: session.UserID, Type: "user"},
		UserID:    session.UserID,
	})

	return nil
}

// SignOut destroys the session and unconditionally resets local state, so
// stale authenticated content never flashes while the store's own change
// event is in flight.
func (a *Authority) SignOut(ctx context.Context) error {
	err := a.sessions.SignOut(ctx)

	a.mu.Lock()
	a.seq++
	seq := a.seq
	a.mu.Unlock()
	a.apply(seq, nil, nil, nil)

	if err != nil {
		return NormalizeStoreError(err)
	}

	a.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignOut,
		Actor:     ActorRef{Type: "user"},
	})

	return nil
}

// RequestAccess inserts a pending row for (user, product) and re-reads the
// list from the store, so displayed state reflects the store's view
// including any server-side normalization. No optimistic local insert.
func (a *Authority) RequestAccess(ctx context.Context, product string) error {
	a.mu.Lock()
	user := a.state.User
	session := a.state.Session
	seq := a.seq
	a.mu.Unlock()

	if user == nil || session == nil {
		return ErrNotAuthenticated
	}

	if _, err := a.store.Request(ctx, user.ID, product, ""); err != nil {
		return NormalizeStoreError(err)
	}

	a.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAccessRequested,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Product:   product,
		ToStatus:  StatusPending,
	})

	a.replaceAccess(seq, a.fetchAccess(ctx, session, user.ID))
	return nil
}

// RefreshAccess re-fetches and replaces the local access list. No-op when
// unauthenticated.
func (a *Authority) RefreshAccess(ctx context.Context) error {
	a.mu.Lock()
	user := a.state.User
	session := a.state.Session
	seq := a.seq
	a.mu.Unlock()

	if user == nil || session == nil {
		return nil
	}

	a.replaceAccess(seq, a.fetchAccess(ctx, session, user.ID))
	return nil
}

// replaceAccess swaps the access list only if no auth transition happened in
// the meantime.
func (a *Authority) replaceAccess(seq uint64, records []*AccessRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if seq != a.seq {
		return
	}

	if records == nil {
		records = []*AccessRequest{}
	}
	a.state.Access = records
}

// HasAccess reports whether some request for product is approved.
func (a *Authority) HasAccess(product string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.state.Access {
		if r.Product == product && r.Status == StatusApproved {
			return true
		}
	}
	return false
}

// AccessStatus returns the status of the request matching product, and false
// when none exists. When multiple rows exist for the same product the newest
// RequestedAt wins, with ID ordering as the final tie-break, so repeated
// calls over unchanged state always agree.
func (a *Authority) AccessStatus(product string) (AccessStatus, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var match *AccessRequest
	for _, r := range a.state.Access {
		if r.Product != product {
			continue
		}
		if match == nil || newerRequest(r, match) {
			match = r
		}
	}

	if match == nil {
		return "", false
	}
	return match.Status, true
}

func newerRequest(a, b *AccessRequest) bool {
	switch {
	case a.RequestedAt == nil && b.RequestedAt == nil:
		return a.ID.String() > b.ID.String()
	case a.RequestedAt == nil:
		return false
	case b.RequestedAt == nil:
		return true
	case a.RequestedAt.Equal(*b.RequestedAt):
		return a.ID.String() > b.ID.String()
	default:
		return a.RequestedAt.After(*b.RequestedAt)
	}
}

func (a *Authority) recordActivity(ctx context.Context, event ActivityEvent) {
	sink := normalizeActivitySink(a.sink)
	if err := sink.Record(ctx, event); err != nil {
		a.logger.Warn("authority activity sink error: %v", err)
	}
}
