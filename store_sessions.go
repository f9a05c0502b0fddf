package access

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// LocalSessionStore is a concrete SessionStore backed by the users table and
// a JWT token service. It keeps the one live session in memory and fans
// session change events out to subscribers in arrival order.
type LocalSessionStore struct {
	mu       sync.Mutex
	current  *SessionObject
	handlers map[int]AuthChangeHandler
	nextID   int
	events   chan *SessionObject
	done     chan struct{}

	repo   RepositoryManager
	tokens TokenService
	logger Logger
	now    clock
}

// LocalSessionStoreOption customizes store construction.
type LocalSessionStoreOption func(*LocalSessionStore)

// WithSessionStoreLogger overrides the default logger.
func WithSessionStoreLogger(logger Logger) LocalSessionStoreOption {
	return func(s *LocalSessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionStoreClock injects a custom clock (useful for tests).
func WithSessionStoreClock(now clock) LocalSessionStoreOption {
	return func(s *LocalSessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLocalSessionStore builds the store and starts its event dispatcher.
// Call Close to stop dispatching.
func NewLocalSessionStore(repo RepositoryManager, tokens TokenService, opts ...LocalSessionStoreOption) *LocalSessionStore {
	s := &LocalSessionStore{
		handlers: map[int]AuthChangeHandler{},
		events:   make(chan *SessionObject, 16),
		done:     make(chan struct{}),
		repo:     repo,
		tokens:   tokens,
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	go s.dispatch()

	return s
}

// Close stops the event dispatcher. Pending events are dropped.
func (s *LocalSessionStore) Close() {
	close(s.done)
}

// dispatch delivers events to subscribers one at a time, preserving arrival
// order across a rapid sign-out/sign-in sequence.
func (s *LocalSessionStore) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case session := <-s.events:
			s.mu.Lock()
			handlers := make([]AuthChangeHandler, 0, len(s.handlers))
			for _, h := range s.handlers {
				handlers = append(handlers, h)
			}
			s.mu.Unlock()

			for _, h := range handlers {
				h(session)
			}
		}
	}
}

func (s *LocalSessionStore) emit(session *SessionObject) {
	select {
	case s.events <- session:
	case <-s.done:
	}
}

// GetSession returns the live session, nil when none exists or the token
// has expired.
func (s *LocalSessionStore) GetSession(ctx context.Context) (*SessionObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, nil
	}

	if s.current.Expired(s.now()) {
		s.current = nil
		return nil, nil
	}

	return s.current, nil
}

// GetUser revalidates the token and looks the user up in the users table.
// The session object alone is never trusted; a user deleted server-side
// yields ErrStaleSession.
func (s *LocalSessionStore) GetUser(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.tokens.Validate(accessToken)
	if err != nil {
		return nil, ErrStaleSession
	}

	user, err := s.repo.Users().GetByIdentifier(ctx, claims.GetUserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrStaleSession
		}
		return nil, NormalizeStoreError(err)
	}

	return user, nil
}

// SignUp registers a new account. The password is hashed, the user ID is
// derived deterministically from the email, and when Product is present the
// initial pending AccessRequest is created in the same transaction.
// Duplicate emails are reported without creating a session.
func (s *LocalSessionStore) SignUp(ctx context.Context, input SignUpInput) (*SessionObject, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if _, err := s.repo.Users().GetByIdentifier(ctx, input.Email); err == nil {
		return nil, ErrDuplicateAccount
	} else if !repository.IsRecordNotFound(err) {
		return nil, NormalizeStoreError(err)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	user := &User{
		Email:        input.Email,
		FullName:     input.FullName,
		Occupation:   input.Occupation,
		Company:      input.Company,
		Phone:        input.Phone,
		PasswordHash: hash,
	}

	if id, err := hashid.NewUUID(input.Email); err == nil {
		user.ID = id
	}

	if input.Product != "" {
		user.AddMetadata("product", input.Product)
	}
	if input.Message != "" {
		user.AddMetadata("message", input.Message)
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = s.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		if input.Product != "" {
			if _, err := s.repo.AccessRequests().RequestTx(ctx, tx, user.ID, input.Product, input.Message); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create access request")
			}
		}

		return nil
	})

	if err != nil {
		return nil, NormalizeStoreError(err)
	}

	session, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// SignInWithPassword authenticates an email/password pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *LocalSessionStore) SignInWithPassword(ctx context.Context, email, password string) (*SessionObject, error) {
	user, err := s.repo.Users().GetByIdentifier(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, NormalizeStoreError(err)
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(user)
}

// SignOut drops the live session and notifies subscribers.
func (s *LocalSessionStore) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	s.emit(nil)
	return nil
}

// OnAuthStateChange registers a change handler, returning its unsubscribe.
func (s *LocalSessionStore) OnAuthStateChange(handler AuthChangeHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.handlers[id] = handler

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

func (s *LocalSessionStore) issueSession(user *User) (*SessionObject, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, NormalizeStoreError(err)
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, NormalizeStoreError(err)
	}

	session, err := sessionFromClaims(claims, token)
	if err != nil {
		return nil, NormalizeStoreError(err)
	}

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	s.emit(session)
	return session, nil
}

var _ SessionStore = (*LocalSessionStore)(nil)
