package access_test

import (
	"context"
	"database/sql"

	access "github.com/butlerian/go-access"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockSessionStore implements access.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) GetSession(ctx context.Context) (*access.SessionObject, error) {
	args := m.Called(ctx)
	session, _ := args.Get(0).(*access.SessionObject)
	return session, args.Error(1)
}

func (m *MockSessionStore) GetUser(ctx context.Context, accessToken string) (*access.User, error) {
	args := m.Called(ctx, accessToken)
	user, _ := args.Get(0).(*access.User)
	return user, args.Error(1)
}

func (m *MockSessionStore) SignUp(ctx context.Context, input access.SignUpInput) (*access.SessionObject, error) {
	args := m.Called(ctx, input)
	session, _ := args.Get(0).(*access.SessionObject)
	return session, args.Error(1)
}

func (m *MockSessionStore) SignInWithPassword(ctx context.Context, email, password string) (*access.SessionObject, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*access.SessionObject)
	return session, args.Error(1)
}

func (m *MockSessionStore) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionStore) OnAuthStateChange(handler access.AuthChangeHandler) func() {
	args := m.Called(handler)
	if fn, ok := args.Get(0).(func()); ok {
		return fn
	}
	return func() {}
}

// MockAccessStore implements access.AccessStore
type MockAccessStore struct {
	mock.Mock
}

func (m *MockAccessStore) ListByUser(ctx context.Context, accessToken string, userID uuid.UUID) ([]*access.AccessRequest, error) {
	args := m.Called(ctx, accessToken, userID)
	records, _ := args.Get(0).([]*access.AccessRequest)
	return records, args.Error(1)
}

func (m *MockAccessStore) Request(ctx context.Context, userID uuid.UUID, product, message string) (*access.AccessRequest, error) {
	args := m.Called(ctx, userID, product, message)
	record, _ := args.Get(0).(*access.AccessRequest)
	return record, args.Error(1)
}

// MockActivitySink implements access.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event access.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockTokenService implements access.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Generate(user *access.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Validate(tokenString string) (*access.SessionClaims, error) {
	args := m.Called(tokenString)
	claims, _ := args.Get(0).(*access.SessionClaims)
	return claims, args.Error(1)
}

// MockRepositoryManager implements access.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	return args.Error(0)
}

func (m *MockRepositoryManager) Users() access.Users {
	args := m.Called()
	return args.Get(0).(access.Users)
}

func (m *MockRepositoryManager) AccessRequests() access.AccessRequests {
	args := m.Called()
	return args.Get(0).(access.AccessRequests)
}

// MockUsers mocks the methods of access.Users the tests exercise; the
// embedded interface covers the remainder of the repository surface.
type MockUsers struct {
	mock.Mock
	access.Users
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*access.User, error) {
	args := m.Called(ctx, identifier, criteria)
	user, _ := args.Get(0).(*access.User)
	return user, args.Error(1)
}

func (m *MockUsers) Register(ctx context.Context, user *access.User) (*access.User, error) {
	args := m.Called(ctx, user)
	created, _ := args.Get(0).(*access.User)
	return created, args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *access.User) (*access.User, error) {
	args := m.Called(ctx, tx, user)
	created, _ := args.Get(0).(*access.User)
	return created, args.Error(1)
}

func (m *MockUsers) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockAccessRequests mocks the methods of access.AccessRequests the tests
// exercise; the embedded interface covers the rest.
type MockAccessRequests struct {
	mock.Mock
	access.AccessRequests
}

func (m *MockAccessRequests) ListByUser(ctx context.Context, userID uuid.UUID) ([]*access.AccessRequest, error) {
	args := m.Called(ctx, userID)
	records, _ := args.Get(0).([]*access.AccessRequest)
	return records, args.Error(1)
}

func (m *MockAccessRequests) ListPending(ctx context.Context) ([]*access.AccessRequest, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]*access.AccessRequest)
	return records, args.Error(1)
}

func (m *MockAccessRequests) Request(ctx context.Context, userID uuid.UUID, product, message string) (*access.AccessRequest, error) {
	args := m.Called(ctx, userID, product, message)
	record, _ := args.Get(0).(*access.AccessRequest)
	return record, args.Error(1)
}

func (m *MockAccessRequests) RequestTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, product, message string) (*access.AccessRequest, error) {
	args := m.Called(ctx, tx, userID, product, message)
	record, _ := args.Get(0).(*access.AccessRequest)
	return record, args.Error(1)
}

func (m *MockAccessRequests) UpdateStatus(ctx context.Context, id uuid.UUID, status access.AccessStatus, opts ...access.StatusUpdateOption) (*access.AccessRequest, error) {
	args := m.Called(ctx, id, status, opts)
	record, _ := args.Get(0).(*access.AccessRequest)
	return record, args.Error(1)
}

func (m *MockAccessRequests) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status access.AccessStatus, opts ...access.StatusUpdateOption) (*access.AccessRequest, error) {
	args := m.Called(ctx, tx, id, status, opts)
	record, _ := args.Get(0).(*access.AccessRequest)
	return record, args.Error(1)
}

// MockTokenMinter implements access.TokenMinter
type MockTokenMinter struct {
	mock.Mock
}

func (m *MockTokenMinter) Token(ctx context.Context, action access.BotAction) (string, error) {
	args := m.Called(ctx, action)
	return args.String(0), args.Error(1)
}

// MockNotifier implements access.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, typ access.NotificationType, token string, data *access.NotificationData) (*access.RelayResult, error) {
	args := m.Called(ctx, typ, token, data)
	result, _ := args.Get(0).(*access.RelayResult)
	return result, args.Error(1)
}

// routerContext aliases router.Context so it can be embedded without the
// field name colliding with the interface's Context() method.
type routerContext = router.Context

// MockContext mocks the router.Context surface the controllers touch; the
// embedded interface covers methods no test reaches.
type MockContext struct {
	routerContext
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

var (
	_ access.SessionStore      = (*MockSessionStore)(nil)
	_ access.AccessStore       = (*MockAccessStore)(nil)
	_ access.ActivitySink      = (*MockActivitySink)(nil)
	_ access.TokenService      = (*MockTokenService)(nil)
	_ access.RepositoryManager = (*MockRepositoryManager)(nil)
	_ access.Users             = (*MockUsers)(nil)
	_ access.AccessRequests    = (*MockAccessRequests)(nil)
	_ access.TokenMinter       = (*MockTokenMinter)(nil)
	_ access.Notifier          = (*MockNotifier)(nil)
	_ router.Context           = (*MockContext)(nil)
	_ access.Logger            = testLogger{}
)
