package access

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultSetupTokenTTL is how long an approval invitation stays valid.
const DefaultSetupTokenTTL = 72 * time.Hour

const minSetupPasswordLength = 8

// MintAccountSetupToken issues the invitation token embedded in the approval
// email. It carries the user, email, and product so the setup page can greet
// the invitee before any server round trip.
func MintAccountSetupToken(signingKey []byte, issuer string, user *User, product string, ttl time.Duration) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, goerrors.New("user is required", goerrors.CategoryBadInput)
	}

	if ttl <= 0 {
		ttl = DefaultSetupTokenTTL
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:   user.ID.String(),
		Email: user.Email,
		Metadata: map[string]any{
			"product": product,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign setup token")
	}

	return signed, expiresAt, nil
}

type FinalizeAccountSetupMessage struct {
	Token    string `json:"token" doc:"Account setup invitation token"`
	Password string `json:"password" doc:"Chosen password"`
}

// FinalizeAccountSetupHandler turns an approved invitation into a usable
// account: it verifies the setup token, stores the chosen password, and
// marks the email verified. The temp credential from sign-up stops working.
type FinalizeAccountSetupHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	activity ActivitySink
	logger   Logger
}

// NewFinalizeAccountSetupHandler creates a handler with sane defaults.
func NewFinalizeAccountSetupHandler(repo RepositoryManager, tokens TokenService) *FinalizeAccountSetupHandler {
	return &FinalizeAccountSetupHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit setup events.
func (h *FinalizeAccountSetupHandler) WithActivitySink(sink ActivitySink) *FinalizeAccountSetupHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizeAccountSetupHandler) WithLogger(logger Logger) *FinalizeAccountSetupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizeAccountSetupHandler) Execute(ctx context.Context, event FinalizeAccountSetupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account setup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizeAccountSetupHandler) execute(ctx context.Context, event FinalizeAccountSetupMessage) error {
	if len(event.Password) < minSetupPasswordLength {
		return goerrors.New("password must be at least 8 characters", goerrors.CategoryValidation).
			WithTextCode("PASSWORD_TOO_SHORT")
	}

	claims, err := h.tokens.Validate(event.Token)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryAuth, "invalid or expired invitation token").
			WithCode(goerrors.CodeUnauthorized)
	}

	userID, err := uuid.Parse(claims.GetUserID())
	if err != nil {
		return goerrors.New("invitation token is not associated with a user", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	passwordHash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifier(ctx, userID.String())
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryAuth, "invitation token is not associated with a user").
				WithCode(goerrors.CodeUnauthorized)
		}

		if err := h.repo.Users().SetPasswordTx(ctx, tx, user.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store account password")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize account setup")
	}

	h.recordActivity(ctx, claims)

	return nil
}

func (h *FinalizeAccountSetupHandler) recordActivity(ctx context.Context, claims *SessionClaims) {
	event := ActivityEvent{
		EventType: ActivityEventAccountSetup,
		Actor: ActorRef{
			ID:   claims.GetUserID(),
			Type: "user",
		},
		UserID:     claims.GetUserID(),
		OccurredAt: time.Now(),
	}

	if product, ok := claims.Metadata["product"].(string); ok && product != "" {
		event.Product = product
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during account setup: %v", err)
	}
}
