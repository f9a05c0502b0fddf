package access

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// RouteRegistrar captures the router methods used by the controllers.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// Notifier is the relay surface the controller depends on.
type Notifier interface {
	Send(ctx context.Context, typ NotificationType, token string, data *NotificationData) (*RelayResult, error)
}

// TokenMinter is the gate surface the controller depends on.
type TokenMinter interface {
	Token(ctx context.Context, action BotAction) (string, error)
}

// AccessControllerRoutes holds the mounted paths.
type AccessControllerRoutes struct {
	Login         string
	Signup        string
	Logout        string
	RequestAccess string
	Contact       string
	Pending       string
}

// AccessController exposes the gated access flows over HTTP: every mutating
// route runs the bot check through the relay before touching the authority.
type AccessController struct {
	authority *Authority
	gate      TokenMinter
	relay     Notifier
	Logger    Logger
	Debug     bool
	Routes    *AccessControllerRoutes
}

// AccessControllerOption customizes controller construction.
type AccessControllerOption func(*AccessController)

// WithAccessControllerLogger overrides the default logger.
func WithAccessControllerLogger(logger Logger) AccessControllerOption {
	return func(a *AccessController) {
		if logger != nil {
			a.Logger = logger
		}
	}
}

func NewAccessController(authority *Authority, gate TokenMinter, relay Notifier, opts ...AccessControllerOption) *AccessController {
	a := &AccessController{
		authority: authority,
		gate:      gate,
		relay:     relay,
		Logger:    defLogger{},
		Routes: &AccessControllerRoutes{
			Login:         "/login",
			Signup:        "/signup",
			Logout:        "/logout",
			RequestAccess: "/request-access",
			Contact:       "/contact",
			Pending:       "/pending",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// RegisterRoutes registers the access flow routes.
func (a *AccessController) RegisterRoutes(group RouteRegistrar) {
	group.Post(a.Routes.Login, a.LoginPost)
	group.Post(a.Routes.Signup, a.SignupPost)
	group.Post(a.Routes.Logout, a.LogoutPost)
	group.Post(a.Routes.RequestAccess, a.RequestAccessPost)
	group.Post(a.Routes.Contact, a.ContactPost)
}

// LoginPayload is the sign-in form payload.
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
	)
}

// LoginPost verifies the caller is human, then authenticates. The relay call
// is verification-only and never produces an email.
func (a *AccessController) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return a.errJSON(ctx, router.StatusBadRequest, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.errJSON(ctx, router.StatusBadRequest, err.Error())
	}

	token, err := a.gate.Token(ctx.Context(), ActionLogin)
	if err != nil {
		a.Logger.Error("login bot check: %v", err)
		return a.errJSON(ctx, router.StatusForbidden, UserMessage(ErrVerificationFailed))
	}

	if _, err := a.relay.Send(ctx.Context(), TypeLoginVerify, token, nil); err != nil {
		return a.relayError(ctx, err)
	}

	if err := a.authority.SignIn(ctx.Context(), payload.Email, payload.Password); err != nil {
		a.Logger.Error("login sign in: %v", err)
		return a.errJSON(ctx, router.StatusUnauthorized, UserMessage(err))
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// SignupPayload is the request-access form payload.
type SignupPayload struct {
	FullName   string `form:"full_name" json:"full_name"`
	Email      string `form:"email" json:"email"`
	Occupation string `form:"occupation" json:"occupation"`
	Company    string `form:"company" json:"company"`
	Phone      string `form:"phone_number" json:"phone_number"`
	Product    string `form:"product" json:"product"`
	Message    string `form:"message" json:"message"`
}

// Validate will validate the payload
func (p SignupPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Occupation, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Company, validation.Length(0, 200)),
		validation.Field(&p.Phone, validation.By(ValidatePhoneNumber("US"))),
		validation.Field(&p.Product, validation.Required, validation.In(DefaultProduct)),
		validation.Field(&p.Message, validation.Length(0, 2000)),
	)
}

// SignupPost creates the account with a temporary password and leaves the
// caller signed out. Approval happens out of band; the temp session must not
// persist in the meantime.
func (a *AccessController) SignupPost(ctx router.Context) error {
	payload := new(SignupPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload: %v", err)
		return a.errJSON(ctx, router.StatusBadRequest, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.errJSON(ctx, router.StatusBadRequest, err.Error())
	}

	token, err := a.gate.Token(ctx.Context(), ActionSignup)
	if err != nil {
		a.Logger.Error("signup bot check: %v", err)
		return a.errJSON(ctx, router.StatusForbidden, UserMessage(ErrVerificationFailed))
	}

	if _, err := a.relay.Send(ctx.Context(), TypeSignup, token, &NotificationData{
		Name:       payload.FullName,
		Email:      payload.Email,
		Occupation: payload.Occupation,
		Company:    payload.Company,
		Message:    payload.Message,
		Product:    payload.Product,
	}); err != nil {
		return a.relayError(ctx, err)
	}

	input := SignUpInput{
		Email:      payload.Email,
		Password:   uuid.NewString(),
		FullName:   payload.FullName,
		Occupation: payload.Occupation,
		Company:    payload.Company,
		Phone:      payload.Phone,
		Product:    payload.Product,
		Message:    payload.Message,
	}

	if err := a.authority.SignUp(ctx.Context(), input); err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return a.errJSON(ctx, router.StatusBadRequest, UserMessage(err))
		}
		a.Logger.Error("signup create account: %v", err)
		return a.errJSON(ctx, router.StatusInternalServerError, UserMessage(err))
	}

	// The temp credential session must not outlive the request.
	if err := a.authority.SignOut(ctx.Context()); err != nil {
		a.Logger.Warn("signup post sign out: %v", err)
	}

	res := map[string]any{
		"success":  true,
		"redirect": a.Routes.Pending,
	}

	if a.Debug {
		fmt.Println("================")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("================")
	}

	return ctx.JSON(router.StatusOK, res)
}

// LogoutPost drops the current session.
func (a *AccessController) LogoutPost(ctx router.Context) error {
	if err := a.authority.SignOut(ctx.Context()); err != nil {
		a.Logger.Error("logout: %v", err)
		return a.errJSON(ctx, router.StatusInternalServerError, UserMessage(err))
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// RequestAccessPayload asks for access to a product under the live session.
type RequestAccessPayload struct {
	Product string `form:"product" json:"product"`
	Message string `form:"message" json:"message"`
}

// Validate will validate the payload
func (p RequestAccessPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Product, validation.Required, validation.In(DefaultProduct)),
		validation.Field(&p.Message, validation.Length(0, 2000)),
	)
}

func (a *AccessController) RequestAccessPost(ctx router.Context) error {
	payload := new(RequestAccessPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("request access parse payload: %v", err)
		return a.errJSON(ctx, router.StatusBadRequest, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.errJSON(ctx, router.StatusBadRequest, err.Error())
	}

	token, err := a.gate.Token(ctx.Context(), ActionAccessRequest)
	if err != nil {
		a.Logger.Error("request access bot check: %v", err)
		return a.errJSON(ctx, router.StatusForbidden, UserMessage(ErrVerificationFailed))
	}

	user := a.authority.CurrentUser()

	data := &NotificationData{Product: payload.Product, Message: payload.Message}
	if user != nil {
		data.Name = user.FullName
		data.Email = user.Email
		data.Occupation = user.Occupation
	}

	if _, err := a.relay.Send(ctx.Context(), TypeAccessRequest, token, data); err != nil {
		return a.relayError(ctx, err)
	}

	if err := a.authority.RequestAccess(ctx.Context(), payload.Product); err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return a.errJSON(ctx, router.StatusUnauthorized, UserMessage(err))
		}
		a.Logger.Error("request access: %v", err)
		return a.errJSON(ctx, router.StatusInternalServerError, UserMessage(err))
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"status":  StatusPending,
	})
}

// ContactPayload is the contact form payload.
type ContactPayload struct {
	Name    string `form:"name" json:"name"`
	Email   string `form:"email" json:"email"`
	Message string `form:"message" json:"message"`
}

// Validate will validate the payload
func (p ContactPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Message, validation.Required, validation.Length(1, 5000)),
	)
}

func (a *AccessController) ContactPost(ctx router.Context) error {
	payload := new(ContactPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("contact parse payload: %v", err)
		return a.errJSON(ctx, router.StatusBadRequest, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.errJSON(ctx, router.StatusBadRequest, err.Error())
	}

	token, err := a.gate.Token(ctx.Context(), ActionContact)
	if err != nil {
		a.Logger.Error("contact bot check: %v", err)
		return a.errJSON(ctx, router.StatusForbidden, UserMessage(ErrVerificationFailed))
	}

	if _, err := a.relay.Send(ctx.Context(), TypeContact, token, &NotificationData{
		Name:    payload.Name,
		Email:   payload.Email,
		Message: payload.Message,
	}); err != nil {
		return a.relayError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

func (a *AccessController) relayError(ctx router.Context, err error) error {
	switch {
	case errors.Is(err, ErrVerificationFailed):
		return a.errJSON(ctx, router.StatusForbidden, UserMessage(err))
	case errors.Is(err, ErrRelayTimeout):
		return a.errJSON(ctx, router.StatusInternalServerError, UserMessage(err))
	default:
		a.Logger.Error("relay error: %v", err)
		return a.errJSON(ctx, router.StatusInternalServerError, UserMessage(err))
	}
}

func (a *AccessController) errJSON(ctx router.Context, status int, message string) error {
	return ctx.JSON(status, map[string]string{
		"error": message,
	})
}

// ValidatePhoneNumber checks an optional phone field parses as a real number
// for the given region.
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}

		num, err := phonenumbers.Parse(s, region)
		if err != nil {
			return fmt.Errorf("invalid phone number: %w", err)
		}

		if !phonenumbers.IsValidNumber(num) {
			return errors.New("invalid phone number")
		}

		return nil
	}
}
