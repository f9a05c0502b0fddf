package access

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-router"
)

// NotifyController is the verify-and-notify endpoint: it scores the caller's
// verification token, rejects bots, and forwards the payload to the admin
// mailbox. Login verification stops after the score check and never emails.
type NotifyController struct {
	assessor  Assessor
	mailer    Mailer
	threshold float64
	Logger    Logger
	Routes    *NotifyControllerRoutes
}

type NotifyControllerRoutes struct {
	Notify string
}

// NotifyControllerOption customizes controller construction.
type NotifyControllerOption func(*NotifyController)

// WithNotifyThreshold overrides the minimum passing score.
func WithNotifyThreshold(threshold float64) NotifyControllerOption {
	return func(n *NotifyController) {
		if threshold > 0 {
			n.threshold = threshold
		}
	}
}

// WithNotifyLogger overrides the default logger.
func WithNotifyLogger(logger Logger) NotifyControllerOption {
	return func(n *NotifyController) {
		if logger != nil {
			n.Logger = logger
		}
	}
}

func NewNotifyController(assessor Assessor, mailer Mailer, opts ...NotifyControllerOption) *NotifyController {
	n := &NotifyController{
		assessor:  assessor,
		mailer:    mailer,
		threshold: DefaultScoreThreshold,
		Logger:    defLogger{},
		Routes: &NotifyControllerRoutes{
			Notify: "/send-notification",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}

	return n
}

// RegisterRoutes registers the notify endpoint.
func (n *NotifyController) RegisterRoutes(group RouteRegistrar) {
	group.Post(n.Routes.Notify, n.NotifyPost)
}

// NotifyPayload is the request body for the notify endpoint.
type NotifyPayload struct {
	Type           NotificationType  `json:"type"`
	RecaptchaToken string            `json:"recaptchaToken"`
	Data           *NotificationData `json:"data"`
}

// Validate will validate the payload
func (p NotifyPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Type,
			validation.Required,
			validation.In(
				TypeContact,
				TypeAccessRequest,
				TypeSignup,
				TypeLoginVerify,
			),
		),
		validation.Field(&p.RecaptchaToken, validation.Required),
	)
}

// expectedAction maps the notification type onto the action the widget was
// executed with. Login verification tokens are minted under "login".
func expectedAction(typ NotificationType) string {
	if typ == TypeLoginVerify {
		return ActionLogin
	}
	return typ
}

func (n *NotifyController) NotifyPost(ctx router.Context) error {
	payload := new(NotifyPayload)

	if err := ctx.Bind(payload); err != nil {
		n.Logger.Error("notify parse payload: %v", err)
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "Failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		n.Logger.Error("notify validate payload: %v", err)
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	assessment, err := n.assessor.Assess(ctx.Context(), payload.RecaptchaToken, expectedAction(payload.Type))
	if err != nil {
		n.Logger.Error("notify assessment: %v", err)
		return ctx.JSON(router.StatusInternalServerError, map[string]string{
			"error": "Internal error",
		})
	}

	if !assessment.Passed(n.threshold) {
		n.Logger.Warn("notify rejected %s: valid=%t score=%.2f", payload.Type, assessment.Valid, assessment.Score)
		return ctx.JSON(router.StatusForbidden, map[string]string{
			"error": UserMessage(ErrVerificationFailed),
		})
	}

	if payload.Type != TypeLoginVerify {
		email := BuildEmail(payload.Type, payload.Data)
		if err := n.mailer.Send(ctx.Context(), email.Subject, email.HTML); err != nil {
			n.Logger.Error("notify delivery: %v", err)
			return ctx.JSON(router.StatusInternalServerError, map[string]string{
				"error": UserMessage(ErrDeliveryFailed),
			})
		}
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"score":   assessment.Score,
	})
}
