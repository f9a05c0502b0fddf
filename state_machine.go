package access

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_ACCESS_TRANSITION"
	textCodeTerminalState     = "TERMINAL_ACCESS_STATE"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid access request transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from an approved request.
var ErrTerminalState = goerrors.New("access request state is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor   ActorRef
	Request *AccessRequest
	From    AccessStatus
	To      AccessStatus
	Meta    TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes state machine behavior.
type TransitionOption func(*transitionOptions)

// AccessStateMachine drives the approval workflow over access requests.
type AccessStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, record *AccessRequest, target AccessStatus, opts ...TransitionOption) (*AccessRequest, error)
	CurrentStatus(record *AccessRequest) AccessStatus
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*accessStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *accessStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *accessStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
// Provide a handler to convert hook errors into domain-specific responses,
// otherwise the default handler panics with guidance for developers.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *accessStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *accessStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses validation rules (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// WithApprovalTime overrides the timestamp recorded when a request is approved.
func WithApprovalTime(t time.Time) TransitionOption {
	return func(opts *transitionOptions) {
		opts.approvalTime = &t
	}
}

// NewAccessStateMachine returns the default implementation backed by the provided repository.
func NewAccessStateMachine(requests AccessRequests, opts ...StateMachineOption) AccessStateMachine {
	sm := &accessStateMachine{
		requests: requests,
		transitions: map[AccessStatus]map[AccessStatus]struct{}{
			StatusPending: {
				StatusApproved: {},
				StatusRejected: {},
			},
			StatusRejected: {
				StatusPending: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
			return defaultHookErrorHandler(ctx, phase, err, tc)
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type accessStateMachine struct {
	requests         AccessRequests
	transitions      map[AccessStatus]map[AccessStatus]struct{}
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata     TransitionMetadata
	force        bool
	beforeHooks  []TransitionHook
	afterHooks   []TransitionHook
	approvalTime *time.Time
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (sm *accessStateMachine) Transition(ctx context.Context, actor ActorRef, record *AccessRequest, target AccessStatus, opts ...TransitionOption) (*AccessRequest, error) {
	if record == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "access request is nil",
		})
	}

	record.EnsureStatus()
	from := record.Status
	if target == "" {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "target status is empty",
		})
	}

	if from == target {
		return record, nil
	}

	options := sm.buildTransitionOptions(opts...)

	if from == StatusApproved && !options.force {
		return nil, ErrTerminalState.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if !options.force && !sm.canTransition(from, target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	ctxData := TransitionContext{
		Actor:   actor,
		Request: record,
		From:    from,
		To:      target,
		Meta:    options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return nil, err
	}

	statusOpts, chosenApproval := sm.buildStatusOptions(record, from, target, options)

	updated, err := sm.requests.UpdateStatus(ctx, record.ID, target, statusOpts...)
	if err != nil {
		return nil, err
	}

	sm.applyUpdates(record, updated, target, from, chosenApproval)

	if err := sm.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return nil, err
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccessStatusChanged,
		Actor:      actor,
		UserID:     record.UserID.String(),
		Product:    record.Product,
		FromStatus: from,
		ToStatus:   target,
		Metadata:   sm.transitionMetadata(ctxData.Meta),
	})

	return record, nil
}

func (sm *accessStateMachine) CurrentStatus(record *AccessRequest) AccessStatus {
	if record == nil {
		return ""
	}
	record.EnsureStatus()
	return record.Status
}

func (sm *accessStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (sm *accessStateMachine) canTransition(from, to AccessStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *accessStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *accessStateMachine) buildStatusOptions(record *AccessRequest, from, to AccessStatus, opts *transitionOptions) ([]StatusUpdateOption, *time.Time) {
	statusOpts := []StatusUpdateOption{}
	var approvalTime *time.Time

	if to == StatusApproved {
		switch {
		case opts.approvalTime != nil:
			approvalTime = opts.approvalTime
		case record.ApprovedAt != nil:
			approvalTime = record.ApprovedAt
		default:
			now := sm.now()
			approvalTime = &now
		}
		statusOpts = append(statusOpts, WithApprovedAt(approvalTime))
	} else if from == StatusApproved && record.ApprovedAt != nil {
		statusOpts = append(statusOpts, WithApprovedAt(nil))
	}

	return statusOpts, approvalTime
}

func defaultHookErrorHandler(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	panic(fmt.Sprintf(
		"go-access: %s transition hook failed: %v\nRequestID: %s from=%s to=%s reason=%s\nProvide access.WithStateMachineHookErrorHandler to customize error handling in production.",
		phase,
		err,
		tc.Request.ID,
		tc.From,
		tc.To,
		tc.Meta.Reason,
	))
}

func (sm *accessStateMachine) applyUpdates(record, updated *AccessRequest, target, from AccessStatus, approvalTime *time.Time) {
	if updated != nil {
		if updated.Status != "" {
			record.Status = updated.Status
		} else {
			record.Status = target
		}
		record.ApprovedAt = updated.ApprovedAt
		return
	}

	record.Status = target
	if target == StatusApproved {
		record.ApprovedAt = approvalTime
	} else if from == StatusApproved {
		record.ApprovedAt = nil
	}
}

func (sm *accessStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func (sm *accessStateMachine) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
