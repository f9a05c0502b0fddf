package access

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccessRequests is the product_access repository. Rows are append-only from
// the requester's point of view; only the approval workflow moves status.
type AccessRequests interface {
	repository.Repository[*AccessRequest]

	ListByUser(ctx context.Context, userID uuid.UUID) ([]*AccessRequest, error)
	ListByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*AccessRequest, error)
	ListPending(ctx context.Context) ([]*AccessRequest, error)

	Request(ctx context.Context, userID uuid.UUID, product, message string) (*AccessRequest, error)
	RequestTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, product, message string) (*AccessRequest, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status AccessStatus, opts ...StatusUpdateOption) (*AccessRequest, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccessStatus, opts ...StatusUpdateOption) (*AccessRequest, error)

	Approve(ctx context.Context, actor ActorRef, record *AccessRequest, opts ...TransitionOption) (*AccessRequest, error)
	Reject(ctx context.Context, actor ActorRef, record *AccessRequest, opts ...TransitionOption) (*AccessRequest, error)
}

type accessRequests struct {
	repository.Repository[*AccessRequest]
	db                  *bun.DB
	stateMachine        AccessStateMachine
	stateMachineOptions []StateMachineOption
	now                 clock
}

var (
	_ AccessRequests                        = (*accessRequests)(nil)
	_ repository.Repository[*AccessRequest] = (*accessRequests)(nil)
)

type AccessRequestsOption func(*accessRequests)

func NewAccessRequestsRepository(db *bun.DB, opts ...AccessRequestsOption) AccessRequests {
	repo := repository.NewRepository[*AccessRequest](db, repository.ModelHandlers[*AccessRequest]{
		NewRecord: func() *AccessRequest { return &AccessRequest{} },
		GetID: func(r *AccessRequest) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *AccessRequest, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	repoAccess := &accessRequests{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoAccess)
		}
	}

	return repoAccess
}

// WithAccessRequestsClock injects a custom clock (useful for tests).
func WithAccessRequestsClock(now clock) AccessRequestsOption {
	return func(a *accessRequests) {
		if now != nil {
			a.now = now
		}
	}
}

func WithAccessStateMachineOptions(options ...StateMachineOption) AccessRequestsOption {
	return func(a *accessRequests) {
		if len(options) == 0 {
			return
		}
		a.stateMachineOptions = append(a.stateMachineOptions, options...)
		a.stateMachine = nil
	}
}

func WithAccessStateMachine(sm AccessStateMachine) AccessRequestsOption {
	return func(a *accessRequests) {
		a.stateMachine = sm
	}
}

func (a *accessRequests) ListByUser(ctx context.Context, userID uuid.UUID) ([]*AccessRequest, error) {
	return a.ListByUserTx(ctx, a.db, userID)
}

func (a *accessRequests) ListByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*AccessRequest, error) {
	records := []*AccessRequest{}

	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.requested_at DESC").
		OrderExpr("?TableAlias.id DESC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *accessRequests) ListPending(ctx context.Context) ([]*AccessRequest, error) {
	records := []*AccessRequest{}

	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", StatusPending).
		OrderExpr("?TableAlias.requested_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *accessRequests) Request(ctx context.Context, userID uuid.UUID, product, message string) (*AccessRequest, error) {
	return a.RequestTx(ctx, a.db, userID, product, message)
}

func (a *accessRequests) RequestTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, product, message string) (*AccessRequest, error) {
	now := a.now()
	record := &AccessRequest{
		ID:          uuid.New(),
		UserID:      userID,
		Product:     product,
		Status:      StatusPending,
		Message:     message,
		RequestedAt: &now,
	}

	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *accessRequests) UpdateStatus(ctx context.Context, id uuid.UUID, status AccessStatus, opts ...StatusUpdateOption) (*AccessRequest, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *accessRequests) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccessStatus, opts ...StatusUpdateOption) (*AccessRequest, error) {
	record := &AccessRequest{
		ID:     id,
		Status: status,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func (a *accessRequests) Approve(ctx context.Context, actor ActorRef, record *AccessRequest, opts ...TransitionOption) (*AccessRequest, error) {
	return a.lifecycleMachine().Transition(ctx, actor, record, StatusApproved, opts...)
}

func (a *accessRequests) Reject(ctx context.Context, actor ActorRef, record *AccessRequest, opts ...TransitionOption) (*AccessRequest, error) {
	return a.lifecycleMachine().Transition(ctx, actor, record, StatusRejected, opts...)
}

// StatusUpdateOption allows callers to mutate the record before persisting
// status changes.
type StatusUpdateOption func(*AccessRequest)

// WithApprovedAt sets the ApprovedAt timestamp during a status transition.
func WithApprovedAt(at *time.Time) StatusUpdateOption {
	return func(r *AccessRequest) {
		r.ApprovedAt = at
	}
}

func (a *accessRequests) lifecycleMachine() AccessStateMachine {
	if a.stateMachine == nil {
		a.stateMachine = NewAccessStateMachine(a, a.stateMachineOptions...)
	}
	return a.stateMachine
}
