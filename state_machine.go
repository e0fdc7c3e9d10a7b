package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_ACCOUNT_STATE_TRANSITION"

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// AccountStatus is the lifecycle state derived from the suspension fields.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
)

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
	Account *Account
	From    AccountStatus
	To      AccountStatus
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

// AccountStateMachine defines lifecycle operations for accounts. Both states
// are mutually reachable, there is no terminal state. Re-suspending an
// already suspended account overwrites the recorded reason and timestamp.
type AccountStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, account *Account, target AccountStatus, opts ...TransitionOption) (*Account, error)
	CurrentStatus(account *Account) AccountStatus
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*accountStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *accountStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *accountStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *accountStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *accountStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
// For suspensions the reason is persisted on the account row.
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

// WithSuspensionTime overrides the timestamp recorded when entering the suspended state.
func WithSuspensionTime(t time.Time) TransitionOption {
	return func(opts *transitionOptions) {
		opts.suspensionTime = &t
	}
}

// NewAccountStateMachine returns the default implementation backed by the provided repository.
func NewAccountStateMachine(accounts Accounts, opts ...StateMachineOption) AccountStateMachine {
	sm := &accountStateMachine{
		accounts: accounts,
		transitions: map[AccountStatus]map[AccountStatus]struct{}{
			AccountStatusActive: {
				AccountStatusSuspended: {},
			},
			AccountStatusSuspended: {
				AccountStatusActive: {},
				// storage-layer idempotency: overwrite reason and timestamp
				AccountStatusSuspended: {},
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

type accountStateMachine struct {
	accounts         Accounts
	transitions      map[AccountStatus]map[AccountStatus]struct{}
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata       TransitionMetadata
	beforeHooks    []TransitionHook
	afterHooks     []TransitionHook
	suspensionTime *time.Time
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

func (sm *accountStateMachine) Transition(ctx context.Context, actor ActorRef, account *Account, target AccountStatus, opts ...TransitionOption) (*Account, error) {
	if account == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "account is nil",
		})
	}

	from := account.Status()
	if target == "" {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "target status is empty",
		})
	}

	if from == target && target == AccountStatusActive {
		return account, nil
	}

	if !sm.canTransition(from, target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	options := sm.buildTransitionOptions(opts...)

	ctxData := TransitionContext{
		Actor:   actor,
		Account: account,
		From:    from,
		To:      target,
		Meta:    options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return nil, err
	}

	statusOpts, suspensionTime := sm.buildStatusOptions(target, options)

	updated, err := sm.accounts.UpdateStatus(ctx, account.ID, target, statusOpts...)
	if err != nil {
		return nil, err
	}

	sm.applyUpdates(account, updated, target, options, suspensionTime)

	if err := sm.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return nil, err
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountStatusChanged,
		Actor:      actor,
		AccountID:  account.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		Metadata:   sm.transitionMetadata(ctxData.Meta),
	})

	return account, nil
}

func (sm *accountStateMachine) CurrentStatus(account *Account) AccountStatus {
	if account == nil {
		return ""
	}
	return account.Status()
}

func (sm *accountStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
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

func (sm *accountStateMachine) canTransition(from, to AccountStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *accountStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *accountStateMachine) buildStatusOptions(to AccountStatus, opts *transitionOptions) ([]StatusUpdateOption, *time.Time) {
	statusOpts := []StatusUpdateOption{}
	var suspensionTime *time.Time

	if to == AccountStatusSuspended {
		if opts.suspensionTime != nil {
			suspensionTime = opts.suspensionTime
		} else {
			now := sm.now()
			suspensionTime = &now
		}
		statusOpts = append(statusOpts,
			WithSuspendedAt(suspensionTime),
			WithSuspensionReason(opts.metadata.Reason),
		)
	} else {
		// leaving suspension clears every suspension field
		statusOpts = append(statusOpts,
			WithSuspendedAt(nil),
			WithSuspensionReason(""),
		)
	}

	return statusOpts, suspensionTime
}

func defaultHookErrorHandler(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	panic(fmt.Sprintf(
		"identity: %s transition hook failed: %v\nAccountID: %s from=%s to=%s reason=%s\nProvide identity.WithStateMachineHookErrorHandler to customize error handling in production.",
		phase,
		err,
		tc.Account.ID,
		tc.From,
		tc.To,
		tc.Meta.Reason,
	))
}

func (sm *accountStateMachine) applyUpdates(account, updated *Account, target AccountStatus, opts *transitionOptions, suspensionTime *time.Time) {
	if updated != nil {
		account.IsSuspended = updated.IsSuspended
		account.SuspensionReason = updated.SuspensionReason
		account.SuspendedAt = updated.SuspendedAt
		return
	}

	if target == AccountStatusSuspended {
		account.IsSuspended = true
		account.SuspensionReason = opts.metadata.Reason
		account.SuspendedAt = suspensionTime
	} else {
		account.IsSuspended = false
		account.SuspensionReason = ""
		account.SuspendedAt = nil
	}
}

func (sm *accountStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
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

func (sm *accountStateMachine) transitionMetadata(meta TransitionMetadata) map[string]any {
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
