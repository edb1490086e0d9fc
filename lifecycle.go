package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const maxLifecycleAttempts = 3

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor    ActorRef
	Supplier *Supplier
	From     SupplierStatus
	To       SupplierStatus
	Meta     TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	metadata    TransitionMetadata
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
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

// WithBeforeTransitionHook adds a hook executed inside the transaction,
// before the status update. An error aborts the transition.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the update committed.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// LifecycleOption customizes the engine.
type LifecycleOption func(*LifecycleEngine)

// WithLifecycleClock injects a custom clock (useful for tests).
func WithLifecycleClock(clock Clock) LifecycleOption {
	return func(e *LifecycleEngine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithLifecycleActivitySink publishes committed lifecycle events, in
// addition to the activity log rows written in the transaction.
func WithLifecycleActivitySink(sink ActivitySink) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.activitySink = normalizeActivitySink(sink)
	}
}

// WithLifecycleLogger overrides the logger
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.logger = normalizeLogger(logger)
	}
}

// WithLifecycleNotifications sets the notification gateway
func WithLifecycleNotifications(gateway NotificationGateway) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.gateway = gateway
	}
}

// WithLifecycleHookErrorHandler overrides how hook failures are propagated.
func WithLifecycleHookErrorHandler(handler HookErrorHandler) LifecycleOption {
	return func(e *LifecycleEngine) {
		if handler != nil {
			e.hookErrorHandler = handler
		}
	}
}

// WithTrialPolicy overrides the trial derivation settings
func WithTrialPolicy(policy TrialPolicy) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.trial = policy.normalize()
	}
}

// WithPaymentGateway enables subscription orders
func WithPaymentGateway(gateway PaymentGateway, plan SubscriptionPlan) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.payments = gateway
		e.plan = plan
	}
}

// LifecycleEngine owns every write to supplier lifecycle fields. All
// operations are synchronous and commit the change together with its
// activity log row.
type LifecycleEngine struct {
	repo             RepositoryManager
	transitions      map[SupplierStatus]map[SupplierStatus]struct{}
	now              Clock
	activitySink     ActivitySink
	logger           Logger
	gateway          NotificationGateway
	hookErrorHandler HookErrorHandler
	trial            TrialPolicy
	payments         PaymentGateway
	plan             SubscriptionPlan
}

// NewLifecycleEngine returns the engine backed by repo.
func NewLifecycleEngine(repo RepositoryManager, opts ...LifecycleOption) *LifecycleEngine {
	e := &LifecycleEngine{
		repo: repo,
		transitions: map[SupplierStatus]map[SupplierStatus]struct{}{
			SupplierStatusPending: {
				SupplierStatusApproved: {},
			},
			SupplierStatusApproved: {
				SupplierStatusSuspended: {},
				SupplierStatusBanned:    {},
			},
			SupplierStatusSuspended: {
				SupplierStatusApproved: {},
			},
			SupplierStatusBanned: {
				SupplierStatusApproved: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(_ context.Context, _ TransitionHookPhase, err error, _ TransitionContext) error {
			return err
		},
		trial: DefaultTrialPolicy(),
		plan:  DefaultSubscriptionPlan(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	return e
}

// TrialPolicy returns the trial settings in use
func (e *LifecycleEngine) TrialPolicy() TrialPolicy {
	return e.trial
}

// CanTransition reports whether from -> to is in the transition graph
func (e *LifecycleEngine) CanTransition(from, to SupplierStatus) bool {
	if allowed, ok := e.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// Approve moves a pending supplier to approved
func (e *LifecycleEngine) Approve(ctx context.Context, actor ActorRef, supplierID uuid.UUID, opts ...TransitionOption) (*Supplier, error) {
	return e.transition(ctx, actor, supplierID, fromStatuses(SupplierStatusPending), SupplierStatusApproved, 0, opts...)
}

// Reject records the rejection of a pending supplier. The status stays
// pending.
func (e *LifecycleEngine) Reject(ctx context.Context, actor ActorRef, supplierID uuid.UUID, opts ...TransitionOption) (*Supplier, error) {
	options := buildTransitionOptions(opts...)

	supplier, err := e.mutate(ctx, supplierID, func(ctx context.Context, tx bun.Tx, s *Supplier, now time.Time) (*lifecycleChange, error) {
		if s.Status != SupplierStatusPending {
			return nil, transitionError(s.Status, SupplierStatusPending, "reject")
		}
		return &lifecycleChange{
			entry: e.entry(actor, ActivitySupplierRejected, EntitySupplier, s.ActorID(), now,
				"supplier rejected", transitionMetadata(options.metadata)),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, supplier.Email, NotifySupplierRejected, map[string]any{
		"reason": options.metadata.Reason,
	})
	return supplier, nil
}

// Suspend moves an approved supplier to suspended until now + days.
// Reinstatement needs an explicit Restore.
func (e *LifecycleEngine) Suspend(ctx context.Context, actor ActorRef, supplierID uuid.UUID, days int, opts ...TransitionOption) (*Supplier, error) {
	if days < 1 {
		return nil, goerrors.New("suspension days must be positive", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"days": days})
	}
	return e.transition(ctx, actor, supplierID, fromStatuses(SupplierStatusApproved), SupplierStatusSuspended, days, opts...)
}

// Ban moves an approved supplier to banned
func (e *LifecycleEngine) Ban(ctx context.Context, actor ActorRef, supplierID uuid.UUID, opts ...TransitionOption) (*Supplier, error) {
	return e.transition(ctx, actor, supplierID, fromStatuses(SupplierStatusApproved), SupplierStatusBanned, 0, opts...)
}

// Restore moves a suspended or banned supplier back to approved
func (e *LifecycleEngine) Restore(ctx context.Context, actor ActorRef, supplierID uuid.UUID, opts ...TransitionOption) (*Supplier, error) {
	return e.transition(ctx, actor, supplierID, fromStatuses(SupplierStatusSuspended, SupplierStatusBanned), SupplierStatusApproved, 0, opts...)
}

// UpdateBadges replaces the badge set. It has no lifecycle effect.
func (e *LifecycleEngine) UpdateBadges(ctx context.Context, actor ActorRef, supplierID uuid.UUID, badges []string) (*Supplier, error) {
	normalized := NormalizeBadges(badges)
	return e.mutate(ctx, supplierID, func(ctx context.Context, tx bun.Tx, s *Supplier, now time.Time) (*lifecycleChange, error) {
		previous := s.Badges
		s.Badges = normalized
		return &lifecycleChange{
			persist: true,
			entry: e.entry(actor, ActivityBadgesUpdated, EntitySupplier, s.ActorID(), now,
				"supplier badges updated", map[string]any{
					"from": previous,
					"to":   normalized,
				}),
		}, nil
	})
}

func fromStatuses(statuses ...SupplierStatus) map[SupplierStatus]struct{} {
	out := make(map[SupplierStatus]struct{}, len(statuses))
	for _, status := range statuses {
		out[status] = struct{}{}
	}
	return out
}

// transition runs a status change. The source status must be in allowed
// and the move must be in the transition graph.
func (e *LifecycleEngine) transition(ctx context.Context, actor ActorRef, supplierID uuid.UUID, allowed map[SupplierStatus]struct{}, target SupplierStatus, days int, opts ...TransitionOption) (*Supplier, error) {
	options := buildTransitionOptions(opts...)
	var tc TransitionContext

	supplier, err := e.mutate(ctx, supplierID, func(ctx context.Context, tx bun.Tx, s *Supplier, now time.Time) (*lifecycleChange, error) {
		from := s.Status
		if _, ok := allowed[from]; !ok || !e.CanTransition(from, target) {
			return nil, transitionError(from, target, "")
		}

		tc = TransitionContext{
			Actor:    actor,
			Supplier: s,
			From:     from,
			To:       target,
			Meta:     options.cloneMetadata(),
		}
		if err := e.runHooks(ctx, options.beforeHooks, tc, HookPhaseBefore); err != nil {
			return nil, err
		}

		s.Status = target
		switch target {
		case SupplierStatusSuspended:
			s.SuspendedUntil = timePtr(now.AddDate(0, 0, days))
		case SupplierStatusApproved:
			s.SuspendedUntil = nil
		}

		meta := transitionMetadata(tc.Meta)
		if meta == nil {
			meta = map[string]any{}
		}
		meta["from"] = from
		meta["to"] = target
		if s.SuspendedUntil != nil {
			meta["suspended_until"] = s.SuspendedUntil.UTC()
		}

		return &lifecycleChange{
			persist: true,
			entry:   e.entry(actor, transitionAction(from, target), EntitySupplier, s.ActorID(), now, "supplier status changed", meta),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	tc.Supplier = supplier
	if err := e.runHooks(ctx, options.afterHooks, tc, HookPhaseAfter); err != nil {
		return nil, err
	}

	data := map[string]any{"reason": options.metadata.Reason}
	if supplier.SuspendedUntil != nil {
		data["suspended_until"] = supplier.SuspendedUntil.UTC()
	}
	e.notify(ctx, supplier.Email, transitionNotification(tc.From, target), data)

	return supplier, nil
}

type lifecycleChange struct {
	// persist writes the lifecycle columns, false only appends the entry
	persist bool
	// skip commits nothing at all
	skip  bool
	entry *ActivityLogEntry
}

type lifecycleApply func(ctx context.Context, tx bun.Tx, s *Supplier, now time.Time) (*lifecycleChange, error)

// mutate loads the supplier, applies fn and writes the result with a
// version CAS, retrying on conflicting writers.
func (e *LifecycleEngine) mutate(ctx context.Context, supplierID uuid.UUID, fn lifecycleApply) (*Supplier, error) {
	var committed *ActivityLogEntry

	for attempt := 0; attempt < maxLifecycleAttempts; attempt++ {
		var out *Supplier
		committed = nil

		err := e.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			s, err := e.repo.Suppliers().GetByUUIDTx(ctx, tx, supplierID)
			if err != nil {
				if isNotFound(err) {
					return withMeta(ErrNotFound, map[string]any{"supplier_id": supplierID.String()})
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load supplier")
			}

			change, err := fn(ctx, tx, s, e.now.now().UTC())
			if err != nil {
				return err
			}
			out = s
			if change == nil || change.skip {
				return nil
			}

			if change.persist {
				if err := e.repo.Suppliers().UpdateLifecycleTx(ctx, tx, s); err != nil {
					return err
				}
			}

			if change.entry != nil {
				if err := e.repo.Activity().AppendTx(ctx, tx, change.entry); err != nil {
					return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to append activity log")
				}
				committed = change.entry
			}
			return nil
		})

		if err == nil {
			if committed != nil {
				e.publish(ctx, committed)
			}
			return out, nil
		}
		if goerrors.Is(err, errVersionConflict) {
			e.logger.Debug("supplier version conflict, retrying", "supplier_id", supplierID, "attempt", attempt+1)
			continue
		}
		return nil, unwrapTxError(err, "supplier lifecycle transaction failed")
	}

	return nil, withMeta(ErrConcurrentUpdate, map[string]any{"supplier_id": supplierID.String()})
}

func (e *LifecycleEngine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if e.hookErrorHandler == nil {
				return err
			}
			return e.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (e *LifecycleEngine) entry(actor ActorRef, action ActivityAction, entityType, entityID string, now time.Time, message string, metadata map[string]any) *ActivityLogEntry {
	if actor == (ActorRef{}) {
		actor = SystemActor
	}
	return ActivityEvent{
		Action:     action,
		Actor:      actor,
		EntityType: entityType,
		EntityID:   entityID,
		Message:    message,
		Metadata:   metadata,
		OccurredAt: now,
	}.Entry()
}

func (e *LifecycleEngine) publish(ctx context.Context, entry *ActivityLogEntry) {
	recordActivity(ctx, e.activitySink, e.logger, ActivityEvent{
		Action:     entry.Action,
		Actor:      ActorRef{ID: entry.ActorID, Type: entry.ActorType},
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Message:    entry.Message,
		Metadata:   entry.Metadata,
		OccurredAt: entry.OccurredAt,
	})
}

func (e *LifecycleEngine) notify(ctx context.Context, email string, kind NotificationKind, data map[string]any) {
	newNotifier(e.gateway, e.logger).send(ctx, email, kind, data)
}

func buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
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

func transitionMetadata(meta TransitionMetadata) map[string]any {
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

func transitionError(from, to SupplierStatus, operation string) error {
	meta := map[string]any{
		"from": from,
		"to":   to,
	}
	if operation != "" {
		meta["operation"] = operation
	}
	return withMeta(ErrInvalidTransition, meta)
}

func transitionAction(from, to SupplierStatus) ActivityAction {
	switch to {
	case SupplierStatusSuspended:
		return ActivitySupplierSuspended
	case SupplierStatusBanned:
		return ActivitySupplierBanned
	case SupplierStatusApproved:
		if from == SupplierStatusPending {
			return ActivitySupplierApproved
		}
		return ActivitySupplierRestored
	}
	return ActivityAction("supplier." + string(to))
}

func transitionNotification(from, to SupplierStatus) NotificationKind {
	switch to {
	case SupplierStatusSuspended:
		return NotifySupplierSuspended
	case SupplierStatusBanned:
		return NotifySupplierBanned
	case SupplierStatusApproved:
		if from == SupplierStatusPending {
			return NotifySupplierApproved
		}
		return NotifySupplierRestored
	}
	return NotificationKind("supplier_" + string(to))
}

// Supplier loads a supplier by id
func (e *LifecycleEngine) Supplier(ctx context.Context, supplierID uuid.UUID) (*Supplier, error) {
	s, err := e.repo.Suppliers().GetByID(ctx, supplierID.String())
	if err != nil {
		if isNotFound(err) {
			return nil, withMeta(ErrNotFound, map[string]any{"supplier_id": supplierID.String()})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load supplier")
	}
	s.EnsureStatus()
	return s, nil
}
