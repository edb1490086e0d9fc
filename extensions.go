package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ExtensionDecision is the admin verdict on an extension request
type ExtensionDecision string

const (
	DecisionApprove ExtensionDecision = "approve"
	DecisionReject  ExtensionDecision = "reject"
)

// IsValid checks the decision
func (d ExtensionDecision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// RequestExtension opens a trial extension request. A supplier can only
// have one pending request at a time.
func (e *LifecycleEngine) RequestExtension(ctx context.Context, supplierID uuid.UUID, months int, reason string) (*TrialExtensionRequest, error) {
	if months < 1 || months > MaxExtensionMonths {
		return nil, withMeta(ErrInvalidMonths, map[string]any{"months": months, "min": 1, "max": MaxExtensionMonths})
	}

	now := e.now.now().UTC()
	req := &TrialExtensionRequest{
		ID:              uuid.New(),
		SupplierID:      supplierID,
		RequestedMonths: months,
		Status:          ExtensionPending,
		Reason:          strings.TrimSpace(reason),
		CreatedAt:       &now,
		UpdatedAt:       &now,
	}

	err := e.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := e.repo.Suppliers().GetByUUIDTx(ctx, tx, supplierID); err != nil {
			if isNotFound(err) {
				return withMeta(ErrNotFound, map[string]any{"supplier_id": supplierID.String()})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load supplier")
		}

		if _, err := e.repo.Extensions().GetPendingForSupplierTx(ctx, tx, supplierID); err == nil {
			return ErrDuplicatePendingRequest
		} else if !isNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check pending requests")
		}

		if _, err := e.repo.Extensions().CreateTx(ctx, tx, req); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicatePendingRequest
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create extension request")
		}

		return e.repo.Activity().AppendTx(ctx, tx, e.entry(
			ActorRef{ID: supplierID.String(), Type: string(RoleSupplier)},
			ActivityExtensionRequested, EntityExtension, req.ID.String(), now,
			"trial extension requested", map[string]any{
				"supplier_id":      supplierID.String(),
				"requested_months": months,
			}))
	})
	if err != nil {
		return nil, unwrapTxError(err, "extension request transaction failed")
	}

	return req, nil
}

// ResolveExtension approves or rejects a pending request exactly once.
// An approval with approvedMonths > 0 advances the trial end from its
// current value.
func (e *LifecycleEngine) ResolveExtension(ctx context.Context, admin ActorRef, requestID uuid.UUID, decision ExtensionDecision, approvedMonths int, note string) (*TrialExtensionRequest, *Supplier, error) {
	if !decision.IsValid() {
		return nil, nil, goerrors.New("unknown extension decision", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"decision": decision})
	}
	if decision == DecisionReject {
		approvedMonths = 0
	}
	if approvedMonths < 0 || approvedMonths > MaxExtensionMonths {
		return nil, nil, withMeta(ErrInvalidMonths, map[string]any{"months": approvedMonths, "min": 0, "max": MaxExtensionMonths})
	}

	var supplierID uuid.UUID
	err := e.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		req, err := e.repo.Extensions().GetByUUIDTx(ctx, tx, requestID)
		if err != nil {
			if isNotFound(err) {
				return withMeta(ErrNotFound, map[string]any{"request_id": requestID.String()})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load extension request")
		}
		supplierID = req.SupplierID
		return nil
	})
	if err != nil {
		return nil, nil, unwrapTxError(err, "extension lookup failed")
	}

	var resolved *TrialExtensionRequest
	supplier, err := e.mutate(ctx, supplierID, func(ctx context.Context, tx bun.Tx, s *Supplier, now time.Time) (*lifecycleChange, error) {
		req, err := e.repo.Extensions().GetByUUIDTx(ctx, tx, requestID)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load extension request")
		}
		if !req.IsPending() {
			return nil, withMeta(ErrInvalidTransition, map[string]any{
				"request_id": requestID.String(),
				"status":     req.Status,
			})
		}

		action := ActivityExtensionRejected
		req.Status = ExtensionRejected
		if decision == DecisionApprove {
			action = ActivityExtensionApproved
			req.Status = ExtensionApproved
			months := approvedMonths
			req.ApprovedMonths = &months
		}
		req.AdminNote = strings.TrimSpace(note)
		req.ResolvedBy = admin.ID
		req.ResolvedAt = &now

		ok, err := e.repo.Extensions().ResolveTx(ctx, tx, req)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve extension request")
		}
		if !ok {
			return nil, withMeta(ErrInvalidTransition, map[string]any{
				"request_id": requestID.String(),
				"reason":     "already resolved",
			})
		}
		resolved = req

		meta := map[string]any{
			"supplier_id":     s.ActorID(),
			"approved_months": approvedMonths,
		}
		persist := false
		if decision == DecisionApprove && approvedMonths > 0 {
			previous := EffectiveTrialEnd(s, e.trial, now)
			s.TrialEndDate = timePtr(AddMonths(previous, approvedMonths))
			meta["previous_trial_end"] = previous
			meta["trial_end"] = s.TrialEndDate.UTC()
			persist = true
		}

		return &lifecycleChange{
			persist: persist,
			entry:   e.entry(admin, action, EntityExtension, req.ID.String(), now, "trial extension resolved", meta),
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	kind := NotifyExtensionRejected
	if decision == DecisionApprove {
		kind = NotifyExtensionApproved
	}
	e.notify(ctx, supplier.Email, kind, map[string]any{
		"approved_months": approvedMonths,
		"trial_end":       EffectiveTrialEnd(supplier, e.trial, e.now.now()),
		"note":            resolved.AdminNote,
	})

	return resolved, supplier, nil
}

// DirectExtend advances the trial end by months without a request.
func (e *LifecycleEngine) DirectExtend(ctx context.Context, admin ActorRef, supplierID uuid.UUID, months int, reason string) (*Supplier, error) {
	if months < 1 || months > MaxExtensionMonths {
		return nil, withMeta(ErrInvalidMonths, map[string]any{"months": months, "min": 1, "max": MaxExtensionMonths})
	}

	supplier, err := e.mutate(ctx, supplierID, func(ctx context.Context, tx bun.Tx, s *Supplier, now time.Time) (*lifecycleChange, error) {
		previous := EffectiveTrialEnd(s, e.trial, now)
		s.TrialEndDate = timePtr(AddMonths(previous, months))
		return &lifecycleChange{
			persist: true,
			entry: e.entry(admin, ActivityTrialExtended, EntitySupplier, s.ActorID(), now, "trial extended", map[string]any{
				"months":             months,
				"reason":             strings.TrimSpace(reason),
				"previous_trial_end": previous,
				"trial_end":          s.TrialEndDate.UTC(),
			}),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, supplier.Email, NotifyTrialExtended, map[string]any{
		"months":    months,
		"trial_end": supplier.TrialEndDate.UTC(),
	})
	return supplier, nil
}

// Extensions lists the requests of a supplier
func (e *LifecycleEngine) Extensions(ctx context.Context, supplierID uuid.UUID) ([]*TrialExtensionRequest, error) {
	return e.repo.Extensions().ListForSupplier(ctx, supplierID)
}
