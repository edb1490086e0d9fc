package auth

import (
	"context"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubscriptionPlan is what one paid period costs
type SubscriptionPlan struct {
	Amount     int64
	Currency   string
	PeriodDays int
}

// DefaultSubscriptionPlan returns a thirty day plan
func DefaultSubscriptionPlan() SubscriptionPlan {
	return SubscriptionPlan{
		Amount:     4900,
		Currency:   "USD",
		PeriodDays: 30,
	}
}

// SubscriptionPlanFromConfig extracts the plan from a Config
func SubscriptionPlanFromConfig(cfg Config) SubscriptionPlan {
	plan := DefaultSubscriptionPlan()
	if cfg.SubscriptionPrice > 0 {
		plan.Amount = cfg.SubscriptionPrice
	}
	if cfg.SubscriptionCurrency != "" {
		plan.Currency = cfg.SubscriptionCurrency
	}
	if cfg.SubscriptionDays > 0 {
		plan.PeriodDays = cfg.SubscriptionDays
	}
	return plan
}

// NextSubscriptionExpiry stacks a paid period on top of a live
// subscription, or starts it now.
func NextSubscriptionExpiry(s *Supplier, now time.Time, periodDays int) time.Time {
	base := now
	if s.SubscriptionExpiry != nil && s.SubscriptionExpiry.After(now) {
		base = *s.SubscriptionExpiry
	}
	return base.UTC().AddDate(0, 0, periodDays)
}

// ActivateSubscription marks the supplier subscribed for periodDays more.
func (e *LifecycleEngine) ActivateSubscription(ctx context.Context, actor ActorRef, supplierID uuid.UUID, periodDays int) (*Supplier, error) {
	if periodDays < 1 {
		return nil, goerrors.New("subscription period must be positive", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"period_days": periodDays})
	}

	supplier, err := e.mutate(ctx, supplierID, func(ctx context.Context, tx bun.Tx, s *Supplier, now time.Time) (*lifecycleChange, error) {
		return e.activate(actor, s, now, periodDays, nil), nil
	})
	if err != nil {
		return nil, err
	}

	e.notifySubscription(ctx, supplier)
	return supplier, nil
}

func (e *LifecycleEngine) activate(actor ActorRef, s *Supplier, now time.Time, periodDays int, extra map[string]any) *lifecycleChange {
	previous := s.SubscriptionExpiry
	s.IsSubscribed = true
	s.SubscriptionStatus = SubscriptionSubscribed
	s.SubscriptionExpiry = timePtr(NextSubscriptionExpiry(s, now, periodDays))

	meta := map[string]any{
		"period_days": periodDays,
		"expiry":      s.SubscriptionExpiry.UTC(),
	}
	if previous != nil {
		meta["previous_expiry"] = previous.UTC()
	}
	for k, v := range extra {
		meta[k] = v
	}

	return &lifecycleChange{
		persist: true,
		entry:   e.entry(actor, ActivitySubscriptionActive, EntitySupplier, s.ActorID(), now, "subscription activated", meta),
	}
}

// CreateSubscriptionOrder asks the payment gateway for an order covering
// one plan period and remembers it for confirmation.
func (e *LifecycleEngine) CreateSubscriptionOrder(ctx context.Context, supplierID uuid.UUID) (*SubscriptionOrder, error) {
	if e.payments == nil {
		return nil, goerrors.New("payment gateway is not configured", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal)
	}

	supplier, err := e.repo.Suppliers().GetByID(ctx, supplierID.String())
	if err != nil {
		if isNotFound(err) {
			return nil, withMeta(ErrNotFound, map[string]any{"supplier_id": supplierID.String()})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load supplier")
	}
	if !supplier.IsApproved() {
		return nil, withMeta(ErrNotApproved, map[string]any{"status": supplier.Status})
	}

	orderID, err := e.payments.CreateOrder(ctx, e.plan.Amount, e.plan.Currency, map[string]string{
		"supplier_id": supplierID.String(),
		"period_days": strconv.Itoa(e.plan.PeriodDays),
		"email":       supplier.Email,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "payment gateway rejected the order")
	}

	now := e.now.now().UTC()
	order := &SubscriptionOrder{
		OrderID:    orderID,
		SupplierID: supplierID,
		PeriodDays: e.plan.PeriodDays,
		Amount:     e.plan.Amount,
		Currency:   e.plan.Currency,
		Status:     OrderStatusCreated,
		CreatedAt:  &now,
	}

	err = e.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := e.repo.Orders().CreateTx(ctx, tx, order); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store order")
		}
		return e.repo.Activity().AppendTx(ctx, tx, e.entry(
			ActorRef{ID: supplierID.String(), Type: string(RoleSupplier)},
			ActivitySubscriptionOrdered, EntityOrder, orderID, now, "subscription order created",
			map[string]any{
				"amount":      order.Amount,
				"currency":    order.Currency,
				"period_days": order.PeriodDays,
			}))
	})
	if err != nil {
		return nil, unwrapTxError(err, "order transaction failed")
	}

	return order, nil
}

// OnOrderConfirmed extends the subscription paid by orderID. Replays of
// an already confirmed order change nothing.
func (e *LifecycleEngine) OnOrderConfirmed(ctx context.Context, orderID, payerEmail string) (*Supplier, error) {
	order, err := e.repo.Orders().Get(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, withMeta(ErrNotFound, map[string]any{"order_id": orderID})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load order")
	}

	activated := false
	supplier, err := e.mutate(ctx, order.SupplierID, func(ctx context.Context, tx bun.Tx, s *Supplier, now time.Time) (*lifecycleChange, error) {
		activated = false
		ok, err := e.repo.Orders().ConfirmTx(ctx, tx, orderID, NormalizeEmail(payerEmail), now)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm order")
		}
		if !ok {
			e.logger.Info("order already confirmed", "order_id", orderID)
			return &lifecycleChange{skip: true}, nil
		}
		activated = true
		return e.activate(SystemActor, s, now, order.PeriodDays, map[string]any{"order_id": orderID}), nil
	})
	if err != nil {
		return nil, err
	}

	if activated {
		e.notifySubscription(ctx, supplier)
	}
	return supplier, nil
}

func (e *LifecycleEngine) notifySubscription(ctx context.Context, s *Supplier) {
	e.notify(ctx, s.Email, NotifySubscriptionActive, map[string]any{
		"expiry": s.SubscriptionExpiry,
	})
}
