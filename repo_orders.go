package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Orders tracks gateway orders created for subscriptions
type Orders interface {
	CreateTx(ctx context.Context, tx bun.IDB, order *SubscriptionOrder) error
	Get(ctx context.Context, orderID string) (*SubscriptionOrder, error)
	GetTx(ctx context.Context, tx bun.IDB, orderID string) (*SubscriptionOrder, error)
	// ConfirmTx marks a created order confirmed. ok is false when it was
	// already confirmed.
	ConfirmTx(ctx context.Context, tx bun.IDB, orderID, payerEmail string, at time.Time) (ok bool, err error)
}

type orders struct {
	db *bun.DB
}

// NewOrdersRepository returns the order store
func NewOrdersRepository(db *bun.DB) Orders {
	return &orders{db: db}
}

func (r *orders) CreateTx(ctx context.Context, tx bun.IDB, order *SubscriptionOrder) error {
	if order.Status == "" {
		order.Status = OrderStatusCreated
	}
	_, err := tx.NewInsert().Model(order).Exec(ctx)
	return err
}

func (r *orders) Get(ctx context.Context, orderID string) (*SubscriptionOrder, error) {
	return r.GetTx(ctx, r.db, orderID)
}

func (r *orders) GetTx(ctx context.Context, tx bun.IDB, orderID string) (*SubscriptionOrder, error) {
	record := &SubscriptionOrder{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"order_id": orderID})
		}
		return nil, err
	}
	return record, nil
}

func (r *orders) ConfirmTx(ctx context.Context, tx bun.IDB, orderID, payerEmail string, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*SubscriptionOrder)(nil)).
		Set("status = ?", OrderStatusConfirmed).
		Set("payer_email = ?", payerEmail).
		Set("confirmed_at = ?", at.UTC()).
		Where("order_id = ?", orderID).
		Where("status = ?", OrderStatusCreated).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
