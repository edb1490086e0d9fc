package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// lifecycleColumns are the supplier columns only the lifecycle engine writes
var lifecycleColumns = []string{
	"status",
	"suspended_until",
	"trial_start_date",
	"trial_end_date",
	"subscription_status",
	"is_subscribed",
	"subscription_expiry",
	"badges",
}

var errVersionConflict = errors.New("supplier version changed", errors.CategoryConflict).
	WithTextCode(TextCodeConcurrentUpdate)

// Suppliers is the supplier credential store plus lifecycle writes
type Suppliers interface {
	Accounts[*Supplier]

	GetByUUIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Supplier, error)
	ListByStatus(ctx context.Context, status SupplierStatus) ([]*Supplier, error)
	// UpdateLifecycleTx persists the lifecycle columns of s when the stored
	// version still equals s.Version, then bumps s.Version.
	UpdateLifecycleTx(ctx context.Context, tx bun.IDB, s *Supplier) error
}

type suppliers struct {
	Accounts[*Supplier]
	db *bun.DB
}

var _ Suppliers = (*suppliers)(nil)

// NewSuppliersRepository returns the supplier store
func NewSuppliersRepository(db *bun.DB) Suppliers {
	return &suppliers{
		Accounts: NewAccountsRepository(db, func() *Supplier { return &Supplier{} }),
		db:       db,
	}
}

func (r *suppliers) GetByUUIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Supplier, error) {
	record := &Supplier{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}
	record.EnsureStatus()
	return record, nil
}

func (r *suppliers) ListByStatus(ctx context.Context, status SupplierStatus) ([]*Supplier, error) {
	records := []*Supplier{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", status).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (r *suppliers) UpdateLifecycleTx(ctx context.Context, tx bun.IDB, s *Supplier) error {
	expected := s.Version
	now := time.Now().UTC()

	s.Version = expected + 1
	s.UpdatedAt = &now

	res, err := tx.NewUpdate().
		Model(s).
		Column(lifecycleColumns...).
		Column("version", "updated_at").
		Where("id = ?", s.Account.ID).
		Where("version = ?", expected).
		Exec(ctx)
	if err != nil {
		s.Version = expected
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		s.Version = expected
		return err
	}
	if n == 0 {
		s.Version = expected
		return errVersionConflict
	}
	return nil
}
