package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Extensions stores trial extension requests
type Extensions interface {
	repository.Repository[*TrialExtensionRequest]

	GetByUUIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*TrialExtensionRequest, error)
	GetPendingForSupplierTx(ctx context.Context, tx bun.IDB, supplierID uuid.UUID) (*TrialExtensionRequest, error)
	ListForSupplier(ctx context.Context, supplierID uuid.UUID) ([]*TrialExtensionRequest, error)
	// ResolveTx moves a pending request to its terminal state. ok is false
	// when the request was no longer pending.
	ResolveTx(ctx context.Context, tx bun.IDB, req *TrialExtensionRequest) (ok bool, err error)
}

type extensions struct {
	repository.Repository[*TrialExtensionRequest]
	db *bun.DB
}

// NewExtensionsRepository returns the extension request store
func NewExtensionsRepository(db *bun.DB) Extensions {
	repo := repository.NewRepository[*TrialExtensionRequest](db, repository.ModelHandlers[*TrialExtensionRequest]{
		NewRecord: func() *TrialExtensionRequest {
			return &TrialExtensionRequest{}
		},
		GetID: func(record *TrialExtensionRequest) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *TrialExtensionRequest, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
	return &extensions{Repository: repo, db: db}
}

func (r *extensions) GetByUUIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*TrialExtensionRequest, error) {
	record := &TrialExtensionRequest{}
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
	return record, nil
}

func (r *extensions) GetPendingForSupplierTx(ctx context.Context, tx bun.IDB, supplierID uuid.UUID) (*TrialExtensionRequest, error) {
	record := &TrialExtensionRequest{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.supplier_id = ?", supplierID).
		Where("?TableAlias.status = ?", ExtensionPending).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"supplier_id": supplierID.String()})
		}
		return nil, err
	}
	return record, nil
}

func (r *extensions) ListForSupplier(ctx context.Context, supplierID uuid.UUID) ([]*TrialExtensionRequest, error) {
	records := []*TrialExtensionRequest{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.supplier_id = ?", supplierID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (r *extensions) ResolveTx(ctx context.Context, tx bun.IDB, req *TrialExtensionRequest) (bool, error) {
	now := time.Now().UTC()
	req.UpdatedAt = &now

	res, err := tx.NewUpdate().
		Model(req).
		Column("status", "approved_months", "admin_note", "resolved_by", "resolved_at", "updated_at").
		Where("id = ?", req.ID).
		Where("status = ?", ExtensionPending).
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

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
