package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityLog is the append only audit table
type ActivityLog interface {
	ActivitySink
	AppendTx(ctx context.Context, tx bun.IDB, entry *ActivityLogEntry) error
	ListForEntity(ctx context.Context, entityType, entityID string) ([]*ActivityLogEntry, error)
}

type activityLog struct {
	db *bun.DB
}

var _ ActivityLog = (*activityLog)(nil)

// NewActivityLogRepository returns the audit store. It also works as an
// ActivitySink writing outside any transaction.
func NewActivityLogRepository(db *bun.DB) ActivityLog {
	return &activityLog{db: db}
}

func (r *activityLog) AppendTx(ctx context.Context, tx bun.IDB, entry *ActivityLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	_, err := tx.NewInsert().Model(entry).Exec(ctx)
	return err
}

func (r *activityLog) Record(ctx context.Context, event ActivityEvent) error {
	return r.AppendTx(ctx, r.db, event.Entry())
}

func (r *activityLog) ListForEntity(ctx context.Context, entityType, entityID string) ([]*ActivityLogEntry, error) {
	records := []*ActivityLogEntry{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.entity_type = ?", entityType).
		Where("?TableAlias.entity_id = ?", entityID).
		Order("occurred_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
