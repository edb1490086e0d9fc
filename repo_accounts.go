package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type accountModel interface {
	Actor
	base() *Account
}

// Accounts is the credential store of one actor kind
type Accounts[T accountModel] interface {
	repository.Repository[T]

	GetByEmail(ctx context.Context, email string) (T, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (T, error)
	GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string) (T, error)

	SetVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, expiresAt time.Time) error
	ClearVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verified bool) error
	SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error
	ClearResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetSecretTx(ctx context.Context, tx bun.IDB, id uuid.UUID, secretHash string) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error
}

type accounts[T accountModel] struct {
	repository.Repository[T]
	db        *bun.DB
	newRecord func() T
}

// NewAccountsRepository builds the store for one actor kind. newRecord
// must return a fresh, non nil model.
func NewAccountsRepository[T accountModel](db *bun.DB, newRecord func() T) Accounts[T] {
	repo := repository.NewRepository[T](db, repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			return record.base().ID
		},
		SetID: func(record T, id uuid.UUID) {
			record.base().ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts[T]{
		Repository: repo,
		db:         db,
		newRecord:  newRecord,
	}
}

// NewBuyersRepository returns the buyer store
func NewBuyersRepository(db *bun.DB) Accounts[*Buyer] {
	return NewAccountsRepository(db, func() *Buyer { return &Buyer{} })
}

// NewAdminsRepository returns the admin store
func NewAdminsRepository(db *bun.DB) Accounts[*Admin] {
	return NewAccountsRepository(db, func() *Admin { return &Admin{} })
}

// NormalizeEmail lowercases and trims an email
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *accounts[T]) GetByEmail(ctx context.Context, email string) (T, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts[T]) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (T, error) {
	return a.getBy(ctx, tx, "email", NormalizeEmail(email))
}

func (a *accounts[T]) GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string) (T, error) {
	return a.getBy(ctx, tx, "reset_token", strings.TrimSpace(token))
}

func (a *accounts[T]) getBy(ctx context.Context, tx bun.IDB, column, value string) (T, error) {
	var zero T
	if value == "" {
		return zero, repository.NewRecordNotFound().
			WithMetadata(map[string]any{column: value})
	}

	record := a.newRecord()
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return zero, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return zero, err
	}
	return record, nil
}

func (a *accounts[T]) update(ctx context.Context, tx bun.IDB, id uuid.UUID, set func(q *bun.UpdateQuery) *bun.UpdateQuery) error {
	q := tx.NewUpdate().
		Model(a.newRecord()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)

	res, err := set(q).Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}
	return nil
}

func (a *accounts[T]) SetVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, expiresAt time.Time) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("verification_code = ?", code).
			Set("verification_expires_at = ?", expiresAt.UTC())
	})
}

func (a *accounts[T]) ClearVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verified bool) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		q = q.
			Set("verification_code = NULL").
			Set("verification_expires_at = NULL")
		if verified {
			q = q.Set("is_email_verified = ?", true)
		}
		return q
	})
}

func (a *accounts[T]) SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("reset_token = ?", token).
			Set("reset_expires_at = ?", expiresAt.UTC())
	})
}

func (a *accounts[T]) ClearResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("reset_token = NULL").
			Set("reset_expires_at = NULL")
	})
}

func (a *accounts[T]) SetSecretTx(ctx context.Context, tx bun.IDB, id uuid.UUID, secretHash string) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("secret_hash = ?", secretHash)
	})
}

func (a *accounts[T]) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("loggedin_at = ?", at.UTC())
	})
}

// AccountStore is the role agnostic view of an Accounts store used by the
// credential flows.
type AccountStore interface {
	Role() ActorRole
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (Actor, *Account, error)
	FindByResetTokenTx(ctx context.Context, tx bun.IDB, token string) (Actor, *Account, error)

	SetVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, expiresAt time.Time) error
	ClearVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verified bool) error
	SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error
	ClearResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetSecretTx(ctx context.Context, tx bun.IDB, id uuid.UUID, secretHash string) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error
}

type accountStore[T accountModel] struct {
	Accounts[T]
	role ActorRole
}

func newAccountStore[T accountModel](role ActorRole, repo Accounts[T]) AccountStore {
	return accountStore[T]{Accounts: repo, role: role}
}

func (s accountStore[T]) Role() ActorRole {
	return s.role
}

func (s accountStore[T]) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (Actor, *Account, error) {
	record, err := s.GetByEmailTx(ctx, tx, email)
	if err != nil {
		return nil, nil, err
	}
	return record, record.base(), nil
}

func (s accountStore[T]) FindByResetTokenTx(ctx context.Context, tx bun.IDB, token string) (Actor, *Account, error) {
	record, err := s.GetByResetTokenTx(ctx, tx, token)
	if err != nil {
		return nil, nil, err
	}
	return record, record.base(), nil
}
