package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	ActorFinder

	Buyers() Accounts[*Buyer]
	Admins() Accounts[*Admin]
	Suppliers() Suppliers
	Extensions() Extensions
	Activity() ActivityLog
	Orders() Orders
	AccountsFor(role ActorRole) (AccountStore, error)
}

type mngr struct {
	db         *bun.DB
	buyers     Accounts[*Buyer]
	admins     Accounts[*Admin]
	suppliers  Suppliers
	extensions Extensions
	activity   ActivityLog
	orders     Orders
}

// NewRepositoryManager wires every store over db
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:         db,
		buyers:     NewBuyersRepository(db),
		admins:     NewAdminsRepository(db),
		suppliers:  NewSuppliersRepository(db),
		extensions: NewExtensionsRepository(db),
		activity:   NewActivityLogRepository(db),
		orders:     NewOrdersRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.buyers == nil || m.admins == nil || m.suppliers == nil {
		return errors.New("repository accounts should be initialized")
	}
	if m.extensions == nil {
		return errors.New("repository extensions should be initialized")
	}
	if m.activity == nil {
		return errors.New("repository activity should be initialized")
	}
	if m.orders == nil {
		return errors.New("repository orders should be initialized")
	}
	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Buyers() Accounts[*Buyer] { return m.buyers }
func (m mngr) Admins() Accounts[*Admin] { return m.admins }
func (m mngr) Suppliers() Suppliers     { return m.suppliers }
func (m mngr) Extensions() Extensions   { return m.extensions }
func (m mngr) Activity() ActivityLog    { return m.activity }
func (m mngr) Orders() Orders           { return m.orders }

func (m mngr) AccountsFor(role ActorRole) (AccountStore, error) {
	switch role {
	case RoleAdmin:
		return newAccountStore(role, m.admins), nil
	case RoleSupplier:
		return newAccountStore[*Supplier](role, m.suppliers), nil
	case RoleBuyer:
		return newAccountStore(role, m.buyers), nil
	}
	return nil, goerrors.New("unknown actor role", goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"role": role})
}

func (m mngr) FindActorByID(ctx context.Context, role ActorRole, id string) (Actor, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id, "role": role})
	}

	switch role {
	case RoleAdmin:
		return found[*Admin](m.admins.GetByID(ctx, uid.String()))
	case RoleSupplier:
		return found[*Supplier](m.suppliers.GetByUUIDTx(ctx, m.db, uid))
	case RoleBuyer:
		return found[*Buyer](m.buyers.GetByID(ctx, uid.String()))
	}
	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{"id": id, "role": role})
}

func (m mngr) FindActorByEmail(ctx context.Context, role ActorRole, email string) (Actor, error) {
	switch role {
	case RoleAdmin:
		return found[*Admin](m.admins.GetByEmail(ctx, email))
	case RoleSupplier:
		return found[*Supplier](m.suppliers.GetByEmail(ctx, email))
	case RoleBuyer:
		return found[*Buyer](m.buyers.GetByEmail(ctx, email))
	}
	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{"email": email, "role": role})
}

// found keeps typed nil records from leaking out as non nil Actors
func found[T Actor](record T, err error) (Actor, error) {
	if err != nil {
		return nil, err
	}
	return record, nil
}
