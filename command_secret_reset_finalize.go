package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizeSecretResetMessage struct {
	Role   ActorRole `json:"role"`
	Token  string    `json:"token"`
	Secret string    `json:"secret"`
}

func (e FinalizeSecretResetMessage) Type() string { return "actor.secret_reset.finalize" }

// Validate checks the new secret
func (e FinalizeSecretResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Secret, validation.Required, validation.Length(8, 100)),
	)
}

// FinalizeSecretResetHandler consumes a reset token and stores the new
// secret. The token is cleared whatever the outcome.
type FinalizeSecretResetHandler struct {
	handlerBase
}

// NewFinalizeSecretResetHandler creates a handler with sane defaults.
func NewFinalizeSecretResetHandler(repo RepositoryManager, opts ...HandlerOption) *FinalizeSecretResetHandler {
	return &FinalizeSecretResetHandler{handlerBase: newHandlerBase(repo, opts)}
}

func (h *FinalizeSecretResetHandler) Execute(ctx context.Context, event FinalizeSecretResetMessage) error {
	if err := cancelled(ctx, "secret reset finalization"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *FinalizeSecretResetHandler) execute(ctx context.Context, event FinalizeSecretResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new secret").
			WithCode(goerrors.CodeBadRequest)
	}

	store, err := h.repo.AccountsFor(event.Role)
	if err != nil {
		return err
	}

	hash, err := h.hasher.HashPassword(event.Secret)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new secret provided")
	}

	var actor Actor
	var email string
	var outcome error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var account *Account
		actor, account, err = store.FindByResetTokenTx(ctx, tx, event.Token)
		if err != nil {
			if isNotFound(err) {
				outcome = ErrInvalidOrExpiredCode
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve reset token")
		}

		if err := store.ClearResetTokenTx(ctx, tx, account.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear reset token")
		}

		if isExpired(account.ResetExpiresAt, h.now.now()) {
			outcome = ErrInvalidOrExpiredCode
			return nil
		}

		if err := store.SetSecretTx(ctx, tx, account.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update secret")
		}
		email = account.Email
		return nil
	})
	if err != nil {
		return unwrapTxError(err, "failed to finalize secret reset")
	}
	if outcome != nil {
		return outcome
	}

	h.record(ctx, ActivitySecretReset, actor, nil)
	h.notify(ctx, email, NotifySecretChanged, nil)
	return nil
}
