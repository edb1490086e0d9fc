package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type InitializeSecretResetMessage struct {
	Role       ActorRole `json:"role"`
	Email      string    `json:"email"`
	OnResponse func(resp *InitializeSecretResetResponse)
}

func (p InitializeSecretResetMessage) Type() string { return "actor.secret_reset" }

type InitializeSecretResetResponse struct {
	// Token is empty when no account matched. Callers must answer the
	// same way in both cases.
	Token string
}

// InitializeSecretResetHandler stores a reset token on the owner record.
// A new request replaces any older token.
type InitializeSecretResetHandler struct {
	handlerBase
}

// NewInitializeSecretResetHandler creates a handler with sane defaults.
func NewInitializeSecretResetHandler(repo RepositoryManager, opts ...HandlerOption) *InitializeSecretResetHandler {
	return &InitializeSecretResetHandler{handlerBase: newHandlerBase(repo, opts)}
}

func (h *InitializeSecretResetHandler) Execute(ctx context.Context, event InitializeSecretResetMessage) error {
	if err := cancelled(ctx, "secret reset initialization"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *InitializeSecretResetHandler) execute(ctx context.Context, event InitializeSecretResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	store, err := h.repo.AccountsFor(event.Role)
	if err != nil {
		return err
	}

	resp := &InitializeSecretResetResponse{}
	var email string

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, account, err := store.FindByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for secret reset")
		}

		token, err := GenerateResetToken()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
		}

		expiresAt := h.now.now().Add(h.policy.ResetTokenTTL)
		if err := store.SetResetTokenTx(ctx, tx, account.ID, token, expiresAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset token")
		}

		resp.Token = token
		email = account.Email
		return nil
	})
	if err != nil {
		return unwrapTxError(err, "secret reset initialization failed")
	}

	if resp.Token != "" {
		h.notify(ctx, email, NotifySecretReset, map[string]any{
			"token": resp.Token,
			"role":  event.Role,
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
	return nil
}
