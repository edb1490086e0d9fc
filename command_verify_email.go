package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	Role  ActorRole `json:"role"`
	Email string    `json:"email"`
	Code  string    `json:"code"`
}

func (e VerifyEmailMessage) Type() string { return "actor.verify_email" }

// Validate checks the message fields
func (e VerifyEmailMessage) Validate() error {
	e.Email = NormalizeEmail(e.Email)
	return validation.ValidateStruct(&e,
		validation.Field(&e.Role, validation.Required, validation.In(RoleBuyer, RoleSupplier, RoleAdmin)),
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Code, validation.Required),
	)
}

// VerifyEmailHandler checks a one time verification code. Any attempt
// against an outstanding code consumes it.
type VerifyEmailHandler struct {
	handlerBase
}

// NewVerifyEmailHandler creates a handler with sane defaults.
func NewVerifyEmailHandler(repo RepositoryManager, opts ...HandlerOption) *VerifyEmailHandler {
	return &VerifyEmailHandler{handlerBase: newHandlerBase(repo, opts)}
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	if err := cancelled(ctx, "email verification"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := event.Validate(); err != nil {
		return ErrInvalidOrExpiredCode
	}

	store, err := h.repo.AccountsFor(event.Role)
	if err != nil {
		return err
	}

	var actor Actor
	// outcome is returned after commit so a failed attempt still burns the code
	var outcome error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var account *Account
		actor, account, err = store.FindByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if isNotFound(err) {
				outcome = ErrInvalidOrExpiredCode
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		if account.VerificationCode == "" {
			outcome = ErrInvalidOrExpiredCode
			return nil
		}

		valid := subtle.ConstantTimeCompare(
			[]byte(account.VerificationCode),
			[]byte(strings.TrimSpace(event.Code)),
		) == 1
		if isExpired(account.VerificationExpiresAt, h.now.now()) {
			valid = false
		}

		if err := store.ClearVerificationCodeTx(ctx, tx, account.ID, valid); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear verification code")
		}

		if !valid {
			outcome = ErrInvalidOrExpiredCode
		}
		return nil
	})
	if err != nil {
		return unwrapTxError(err, "email verification transaction failed")
	}
	if outcome != nil {
		return outcome
	}

	h.record(ctx, ActivityEmailVerified, actor, nil)
	return nil
}

type ResendVerificationMessage struct {
	Role       ActorRole `json:"role"`
	Email      string    `json:"email"`
	OnResponse func(resp *ResendVerificationResponse)
}

func (e ResendVerificationMessage) Type() string { return "actor.resend_verification" }

type ResendVerificationResponse struct {
	// Sent is false for unknown or already verified accounts
	Sent bool
	Code string
}

// ResendVerificationHandler replaces any outstanding code with a new one
type ResendVerificationHandler struct {
	handlerBase
}

// NewResendVerificationHandler creates a handler with sane defaults.
func NewResendVerificationHandler(repo RepositoryManager, opts ...HandlerOption) *ResendVerificationHandler {
	return &ResendVerificationHandler{handlerBase: newHandlerBase(repo, opts)}
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	if err := cancelled(ctx, "verification resend"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	store, err := h.repo.AccountsFor(event.Role)
	if err != nil {
		return err
	}

	resp := &ResendVerificationResponse{}
	var email string

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, account, err := store.FindByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}
		if account.EmailVerified {
			return nil
		}

		code, err := GenerateOTP()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
		}
		if err := store.SetVerificationCodeTx(ctx, tx, account.ID, code, h.now.now().Add(h.policy.OTPTTL)); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification code")
		}

		resp.Sent = true
		resp.Code = code
		email = account.Email
		return nil
	})
	if err != nil {
		return unwrapTxError(err, "verification resend transaction failed")
	}

	if resp.Sent {
		h.notify(ctx, email, NotifyEmailVerification, map[string]any{"code": resp.Code})
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
	return nil
}
