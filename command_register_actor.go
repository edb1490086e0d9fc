package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is used to parse phone numbers without a country prefix
const DefaultPhoneRegion = "US"

type RegisterActorMessage struct {
	Role        ActorRole `json:"role"`
	Email       string    `json:"email"`
	Secret      string    `json:"secret"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	CompanyName string    `json:"company_name"`
	UseHashid   bool      `json:"-"`
	OnResponse  func(resp *RegisterActorResponse)
}

func (e RegisterActorMessage) Type() string { return "actor.register" }

// Validate checks the message fields
func (e RegisterActorMessage) Validate() error {
	e.Email = NormalizeEmail(e.Email)
	return validation.ValidateStruct(&e,
		validation.Field(&e.Role, validation.Required, validation.In(RoleBuyer, RoleSupplier, RoleAdmin)),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Secret, validation.Required, validation.Length(8, 100)),
		validation.Field(&e.Name, validation.Length(0, 200)),
		validation.Field(&e.CompanyName, validation.Length(0, 200)),
	)
}

type RegisterActorResponse struct {
	Actor            Actor
	Token            string
	ExpiresAt        time.Time
	VerificationCode string
}

// RegisterActorHandler creates actors of any role
type RegisterActorHandler struct {
	handlerBase
	tokens TokenService
}

// NewRegisterActorHandler creates a handler with sane defaults.
func NewRegisterActorHandler(repo RepositoryManager, tokens TokenService, opts ...HandlerOption) *RegisterActorHandler {
	return &RegisterActorHandler{
		handlerBase: newHandlerBase(repo, opts),
		tokens:      tokens,
	}
}

func (h *RegisterActorHandler) Execute(ctx context.Context, event RegisterActorMessage) error {
	if err := cancelled(ctx, "actor registration"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *RegisterActorHandler) execute(ctx context.Context, event RegisterActorMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration").
			WithCode(goerrors.CodeBadRequest)
	}

	store, err := h.repo.AccountsFor(event.Role)
	if err != nil {
		return err
	}

	phone, err := NormalizePhone(event.Phone, DefaultPhoneRegion)
	if err != nil {
		return err
	}

	hash, err := h.hasher.HashPassword(event.Secret)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid secret provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash secret")
	}

	now := h.now.now().UTC()
	email := NormalizeEmail(event.Email)

	account := Account{
		ID:         newActorID(email, event.UseHashid),
		Email:      email,
		SecretHash: hash,
		Name:       strings.TrimSpace(event.Name),
		Phone:      phone,
		CreatedAt:  &now,
		UpdatedAt:  &now,
	}

	var code string
	if h.policy.RequireVerification && event.Role.RequiresEmailVerification() {
		if code, err = GenerateOTP(); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
		}
		account.VerificationCode = code
		account.VerificationExpiresAt = timePtr(now.Add(h.policy.OTPTTL))
	} else {
		account.EmailVerified = true
	}

	var actor Actor
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, _, err := store.FindByEmailTx(ctx, tx, email); err == nil {
			return withMeta(ErrAlreadyExists, map[string]any{"role": event.Role})
		} else if !isNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing account")
		}

		actor, err = h.create(ctx, tx, event, account, now)
		if err != nil {
			if isUniqueViolation(err) {
				return withMeta(ErrAlreadyExists, map[string]any{"role": event.Role})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create account")
		}
		return nil
	})
	if err != nil {
		return unwrapTxError(err, "actor registration transaction failed")
	}

	token, expiresAt, err := h.tokens.Issue(actor.ActorID(), event.Role)
	if err != nil {
		return err
	}

	h.record(ctx, ActivityActorRegistered, actor, map[string]any{"role": event.Role})
	h.notify(ctx, email, NotifyWelcome, map[string]any{
		"name": account.Name,
		"role": event.Role,
	})
	if code != "" {
		h.notify(ctx, email, NotifyEmailVerification, map[string]any{
			"code":       code,
			"expires_at": account.VerificationExpiresAt,
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(&RegisterActorResponse{
			Actor:            actor,
			Token:            token,
			ExpiresAt:        expiresAt,
			VerificationCode: code,
		})
	}

	return nil
}

func (h *RegisterActorHandler) create(ctx context.Context, tx bun.IDB, event RegisterActorMessage, account Account, now time.Time) (Actor, error) {
	switch event.Role {
	case RoleBuyer:
		return found[*Buyer](h.repo.Buyers().CreateTx(ctx, tx, &Buyer{Account: account}))
	case RoleAdmin:
		return found[*Admin](h.repo.Admins().CreateTx(ctx, tx, &Admin{Account: account}))
	case RoleSupplier:
		supplier := &Supplier{
			Account:            account,
			CompanyName:        strings.TrimSpace(event.CompanyName),
			Status:             SupplierStatusPending,
			TrialStartDate:     timePtr(now),
			TrialEndDate:       timePtr(AddMonths(now, h.policy.TrialMonths)),
			SubscriptionStatus: SubscriptionTrial,
			Badges:             Badges{},
		}
		return found[*Supplier](h.repo.Suppliers().CreateTx(ctx, tx, supplier))
	}
	return nil, goerrors.New("unknown actor role", goerrors.CategoryBadInput)
}

func newActorID(email string, useHashid bool) uuid.UUID {
	if useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			return id
		}
	}
	return uuid.New()
}

// NormalizePhone formats a phone number as E.164. Blank input stays blank.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"phone": raw})
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
