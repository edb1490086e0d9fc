package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// LoginResult is returned by a successful login. DropCredentials names
// the slots the transport must clear so only one actor stays signed in.
type LoginResult struct {
	Token           string
	Role            ActorRole
	ActorID         string
	ExpiresAt       time.Time
	DropCredentials []CredentialName
}

// Auther authenticates actors with email and secret
type Auther struct {
	repo         RepositoryManager
	tokenService TokenService
	hasher       PasswordHasher
	logger       Logger
	activitySink ActivitySink
	now          Clock
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokens TokenService) *Auther {
	return &Auther{
		repo:         repo,
		tokenService: tokens,
		hasher:       BcryptHasher{},
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithPasswordHasher overrides the hasher used to compare secrets
func (s *Auther) WithPasswordHasher(hasher PasswordHasher) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithClock overrides the clock used for login timestamps
func (s *Auther) WithClock(clock Clock) *Auther {
	if clock != nil {
		s.now = clock
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login checks the secret of the role's account with email and issues a
// role token. Unknown accounts, federated only accounts, and wrong
// secrets all fail with ErrInvalidCredentials. A supplier with the right
// secret that is not approved fails with ErrNotApproved.
func (s *Auther) Login(ctx context.Context, role ActorRole, email, secret string) (*LoginResult, error) {
	store, err := s.repo.AccountsFor(role)
	if err != nil {
		return nil, err
	}

	var actor Actor
	var account *Account

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		actor, account, err = store.FindByEmailTx(ctx, tx, email)
		if err != nil {
			if isNotFound(err) {
				return ErrInvalidCredentials
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		if !account.HasSecret() {
			return ErrInvalidCredentials
		}

		if err := s.hasher.ComparePasswordAndHash(secret, account.SecretHash); err != nil {
			if HasTextCode(err, TextCodeInvalidCredentials) {
				return ErrInvalidCredentials
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare secret")
		}

		if supplier, ok := actor.(*Supplier); ok && supplier.Status != SupplierStatusApproved {
			return withMeta(ErrNotApproved, map[string]any{
				"status": supplier.Status,
			})
		}

		return store.TrackSuccessfulLoginTx(ctx, tx, account.ID, s.now.now())
	})

	if err != nil {
		ref := ActorRef{Type: string(role)}
		if actor != nil {
			ref = ActorRefFrom(actor)
		}
		s.logger.Warn("login failed", "role", role, "error", err)
		s.emitAuthEvent(ctx, ActivityLoginFailure, ref, map[string]any{
			"identifier": NormalizeEmail(email),
			"error":      err.Error(),
		})
		return nil, err
	}

	token, expiresAt, err := s.tokenService.Issue(actor.ActorID(), role)
	if err != nil {
		s.logger.Error("login failed to issue token", "error", err)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityLoginSuccess, ActorRefFrom(actor), map[string]any{
		"identifier": NormalizeEmail(email),
	})

	return &LoginResult{
		Token:           token,
		Role:            role,
		ActorID:         actor.ActorID(),
		ExpiresAt:       expiresAt,
		DropCredentials: OtherRoleCredentials(role),
	}, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, action ActivityAction, actor ActorRef, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		Action:     action,
		Actor:      actor,
		EntityType: EntityAccount,
		EntityID:   actor.ID,
		Metadata:   metadata,
		OccurredAt: s.now.now(),
	})
}
