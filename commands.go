package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const commandTimeout = 10 * time.Second

// CredentialPolicy holds the credential lifecycle settings shared by the
// command handlers.
type CredentialPolicy struct {
	OTPTTL              time.Duration
	ResetTokenTTL       time.Duration
	RequireVerification bool
	TrialMonths         int
}

// DefaultCredentialPolicy returns the policy used when none is given
func DefaultCredentialPolicy() CredentialPolicy {
	return CredentialPolicy{
		OTPTTL:              OTPTTL,
		ResetTokenTTL:       ResetTokenTTL,
		RequireVerification: true,
		TrialMonths:         DefaultTrialMonths,
	}
}

// CredentialPolicyFromConfig extracts the policy from a Config
func CredentialPolicyFromConfig(cfg Config) CredentialPolicy {
	p := DefaultCredentialPolicy()
	if cfg.OTPTTL > 0 {
		p.OTPTTL = cfg.OTPTTL
	}
	if cfg.ResetTokenTTL > 0 {
		p.ResetTokenTTL = cfg.ResetTokenTTL
	}
	if cfg.TrialMonths > 0 {
		p.TrialMonths = cfg.TrialMonths
	}
	p.RequireVerification = cfg.RequireVerification
	return p
}

// HandlerOption configures a command handler
type HandlerOption func(*handlerBase)

// WithHandlerLogger sets the logger
func WithHandlerLogger(logger Logger) HandlerOption {
	return func(h *handlerBase) {
		h.logger = normalizeLogger(logger)
	}
}

// WithHandlerActivitySink sets the sink used to emit events
func WithHandlerActivitySink(sink ActivitySink) HandlerOption {
	return func(h *handlerBase) {
		h.activity = normalizeActivitySink(sink)
	}
}

// WithHandlerNotifications sets the notification gateway
func WithHandlerNotifications(gateway NotificationGateway) HandlerOption {
	return func(h *handlerBase) {
		h.gateway = gateway
	}
}

// WithHandlerClock injects a custom clock
func WithHandlerClock(clock Clock) HandlerOption {
	return func(h *handlerBase) {
		if clock != nil {
			h.now = clock
		}
	}
}

// WithHandlerPasswordHasher overrides the bcrypt hasher
func WithHandlerPasswordHasher(hasher PasswordHasher) HandlerOption {
	return func(h *handlerBase) {
		if hasher != nil {
			h.hasher = hasher
		}
	}
}

// WithCredentialPolicy overrides the credential policy
func WithCredentialPolicy(policy CredentialPolicy) HandlerOption {
	return func(h *handlerBase) {
		h.policy = policy
	}
}

type handlerBase struct {
	repo     RepositoryManager
	logger   Logger
	activity ActivitySink
	gateway  NotificationGateway
	hasher   PasswordHasher
	now      Clock
	policy   CredentialPolicy
}

func newHandlerBase(repo RepositoryManager, opts []HandlerOption) handlerBase {
	h := handlerBase{
		repo:     repo,
		logger:   defLogger{},
		activity: noopActivitySink{},
		hasher:   BcryptHasher{},
		now:      time.Now,
		policy:   DefaultCredentialPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&h)
		}
	}
	return h
}

func (h handlerBase) notify(ctx context.Context, email string, kind NotificationKind, data map[string]any) {
	newNotifier(h.gateway, h.logger).send(ctx, email, kind, data)
}

func (h handlerBase) record(ctx context.Context, action ActivityAction, actor Actor, metadata map[string]any) {
	ref := ActorRefFrom(actor)
	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		Action:     action,
		Actor:      ref,
		EntityType: EntityAccount,
		EntityID:   ref.ID,
		Metadata:   metadata,
		OccurredAt: h.now.now(),
	})
}

func cancelled(ctx context.Context, operation string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during "+operation,
		)
	default:
		return nil
	}
}

// unwrapTxError keeps rich errors as they are and wraps anything else
func unwrapTxError(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}
