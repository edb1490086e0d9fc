package auth

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// ActorFinder loads actors by role. Missing records report a not found error.
type ActorFinder interface {
	FindActorByID(ctx context.Context, role ActorRole, id string) (Actor, error)
	FindActorByEmail(ctx context.Context, role ActorRole, email string) (Actor, error)
}

// ResolvedActor is the outcome of identity resolution
type ResolvedActor struct {
	Actor  Actor
	Role   ActorRole
	Source CredentialName
	Claims AuthClaims
}

// Anonymous is the resolution of a request with no usable credential
var Anonymous = ResolvedActor{}

// IsAnonymous reports whether no actor resolved
func (r ResolvedActor) IsAnonymous() bool {
	return r.Actor == nil
}

// Is reports whether the resolved actor has the given role
func (r ResolvedActor) Is(role ActorRole) bool {
	return !r.IsAnonymous() && r.Role == role
}

// CredentialStrategy tries to turn one credential slot into an actor.
// matched=false means the slot was absent or invalid and resolution moves
// on. A matched strategy ends resolution, with err set when the match
// could not be completed.
type CredentialStrategy interface {
	Name() CredentialName
	Resolve(ctx context.Context, creds Credentials) (actor ResolvedActor, matched bool, err error)
}

type tokenStrategy struct {
	role      ActorRole
	validator TokenValidator
	finder    ActorFinder
	logger    Logger
}

// NewTokenStrategy resolves the token slot of role
func NewTokenStrategy(role ActorRole, validator TokenValidator, finder ActorFinder, logger Logger) CredentialStrategy {
	return &tokenStrategy{
		role:      role,
		validator: validator,
		finder:    finder,
		logger:    normalizeLogger(logger),
	}
}

func (s *tokenStrategy) Name() CredentialName {
	return s.role.Credential()
}

func (s *tokenStrategy) Resolve(ctx context.Context, creds Credentials) (ResolvedActor, bool, error) {
	raw, ok := creds.Get(s.Name())
	if !ok {
		return Anonymous, false, nil
	}

	claims, err := s.validator.Validate(raw, s.role)
	if err != nil {
		s.logger.Debug("ignoring invalid credential", "credential", s.Name(), "error", err)
		return Anonymous, false, nil
	}

	actor, err := s.finder.FindActorByID(ctx, s.role, claims.ActorID())
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("token references missing actor", "role", s.role, "actor_id", claims.ActorID())
			return Anonymous, true, withMeta(ErrOrphanedToken, map[string]any{
				"role":     s.role,
				"actor_id": claims.ActorID(),
			})
		}
		return Anonymous, true, errors.Wrap(err, errors.CategoryInternal, "failed to load actor")
	}

	return ResolvedActor{
		Actor:  actor,
		Role:   s.role,
		Source: s.Name(),
		Claims: claims,
	}, true, nil
}

// IdentityResolver decides which single actor a request is authenticated
// as. It only reads and is safe for concurrent use.
type IdentityResolver struct {
	strategies []CredentialStrategy
	logger     Logger
}

// ResolverOption customizes the resolver
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	federated FederatedSessions
	logger    Logger
	extra     []CredentialStrategy
}

// WithFederatedSessions enables the federated session strategy
func WithFederatedSessions(sessions FederatedSessions) ResolverOption {
	return func(c *resolverConfig) {
		c.federated = sessions
	}
}

// WithResolverLogger sets the logger
func WithResolverLogger(logger Logger) ResolverOption {
	return func(c *resolverConfig) {
		c.logger = logger
	}
}

// WithExtraStrategies appends strategies after the built in ones
func WithExtraStrategies(strategies ...CredentialStrategy) ResolverOption {
	return func(c *resolverConfig) {
		c.extra = append(c.extra, strategies...)
	}
}

// NewIdentityResolver builds the resolver with the fixed precedence
// admin, supplier, buyer, federated.
func NewIdentityResolver(validator TokenValidator, finder ActorFinder, opts ...ResolverOption) *IdentityResolver {
	cfg := &resolverConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	logger := normalizeLogger(cfg.logger)

	strategies := make([]CredentialStrategy, 0, 4+len(cfg.extra))
	for _, role := range GetAllRoles() {
		strategies = append(strategies, NewTokenStrategy(role, validator, finder, logger))
	}
	if cfg.federated != nil {
		strategies = append(strategies, NewFederatedStrategy(cfg.federated, finder, logger))
	}
	strategies = append(strategies, cfg.extra...)

	return &IdentityResolver{
		strategies: strategies,
		logger:     logger,
	}
}

// Resolve returns the first matching actor or Anonymous. An error is only
// returned by a matched strategy, in which case the actor is Anonymous.
func (r *IdentityResolver) Resolve(ctx context.Context, creds Credentials) (ResolvedActor, error) {
	for _, strategy := range r.strategies {
		select {
		case <-ctx.Done():
			return Anonymous, ctx.Err()
		default:
		}

		resolved, matched, err := strategy.Resolve(ctx, creds)
		if !matched {
			continue
		}
		if err != nil {
			return Anonymous, err
		}
		return resolved, nil
	}
	return Anonymous, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) ||
		repository.IsRecordNotFound(err) ||
		errors.IsNotFound(err) ||
		HasTextCode(err, TextCodeNotFound)
}
