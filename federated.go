package auth

import "context"

// FederatedSessions resolves an opaque federated session reference to the
// email the external identity provider vouched for. ok is false for
// unknown or expired references.
type FederatedSessions interface {
	Email(ctx context.Context, ref string) (email string, ok bool, err error)
}

// FederatedSessionsFunc adapts a function to FederatedSessions
type FederatedSessionsFunc func(ctx context.Context, ref string) (string, bool, error)

// Email implements FederatedSessions
func (f FederatedSessionsFunc) Email(ctx context.Context, ref string) (string, bool, error) {
	if f == nil {
		return "", false, nil
	}
	return f(ctx, ref)
}

type federatedStrategy struct {
	sessions FederatedSessions
	finder   ActorFinder
	logger   Logger
}

// NewFederatedStrategy matches a federated session against buyers first
// and then suppliers by email.
func NewFederatedStrategy(sessions FederatedSessions, finder ActorFinder, logger Logger) CredentialStrategy {
	return &federatedStrategy{
		sessions: sessions,
		finder:   finder,
		logger:   normalizeLogger(logger),
	}
}

func (s *federatedStrategy) Name() CredentialName {
	return CredentialFederatedSession
}

func (s *federatedStrategy) Resolve(ctx context.Context, creds Credentials) (ResolvedActor, bool, error) {
	ref, ok := creds.Get(CredentialFederatedSession)
	if !ok || s.sessions == nil {
		return Anonymous, false, nil
	}

	email, ok, err := s.sessions.Email(ctx, ref)
	if err != nil {
		s.logger.Warn("federated session lookup failed", "error", err)
		return Anonymous, false, nil
	}
	if !ok || email == "" {
		return Anonymous, false, nil
	}

	for _, role := range []ActorRole{RoleBuyer, RoleSupplier} {
		actor, err := s.finder.FindActorByEmail(ctx, role, email)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return Anonymous, true, err
		}
		return ResolvedActor{
			Actor:  actor,
			Role:   role,
			Source: CredentialFederatedSession,
		}, true, nil
	}

	return Anonymous, false, nil
}
