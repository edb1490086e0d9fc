// Package redissession keeps federated sign-in sessions in Redis. The
// identity provider callback writes a session and the resolver reads it
// back through auth.FederatedSessions.
package redissession

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultPrefix namespaces session keys
	DefaultPrefix = "federated_session:"
	// DefaultTTL is the lifetime of a federated session
	DefaultTTL = 24 * time.Hour
)

// Session is the stored payload
type Session struct {
	Email     string    `json:"email"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store implements auth.FederatedSessions
type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ auth.FederatedSessions = (*Store)(nil)

// Option customizes the store
type Option func(*Store)

// WithPrefix overrides the key prefix
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL overrides the session lifetime
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New wraps a redis client
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Connect opens a client for addr and pings it
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to connect to redis").
			WithMetadata(map[string]any{"addr": addr})
	}
	return client, nil
}

// Create stores a session for email and returns its reference
func (s *Store) Create(ctx context.Context, email, provider string) (string, error) {
	ref := uuid.NewString()
	body, err := json.Marshal(Session{
		Email:     auth.NormalizeEmail(email),
		Provider:  provider,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session")
	}
	if err := s.client.Set(ctx, s.key(ref), body, s.ttl).Err(); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "failed to store session")
	}
	return ref, nil
}

// Email returns the email of the session ref. Unknown or expired refs
// report ok=false.
func (s *Store) Email(ctx context.Context, ref string) (string, bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false, nil
	}

	raw, err := s.client.Get(ctx, s.key(ref)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read session")
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return "", false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode session")
	}
	if session.Email == "" {
		return "", false, nil
	}
	return session.Email, true, nil
}

// Delete removes a session
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := s.client.Del(ctx, s.key(ref)).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to delete session")
	}
	return nil
}

func (s *Store) key(ref string) string {
	return s.prefix + ref
}
