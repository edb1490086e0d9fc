package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-marketplace-auth"

	_ "github.com/mattn/go-sqlite3"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// testClock is a movable clock shared by every service of a fixture
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testNow}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// warnLogger keeps the messages logged at warn level
type warnLogger struct {
	nopLogger
	mu    sync.Mutex
	warns []string
}

func (l *warnLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *warnLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

// capturingSink records every event it receives
type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Actions() []auth.ActivityAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.ActivityAction, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Action)
	}
	return out
}

func (c *capturingSink) Last() auth.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return auth.ActivityEvent{}
	}
	return c.events[len(c.events)-1]
}

// notificationLog records notifications by kind
type notificationLog struct {
	mu   sync.Mutex
	sent []sentNotification
}

type sentNotification struct {
	Email string
	Kind  auth.NotificationKind
	Data  map[string]any
}

func (n *notificationLog) Notify(_ context.Context, email string, kind auth.NotificationKind, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Email: email, Kind: kind, Data: data})
	return nil
}

func (n *notificationLog) Kinds() []auth.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]auth.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

func (n *notificationLog) Last() sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentNotification{}
	}
	return n.sent[len(n.sent)-1]
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, auth.Migrate(context.Background(), db))

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// fixture bundles a repository and services sharing one clock
type fixture struct {
	db            *bun.DB
	repo          auth.RepositoryManager
	clock         *testClock
	tokens        *auth.TokenServiceImpl
	hasher        auth.PasswordHasher
	sink          *capturingSink
	notifications *notificationLog
	engine        *auth.LifecycleEngine
	auther        *auth.Auther
}

func newFixture(t *testing.T, opts ...auth.LifecycleOption) *fixture {
	t.Helper()

	db := setupTestDB(t)
	repo := auth.NewRepositoryManager(db)
	require.NoError(t, repo.Validate())

	clock := newTestClock()
	tokens, err := auth.NewTokenService([]byte(testSigningKey), "marketplace", auth.TokenTTLs{},
		auth.WithTokenClock(clock.Now),
		auth.WithTokenLogger(nopLogger{}),
	)
	require.NoError(t, err)

	f := &fixture{
		db:            db,
		repo:          repo,
		clock:         clock,
		tokens:        tokens,
		hasher:        auth.NewBcryptHasher(bcrypt.MinCost),
		sink:          &capturingSink{},
		notifications: &notificationLog{},
	}

	lifecycleOpts := append([]auth.LifecycleOption{
		auth.WithLifecycleClock(clock.Now),
		auth.WithLifecycleLogger(nopLogger{}),
		auth.WithLifecycleActivitySink(f.sink),
		auth.WithLifecycleNotifications(f.notifications),
	}, opts...)
	f.engine = auth.NewLifecycleEngine(repo, lifecycleOpts...)

	f.auther = auth.NewAuthenticator(repo, tokens).
		WithLogger(nopLogger{}).
		WithActivitySink(f.sink).
		WithPasswordHasher(f.hasher).
		WithClock(clock.Now)

	return f
}

func (f *fixture) handlerOpts() []auth.HandlerOption {
	return []auth.HandlerOption{
		auth.WithHandlerLogger(nopLogger{}),
		auth.WithHandlerActivitySink(f.sink),
		auth.WithHandlerNotifications(f.notifications),
		auth.WithHandlerClock(f.clock.Now),
		auth.WithHandlerPasswordHasher(f.hasher),
	}
}

func (f *fixture) hash(t *testing.T, secret string) string {
	t.Helper()
	h, err := f.hasher.HashPassword(secret)
	require.NoError(t, err)
	return h
}

func (f *fixture) account(t *testing.T, email, secret string) auth.Account {
	t.Helper()
	now := f.clock.Now()
	a := auth.Account{
		ID:            uuid.New(),
		Email:         auth.NormalizeEmail(email),
		EmailVerified: true,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}
	if secret != "" {
		a.SecretHash = f.hash(t, secret)
	}
	return a
}

func (f *fixture) createBuyer(t *testing.T, email, secret string) *auth.Buyer {
	t.Helper()
	b, err := f.repo.Buyers().Create(context.Background(), &auth.Buyer{Account: f.account(t, email, secret)})
	require.NoError(t, err)
	return b
}

func (f *fixture) createAdmin(t *testing.T, email, secret string) *auth.Admin {
	t.Helper()
	a, err := f.repo.Admins().Create(context.Background(), &auth.Admin{Account: f.account(t, email, secret)})
	require.NoError(t, err)
	return a
}

type supplierOption func(*auth.Supplier)

func withStatus(status auth.SupplierStatus) supplierOption {
	return func(s *auth.Supplier) {
		s.Status = status
	}
}

func withTrialEnd(end time.Time) supplierOption {
	return func(s *auth.Supplier) {
		s.TrialEndDate = &end
	}
}

func withSubscriptionExpiry(expiry time.Time) supplierOption {
	return func(s *auth.Supplier) {
		s.IsSubscribed = true
		s.SubscriptionStatus = auth.SubscriptionSubscribed
		s.SubscriptionExpiry = &expiry
	}
}

func (f *fixture) createSupplier(t *testing.T, email, secret string, opts ...supplierOption) *auth.Supplier {
	t.Helper()
	now := f.clock.Now()
	end := auth.AddMonths(now, auth.DefaultTrialMonths)
	s := &auth.Supplier{
		Account:            f.account(t, email, secret),
		CompanyName:        "Acme Supplies",
		Status:             auth.SupplierStatusPending,
		TrialStartDate:     &now,
		TrialEndDate:       &end,
		SubscriptionStatus: auth.SubscriptionTrial,
		Badges:             auth.Badges{},
	}
	for _, opt := range opts {
		opt(s)
	}
	created, err := f.repo.Suppliers().Create(context.Background(), s)
	require.NoError(t, err)
	return created
}

func (f *fixture) reloadSupplier(t *testing.T, id uuid.UUID) *auth.Supplier {
	t.Helper()
	s, err := f.engine.Supplier(context.Background(), id)
	require.NoError(t, err)
	return s
}

var adminRef = auth.ActorRef{ID: "admin-1", Type: string(auth.RoleAdmin)}
