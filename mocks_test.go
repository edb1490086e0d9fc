package auth_test

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"

	auth "github.com/goliatone/go-marketplace-auth"
)

// routerContext is embedded under its own name so MockContext can define
// a Context method.
type routerContext = router.Context

// MockContext is a router.Context backed by in memory request state.
// Methods the tests never reach fall through to the nil embedded
// interface and panic.
type MockContext struct {
	routerContext

	ctx     context.Context
	path    string
	body    []byte
	params  map[string]string
	query   map[string]string
	headers map[string]string
	cookies map[string]string
	locals  map[any]any

	SetCookies []*router.Cookie
	StatusCode int
	Response   any
	NextCalled bool
}

var _ router.Context = (*MockContext)(nil)

func NewMockContext() *MockContext {
	return &MockContext{
		ctx:     context.Background(),
		path:    "/",
		params:  map[string]string{},
		query:   map[string]string{},
		headers: map[string]string{},
		cookies: map[string]string{},
		locals:  map[any]any{},
	}
}

func (m *MockContext) WithCookie(name auth.CredentialName, value string) *MockContext {
	m.cookies[string(name)] = value
	return m
}

func (m *MockContext) WithHeader(key, value string) *MockContext {
	m.headers[key] = value
	return m
}

func (m *MockContext) WithParam(key, value string) *MockContext {
	m.params[key] = value
	return m
}

func (m *MockContext) WithQuery(key, value string) *MockContext {
	m.query[key] = value
	return m
}

func (m *MockContext) WithJSONBody(v any) *MockContext {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.body = raw
	return m
}

func (m *MockContext) WithResolved(resolved auth.ResolvedActor) *MockContext {
	m.locals[auth.LocalsActorKey] = resolved
	return m
}

// CookieNamed returns the last cookie written under name
func (m *MockContext) CookieNamed(name auth.CredentialName) *router.Cookie {
	for i := len(m.SetCookies) - 1; i >= 0; i-- {
		if m.SetCookies[i].Name == string(name) {
			return m.SetCookies[i]
		}
	}
	return nil
}

// ResponseBody returns the JSON response decoded into a map
func (m *MockContext) ResponseBody() map[string]any {
	raw, err := json.Marshal(m.Response)
	if err != nil {
		panic(err)
	}
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	return m.ctx
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.ctx = ctx
}

func (m *MockContext) Path() string {
	return m.path
}

func (m *MockContext) Header(key string) string {
	return m.headers[key]
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := m.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.SetCookies = append(m.SetCookies, cookie)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if v, ok := m.params[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) Query(key string, defaultValue string) string {
	if v, ok := m.query[key]; ok {
		return v
	}
	return defaultValue
}

func (m *MockContext) Body() []byte {
	return m.body
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.locals[key] = value[0]
		return value[0]
	}
	return m.locals[key]
}

func (m *MockContext) Bind(v any) error {
	if len(m.body) == 0 {
		return nil
	}
	return json.Unmarshal(m.body, v)
}

func (m *MockContext) JSON(code int, val any) error {
	m.StatusCode = code
	m.Response = val
	return nil
}

func (m *MockContext) NoContent(code int) error {
	m.StatusCode = code
	return nil
}

// MockActorFinder mocks auth.ActorFinder
type MockActorFinder struct {
	mock.Mock
}

func (m *MockActorFinder) FindActorByID(ctx context.Context, role auth.ActorRole, id string) (auth.Actor, error) {
	args := m.Called(ctx, role, id)
	actor, _ := args.Get(0).(auth.Actor)
	return actor, args.Error(1)
}

func (m *MockActorFinder) FindActorByEmail(ctx context.Context, role auth.ActorRole, email string) (auth.Actor, error) {
	args := m.Called(ctx, role, email)
	actor, _ := args.Get(0).(auth.Actor)
	return actor, args.Error(1)
}

// MockFederatedSessions mocks auth.FederatedSessions
type MockFederatedSessions struct {
	mock.Mock
}

func (m *MockFederatedSessions) Email(ctx context.Context, ref string) (string, bool, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Bool(1), args.Error(2)
}

// MockPaymentGateway mocks auth.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, amount int64, currency string, metadata map[string]string) (string, error) {
	args := m.Called(ctx, amount, currency, metadata)
	return args.String(0), args.Error(1)
}

// MockTokenValidator mocks auth.TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) Validate(token string, role auth.ActorRole) (auth.AuthClaims, error) {
	args := m.Called(token, role)
	claims, _ := args.Get(0).(auth.AuthClaims)
	return claims, args.Error(1)
}
