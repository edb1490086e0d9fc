package auth

import (
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const (
	// HeaderActorRole names the token slot a bearer token is filed under
	HeaderActorRole = "X-Actor-Role"
	bearerPrefix    = "bearer "
)

// RouteAuthenticator binds identity resolution and login to go-router
type RouteAuthenticator struct {
	resolver      *IdentityResolver
	auther        *Auther
	secureCookies bool
	now           Clock
	Logger        Logger
	ErrorHandler  func(c router.Context, err error) error
}

// NewHTTPAuthenticator wires the resolver and authenticator to routes
func NewHTTPAuthenticator(resolver *IdentityResolver, auther *Auther, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		resolver:      resolver,
		auther:        auther,
		secureCookies: cfg.SecureCookies,
		now:           time.Now,
		Logger:        defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

// WithLogger sets the logger
func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	return a
}

// CredentialsFromRouter collects the credential bag of a request. A
// bearer token fills the slot named by the X-Actor-Role header unless
// the matching cookie is already present.
func CredentialsFromRouter(c router.Context) Credentials {
	creds := Credentials{}
	for _, name := range GetAllCredentialNames() {
		creds.Set(name, c.Cookies(string(name)))
	}

	header := c.Header("Authorization")
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return creds
	}

	role, ok := ParseRole(strings.ToLower(strings.TrimSpace(c.Header(HeaderActorRole))))
	if !ok {
		return creds
	}

	if !creds.Has(role.Credential()) {
		creds.Set(role.Credential(), header[len(bearerPrefix):])
	}
	return creds
}

// Identify resolves the request actor and stores it in the router locals
// and the request context. Anonymous requests pass through. A token whose
// actor is gone is logged at warn level, its cookie is cleared and the
// request continues anonymous, so guarded routes answer 401.
func (a *RouteAuthenticator) Identify() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			resolved, err := a.resolver.Resolve(c.Context(), CredentialsFromRouter(c))
			if err != nil {
				if !HasTextCode(err, TextCodeOrphanedToken) {
					return a.ErrorHandler(c, err)
				}
				a.Logger.Warn("dropping orphaned credential", "path", c.Path(), "error", err)
				a.dropOrphaned(c, err)
				resolved = Anonymous
			}

			c.Locals(LocalsActorKey, resolved)
			c.SetContext(WithResolvedActor(c.Context(), resolved))
			return next(c)
		}
	}
}

// RequireRole rejects requests whose resolved actor has none of roles
func (a *RouteAuthenticator) RequireRole(roles ...ActorRole) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			resolved := GetRouterActor(c)
			if resolved.IsAnonymous() {
				return a.ErrorHandler(c, ErrUnauthorized)
			}
			for _, role := range roles {
				if resolved.Is(role) {
					return next(c)
				}
			}
			return a.ErrorHandler(c, errors.New("actor role not allowed", errors.CategoryAuthz).
				WithTextCode("FORBIDDEN").
				WithCode(errors.CodeForbidden).
				WithMetadata(map[string]any{"role": resolved.Role}))
		}
	}
}

// Login authenticates and sets the role cookie, dropping every other
// credential cookie.
func (a *RouteAuthenticator) Login(c router.Context, role ActorRole, email, secret string) (*LoginResult, error) {
	result, err := a.auther.Login(c.Context(), role, email, secret)
	if err != nil {
		return nil, err
	}
	a.SetSession(c, result)
	return result, nil
}

// SetSession writes the role cookie of result and clears the others
func (a *RouteAuthenticator) SetSession(c router.Context, result *LoginResult) {
	for _, name := range result.DropCredentials {
		a.cookieDel(c, string(name))
	}
	a.setCookieToken(c, string(result.Role.Credential()), result.Token, result.ExpiresAt)
}

// Logout clears every credential cookie
func (a *RouteAuthenticator) Logout(c router.Context) {
	for _, name := range GetAllCredentialNames() {
		a.cookieDel(c, string(name))
	}
}

func (a *RouteAuthenticator) dropOrphaned(c router.Context, err error) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return
	}
	role, ok := richErr.Metadata["role"].(ActorRole)
	if !ok {
		return
	}
	a.cookieDel(c, string(role.Credential()))
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, name, val string, expires time.Time) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.secureCookies,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  a.now.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.secureCookies,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	richErr := toRichError(err)
	status := errorStatus(richErr)

	if status >= http.StatusInternalServerError {
		a.Logger.Error("request failed", "path", c.Path(), "error", err)
	} else {
		a.Logger.Info(
			"request rejected",
			"path", c.Path(),
			"text_code", richErr.TextCode,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	}

	return c.JSON(status, errorBody(richErr, status))
}

// toRichError turns any error into a go-errors error. Validation errors
// from ozzo keep their per field messages as metadata.
func toRichError(err error) *errors.Error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]any, len(verrs))
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
		return errors.New("invalid request payload", errors.CategoryValidation).
			WithTextCode("VALIDATION_ERROR").
			WithCode(errors.CodeBadRequest).
			WithMetadata(fields)
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return errors.Wrap(err, errors.CategoryInternal, "an unexpected server error occurred").
		WithCode(errors.CodeInternal)
}

func errorStatus(richErr *errors.Error) int {
	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}
	switch richErr.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryBadInput, errors.CategoryValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(richErr *errors.Error, status int) map[string]any {
	body := map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	}
	if status < http.StatusInternalServerError && len(richErr.Metadata) > 0 {
		body["details"] = richErr.Metadata
	}
	return body
}
