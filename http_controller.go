package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// HeaderPaymentSignature carries the shared secret of payment webhooks
const HeaderPaymentSignature = "X-Payment-Signature"

// RegisterRoutes mounts the account, admin, supplier and payment routes
func RegisterRoutes[T any](app router.Router[T], controller *Controller) {
	a := controller.Auth

	app.Use(a.Identify())

	anyActor := a.RequireRole(GetAllRoles()...)
	admin := a.RequireRole(RoleAdmin)
	supplier := a.RequireRole(RoleSupplier)

	app.Post(controller.Routes.Logout, controller.Logout).SetName("auth.logout")
	app.Get(controller.Routes.Me, controller.Me, anyActor).SetName("auth.me")

	app.Post("/:role/register", controller.Register).SetName("auth.register")
	app.Post("/:role/login", controller.Login).SetName("auth.login")
	app.Post("/:role/verify-email", controller.VerifyEmail).SetName("auth.verify-email")
	app.Post("/:role/verify-email/resend", controller.ResendVerification).SetName("auth.verify-email.resend")
	app.Post("/:role/password-reset", controller.PasswordResetRequest).SetName("auth.pwd-reset")
	app.Post("/:role/password-reset/:token", controller.PasswordResetExecute).SetName("auth.pwd-reset-do")

	app.Get("/admin/suppliers", controller.ListSuppliers, admin).SetName("admin.suppliers")
	app.Post("/admin/suppliers/:id/approve", controller.ApproveSupplier, admin).SetName("admin.suppliers.approve")
	app.Post("/admin/suppliers/:id/reject", controller.RejectSupplier, admin).SetName("admin.suppliers.reject")
	app.Post("/admin/suppliers/:id/suspend", controller.SuspendSupplier, admin).SetName("admin.suppliers.suspend")
	app.Post("/admin/suppliers/:id/ban", controller.BanSupplier, admin).SetName("admin.suppliers.ban")
	app.Post("/admin/suppliers/:id/restore", controller.RestoreSupplier, admin).SetName("admin.suppliers.restore")
	app.Post("/admin/suppliers/:id/badges", controller.UpdateBadges, admin).SetName("admin.suppliers.badges")
	app.Post("/admin/suppliers/:id/extend", controller.ExtendTrial, admin).SetName("admin.suppliers.extend")
	app.Post("/admin/extensions/:id/resolve", controller.ResolveExtension, admin).SetName("admin.extensions.resolve")

	app.Post("/supplier/extensions", controller.RequestExtension, supplier).SetName("supplier.extensions.create")
	app.Get("/supplier/extensions", controller.ListExtensions, supplier).SetName("supplier.extensions")
	app.Get("/supplier/access", controller.SupplierAccess, supplier).SetName("supplier.access")
	app.Post("/supplier/subscription/orders", controller.CreateSubscriptionOrder, supplier).SetName("supplier.subscription.order")

	app.Post("/payments/confirmed", controller.PaymentConfirmed).SetName("payments.confirmed")
}

// ControllerRoutes holds the paths that do not carry a role
type ControllerRoutes struct {
	Logout string
	Me     string
}

// Controller serves the HTTP surface of the module
type Controller struct {
	Debug bool
	// ExposeCodes echoes verification codes and reset tokens in responses.
	// Only for local development.
	ExposeCodes   bool
	WebhookSecret string
	Logger        Logger
	Routes        *ControllerRoutes
	Auth          *RouteAuthenticator
	Lifecycle     *LifecycleEngine

	register      *RegisterActorHandler
	verifyEmail   *VerifyEmailHandler
	resendCode    *ResendVerificationHandler
	resetInitiate *InitializeSecretResetHandler
	resetFinalize *FinalizeSecretResetHandler
	suppliers     Suppliers
}

// ControllerOption customizes the controller
type ControllerOption func(*Controller) *Controller

// WithControllerLogger sets the logger
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

// WithExposeCodes echoes one time codes in responses
func WithExposeCodes(expose bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.ExposeCodes = expose
		return c
	}
}

// WithWebhookSecret requires payment webhooks to carry secret
func WithWebhookSecret(secret string) ControllerOption {
	return func(c *Controller) *Controller {
		c.WebhookSecret = secret
		return c
	}
}

// WithControllerDebug dumps inbound payloads
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// NewController builds the controller. Command handlers share handlerOpts.
func NewController(repo RepositoryManager, tokens TokenService, a *RouteAuthenticator, engine *LifecycleEngine, handlerOpts []HandlerOption, opts ...ControllerOption) *Controller {
	if repo == nil {
		panic("missing RepositoryManager in auth controller")
	}
	if a == nil {
		panic("missing RouteAuthenticator in auth controller")
	}
	if engine == nil {
		panic("missing LifecycleEngine in auth controller")
	}

	c := &Controller{
		Logger:    defLogger{},
		Auth:      a,
		Lifecycle: engine,
		Routes: &ControllerRoutes{
			Logout: "/logout",
			Me:     "/me",
		},
		register:      NewRegisterActorHandler(repo, tokens, handlerOpts...),
		verifyEmail:   NewVerifyEmailHandler(repo, handlerOpts...),
		resendCode:    NewResendVerificationHandler(repo, handlerOpts...),
		resetInitiate: NewInitializeSecretResetHandler(repo, handlerOpts...),
		resetFinalize: NewFinalizeSecretResetHandler(repo, handlerOpts...),
		suppliers:     repo.Suppliers(),
	}

	for _, opt := range opts {
		c = opt(c)
	}
	return c
}

func (a *Controller) fail(ctx router.Context, err error) error {
	return a.Auth.ErrorHandler(ctx, err)
}

func (a *Controller) bind(ctx router.Context, payload interface{ Validate() error }) error {
	if err := ctx.Bind(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest)
	}
	if a.Debug {
		a.Logger.Debug("request payload", "path", ctx.Path(), "payload", print.MaybePrettyJSON(payload))
	}
	return payload.Validate()
}

// publicRole reads the :role param. Admin accounts cannot self register.
func publicRole(ctx router.Context, allowAdmin bool) (ActorRole, error) {
	role, ok := ParseRole(strings.ToLower(ctx.Param("role", "")))
	if !ok || (role == RoleAdmin && !allowAdmin) {
		return "", goerrors.New("unknown actor role", goerrors.CategoryNotFound).
			WithTextCode(TextCodeNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{"role": ctx.Param("role", "")})
	}
	return role, nil
}

func pathID(ctx router.Context) (uuid.UUID, error) {
	raw := ctx.Param("id", "")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, goerrors.New("invalid id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"id": raw})
	}
	return id, nil
}

func actorRef(ctx router.Context) ActorRef {
	return ActorRefFrom(GetRouterActor(ctx).Actor)
}

// RegisterPayload is the registration body
type RegisterPayload struct {
	Email         string `form:"email" json:"email"`
	Secret        string `form:"secret" json:"secret"`
	ConfirmSecret string `form:"confirm_secret" json:"confirm_secret"`
	Name          string `form:"name" json:"name"`
	Phone         string `form:"phone_number" json:"phone_number"`
	CompanyName   string `form:"company_name" json:"company_name"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Secret, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmSecret,
			validation.Required,
			validation.By(ValidateStringEquals(r.Secret)),
		),
		validation.Field(&r.Name, validation.Length(0, 200)),
		validation.Field(&r.CompanyName, validation.Length(0, 200)),
	)
}

// Register creates a buyer or supplier and signs them in
func (a *Controller) Register(ctx router.Context) error {
	role, err := publicRole(ctx, false)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(RegisterPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	var res *RegisterActorResponse
	msg := RegisterActorMessage{
		Role:        role,
		Email:       payload.Email,
		Secret:      payload.Secret,
		Name:        payload.Name,
		Phone:       payload.Phone,
		CompanyName: payload.CompanyName,
		OnResponse: func(resp *RegisterActorResponse) {
			res = resp
		},
	}

	if err := a.register.Execute(ctx.Context(), msg); err != nil {
		return a.fail(ctx, err)
	}

	a.Auth.SetSession(ctx, &LoginResult{
		Token:           res.Token,
		Role:            role,
		ActorID:         res.Actor.ActorID(),
		ExpiresAt:       res.ExpiresAt,
		DropCredentials: OtherRoleCredentials(role),
	})

	body := router.ViewContext{
		"actor":      res.Actor,
		"role":       role,
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
	}
	if a.ExposeCodes && res.VerificationCode != "" {
		body["verification_code"] = res.VerificationCode
	}
	return ctx.JSON(http.StatusCreated, body)
}

// LoginPayload is the login body
type LoginPayload struct {
	Email  string `form:"email" json:"email"`
	Secret string `form:"secret" json:"secret"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Secret, validation.Required),
	)
}

// Login signs the actor in for the role in the path
func (a *Controller) Login(ctx router.Context) error {
	role, err := publicRole(ctx, true)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(LoginPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	result, err := a.Auth.Login(ctx, role, payload.Email, payload.Secret)
	if err != nil {
		return a.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"role":       result.Role,
		"actor_id":   result.ActorID,
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
	})
}

// Logout clears every credential cookie
func (a *Controller) Logout(ctx router.Context) error {
	a.Auth.Logout(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

// Me returns the resolved actor. Suppliers also get their access state.
func (a *Controller) Me(ctx router.Context) error {
	resolved := GetRouterActor(ctx)
	body := router.ViewContext{
		"role":   resolved.Role,
		"source": resolved.Source,
		"actor":  resolved.Actor,
	}
	if s, ok := supplierFromRouter(ctx); ok {
		body["access"] = a.Lifecycle.Access(s)
	}
	return ctx.JSON(http.StatusOK, body)
}

// VerifyEmailPayload is the email verification body
type VerifyEmailPayload struct {
	Email string `form:"email" json:"email"`
	Code  string `form:"code" json:"code"`
}

// Validate will validate the payload
func (r VerifyEmailPayload) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required),
	)
}

// VerifyEmail consumes an email verification code
func (a *Controller) VerifyEmail(ctx router.Context) error {
	role, err := publicRole(ctx, false)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(VerifyEmailPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	err = a.verifyEmail.Execute(ctx.Context(), VerifyEmailMessage{
		Role:  role,
		Email: payload.Email,
		Code:  payload.Code,
	})
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, router.ViewContext{"verified": true})
}

// EmailPayload carries only an email
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r EmailPayload) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResendVerification issues a fresh verification code. The answer does
// not reveal whether the account exists.
func (a *Controller) ResendVerification(ctx router.Context) error {
	role, err := publicRole(ctx, false)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(EmailPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	var res *ResendVerificationResponse
	err = a.resendCode.Execute(ctx.Context(), ResendVerificationMessage{
		Role:  role,
		Email: payload.Email,
		OnResponse: func(resp *ResendVerificationResponse) {
			res = resp
		},
	})
	if err != nil {
		return a.fail(ctx, err)
	}

	body := router.ViewContext{"status": "accepted"}
	if a.ExposeCodes && res != nil && res.Code != "" {
		body["verification_code"] = res.Code
	}
	return ctx.JSON(http.StatusAccepted, body)
}

// PasswordResetRequest starts a secret reset. Unknown emails get the
// same answer.
func (a *Controller) PasswordResetRequest(ctx router.Context) error {
	role, err := publicRole(ctx, true)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(EmailPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	var res *InitializeSecretResetResponse
	err = a.resetInitiate.Execute(ctx.Context(), InitializeSecretResetMessage{
		Role:  role,
		Email: payload.Email,
		OnResponse: func(resp *InitializeSecretResetResponse) {
			res = resp
		},
	})
	if err != nil {
		return a.fail(ctx, err)
	}

	body := router.ViewContext{"status": "accepted"}
	if a.ExposeCodes && res != nil && res.Token != "" {
		body["reset_token"] = res.Token
	}
	return ctx.JSON(http.StatusAccepted, body)
}

// PasswordResetVerifyPayload holds the new secret
type PasswordResetVerifyPayload struct {
	Secret        string `form:"secret" json:"secret"`
	ConfirmSecret string `form:"confirm_secret" json:"confirm_secret"`
}

// Validate will validate the payload
func (r PasswordResetVerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Secret, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmSecret,
			validation.Required,
			validation.By(ValidateStringEquals(r.Secret)),
		),
	)
}

// PasswordResetExecute consumes the reset token in the path
func (a *Controller) PasswordResetExecute(ctx router.Context) error {
	role, err := publicRole(ctx, true)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(PasswordResetVerifyPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	err = a.resetFinalize.Execute(ctx.Context(), FinalizeSecretResetMessage{
		Role:   role,
		Token:  ctx.Param("token", ""),
		Secret: payload.Secret,
	})
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListSuppliers lists suppliers by the status query, pending by default
func (a *Controller) ListSuppliers(ctx router.Context) error {
	status := SupplierStatus(ctx.Query("status", string(SupplierStatusPending)))
	switch status {
	case SupplierStatusPending, SupplierStatusApproved, SupplierStatusSuspended, SupplierStatusBanned:
	default:
		return a.fail(ctx, goerrors.New("unknown supplier status", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"status": status}))
	}

	records, err := a.suppliers.ListByStatus(ctx.Context(), status)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, router.ViewContext{"suppliers": records})
}

// ModerationPayload is the body of admin supplier actions
type ModerationPayload struct {
	Reason string `form:"reason" json:"reason"`
	Days   int    `form:"days" json:"days"`
}

// Validate will validate the payload
func (r ModerationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Length(0, 1000)),
		validation.Field(&r.Days, validation.Min(0)),
	)
}

type moderationFunc func(ctx router.Context, actor ActorRef, id uuid.UUID, payload *ModerationPayload) (*Supplier, error)

func (a *Controller) moderate(ctx router.Context, fn moderationFunc) error {
	id, err := pathID(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(ModerationPayload)
	if len(ctx.Body()) > 0 {
		if err := a.bind(ctx, payload); err != nil {
			return a.fail(ctx, err)
		}
	}

	supplier, err := fn(ctx, actorRef(ctx), id, payload)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, router.ViewContext{
		"supplier": supplier,
		"access":   a.Lifecycle.Access(supplier),
	})
}

// ApproveSupplier moves a pending supplier to approved
func (a *Controller) ApproveSupplier(ctx router.Context) error {
	return a.moderate(ctx, func(ctx router.Context, actor ActorRef, id uuid.UUID, p *ModerationPayload) (*Supplier, error) {
		return a.Lifecycle.Approve(ctx.Context(), actor, id, WithTransitionReason(p.Reason))
	})
}

// RejectSupplier records a rejection of a pending supplier
func (a *Controller) RejectSupplier(ctx router.Context) error {
	return a.moderate(ctx, func(ctx router.Context, actor ActorRef, id uuid.UUID, p *ModerationPayload) (*Supplier, error) {
		return a.Lifecycle.Reject(ctx.Context(), actor, id, WithTransitionReason(p.Reason))
	})
}

// SuspendSupplier suspends an approved supplier for the given days
func (a *Controller) SuspendSupplier(ctx router.Context) error {
	return a.moderate(ctx, func(ctx router.Context, actor ActorRef, id uuid.UUID, p *ModerationPayload) (*Supplier, error) {
		return a.Lifecycle.Suspend(ctx.Context(), actor, id, p.Days, WithTransitionReason(p.Reason))
	})
}

// BanSupplier bans a supplier
func (a *Controller) BanSupplier(ctx router.Context) error {
	return a.moderate(ctx, func(ctx router.Context, actor ActorRef, id uuid.UUID, p *ModerationPayload) (*Supplier, error) {
		return a.Lifecycle.Ban(ctx.Context(), actor, id, WithTransitionReason(p.Reason))
	})
}

// RestoreSupplier reinstates a suspended or banned supplier
func (a *Controller) RestoreSupplier(ctx router.Context) error {
	return a.moderate(ctx, func(ctx router.Context, actor ActorRef, id uuid.UUID, p *ModerationPayload) (*Supplier, error) {
		return a.Lifecycle.Restore(ctx.Context(), actor, id, WithTransitionReason(p.Reason))
	})
}

// BadgesPayload replaces the badge set
type BadgesPayload struct {
	Badges []string `json:"badges"`
}

// Validate will validate the payload
func (r BadgesPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Badges, validation.By(validateBadgeNames)),
	)
}

func validateBadgeNames(value any) error {
	badges, _ := value.([]string)
	for _, b := range badges {
		if n := len(strings.TrimSpace(b)); n == 0 || n > 64 {
			return errors.New("badge names must be 1 to 64 characters")
		}
	}
	return nil
}

// UpdateBadges replaces the badges of a supplier
func (a *Controller) UpdateBadges(ctx router.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(BadgesPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	supplier, err := a.Lifecycle.UpdateBadges(ctx.Context(), actorRef(ctx), id, payload.Badges)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, router.ViewContext{"supplier": supplier})
}

// ExtensionPayload asks for or grants trial months
type ExtensionPayload struct {
	Months int    `form:"months" json:"months"`
	Reason string `form:"reason" json:"reason"`
}

// Validate will validate the payload
func (r ExtensionPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Months, validation.Required, validation.Min(1), validation.Max(MaxExtensionMonths)),
		validation.Field(&r.Reason, validation.Length(0, 1000)),
	)
}

// ExtendTrial extends a trial without a request
func (a *Controller) ExtendTrial(ctx router.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(ExtensionPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	supplier, err := a.Lifecycle.DirectExtend(ctx.Context(), actorRef(ctx), id, payload.Months, payload.Reason)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, router.ViewContext{
		"supplier": supplier,
		"access":   a.Lifecycle.Access(supplier),
	})
}

// ResolveExtensionPayload is the admin verdict on a request
type ResolveExtensionPayload struct {
	Decision       ExtensionDecision `form:"decision" json:"decision"`
	ApprovedMonths int               `form:"approved_months" json:"approved_months"`
	Note           string            `form:"note" json:"note"`
}

// Validate will validate the payload
func (r ResolveExtensionPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Decision, validation.Required, validation.In(DecisionApprove, DecisionReject)),
		validation.Field(&r.ApprovedMonths, validation.Min(0), validation.Max(MaxExtensionMonths)),
		validation.Field(&r.Note, validation.Length(0, 1000)),
	)
}

// ResolveExtension approves or rejects a pending extension request
func (a *Controller) ResolveExtension(ctx router.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(ResolveExtensionPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	req, supplier, err := a.Lifecycle.ResolveExtension(ctx.Context(), actorRef(ctx), id, payload.Decision, payload.ApprovedMonths, payload.Note)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, router.ViewContext{
		"request":  req,
		"supplier": supplier,
		"access":   a.Lifecycle.Access(supplier),
	})
}

// RequestExtension opens an extension request for the signed in supplier
func (a *Controller) RequestExtension(ctx router.Context) error {
	s, ok := supplierFromRouter(ctx)
	if !ok {
		return a.fail(ctx, ErrUnauthorized)
	}

	payload := new(ExtensionPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	req, err := a.Lifecycle.RequestExtension(ctx.Context(), s.ID, payload.Months, payload.Reason)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, router.ViewContext{"request": req})
}

// ListExtensions lists the requests of the signed in supplier
func (a *Controller) ListExtensions(ctx router.Context) error {
	s, ok := supplierFromRouter(ctx)
	if !ok {
		return a.fail(ctx, ErrUnauthorized)
	}

	requests, err := a.Lifecycle.Extensions(ctx.Context(), s.ID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, router.ViewContext{"requests": requests})
}

// SupplierAccess returns the derived access state of the signed in supplier
func (a *Controller) SupplierAccess(ctx router.Context) error {
	s, ok := supplierFromRouter(ctx)
	if !ok {
		return a.fail(ctx, ErrUnauthorized)
	}
	return ctx.JSON(http.StatusOK, a.Lifecycle.Access(s))
}

// CreateSubscriptionOrder opens a payment order for one plan period
func (a *Controller) CreateSubscriptionOrder(ctx router.Context) error {
	s, ok := supplierFromRouter(ctx)
	if !ok {
		return a.fail(ctx, ErrUnauthorized)
	}

	order, err := a.Lifecycle.CreateSubscriptionOrder(ctx.Context(), s.ID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, router.ViewContext{"order": order})
}

// PaymentConfirmedPayload is sent by the payment provider
type PaymentConfirmedPayload struct {
	OrderID    string `json:"order_id"`
	PayerEmail string `json:"payer_email"`
}

// Validate will validate the payload
func (r PaymentConfirmedPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OrderID, validation.Required),
	)
}

// PaymentConfirmed extends the subscription of a paid order. Replays
// answer like the first delivery.
func (a *Controller) PaymentConfirmed(ctx router.Context) error {
	if a.WebhookSecret != "" {
		got := ctx.Header(HeaderPaymentSignature)
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.WebhookSecret)) != 1 {
			return a.fail(ctx, ErrUnauthorized)
		}
	}

	payload := new(PaymentConfirmedPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	supplier, err := a.Lifecycle.OnOrderConfirmed(ctx.Context(), payload.OrderID, payload.PayerEmail)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, router.ViewContext{
		"supplier_id": supplier.ActorID(),
		"access":      a.Lifecycle.Access(supplier),
	})
}

// ValidateStringEquals checks that a confirmation field matches
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo errors into field messages
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		out["form"] = err.Error()
		return out
	}
	for field, ferr := range verrs {
		out[field] = fmt.Sprint(ferr)
	}
	return out
}
