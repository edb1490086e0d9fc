package auth

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SupplierStatus is the coarse access gate of a supplier
type SupplierStatus string

const (
	SupplierStatusPending   SupplierStatus = "pending"
	SupplierStatusApproved  SupplierStatus = "approved"
	SupplierStatusSuspended SupplierStatus = "suspended"
	SupplierStatusBanned    SupplierStatus = "banned"
)

// SubscriptionStatus is the stored paid-period marker of a supplier
type SubscriptionStatus string

const (
	SubscriptionNone       SubscriptionStatus = "none"
	SubscriptionTrial      SubscriptionStatus = "trial"
	SubscriptionSubscribed SubscriptionStatus = "subscribed"
	SubscriptionExpired    SubscriptionStatus = "expired"
)

// ExtensionStatus tracks a trial extension request
type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "pending"
	ExtensionApproved ExtensionStatus = "approved"
	ExtensionRejected ExtensionStatus = "rejected"
)

// Account holds the credential fields every actor kind shares.
type Account struct {
	ID                    uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email                 string     `bun:"email,notnull,unique" json:"email,omitempty"`
	SecretHash            string     `bun:"secret_hash,nullzero" json:"-"`
	Name                  string     `bun:"name" json:"name,omitempty"`
	Phone                 string     `bun:"phone_number" json:"phone_number,omitempty"`
	EmailVerified         bool       `bun:"is_email_verified,notnull" json:"is_email_verified"`
	VerificationCode      string     `bun:"verification_code,nullzero" json:"-"`
	VerificationExpiresAt *time.Time `bun:"verification_expires_at,nullzero" json:"-"`
	ResetToken            string     `bun:"reset_token,nullzero" json:"-"`
	ResetExpiresAt        *time.Time `bun:"reset_expires_at,nullzero" json:"-"`
	LoggedInAt            *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt             *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt             *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasSecret reports whether a local secret is set. Accounts created
// through a federated provider may have none.
func (a *Account) HasSecret() bool {
	return a != nil && a.SecretHash != ""
}

// Buyer is the buyer model
type Buyer struct {
	bun.BaseModel `bun:"table:buyers,alias:byr"`
	Account
}

// Admin is the administrator model
type Admin struct {
	bun.BaseModel `bun:"table:admins,alias:adm"`
	Account
}

// Supplier is the supplier model
type Supplier struct {
	bun.BaseModel `bun:"table:suppliers,alias:sup"`
	Account
	CompanyName        string             `bun:"company_name" json:"company_name,omitempty"`
	Status             SupplierStatus     `bun:"status,notnull" json:"status"`
	SuspendedUntil     *time.Time         `bun:"suspended_until,nullzero" json:"suspended_until,omitempty"`
	TrialStartDate     *time.Time         `bun:"trial_start_date,nullzero" json:"trial_start_date,omitempty"`
	TrialEndDate       *time.Time         `bun:"trial_end_date,nullzero" json:"trial_end_date,omitempty"`
	SubscriptionStatus SubscriptionStatus `bun:"subscription_status,notnull" json:"subscription_status"`
	IsSubscribed       bool               `bun:"is_subscribed,notnull" json:"is_subscribed"`
	SubscriptionExpiry *time.Time         `bun:"subscription_expiry,nullzero" json:"subscription_expiry,omitempty"`
	Badges             Badges             `bun:"badges,type:jsonb" json:"badges,omitempty"`
	Version            int64              `bun:"version,notnull" json:"version"`
}

// ActorID returns the buyer id
func (b *Buyer) ActorID() string { return b.Account.ID.String() }

// ActorEmail returns the buyer email
func (b *Buyer) ActorEmail() string { return b.Account.Email }

// Role returns RoleBuyer
func (b *Buyer) Role() ActorRole { return RoleBuyer }

func (b *Buyer) base() *Account { return &b.Account }

// ActorID returns the admin id
func (a *Admin) ActorID() string { return a.Account.ID.String() }

// ActorEmail returns the admin email
func (a *Admin) ActorEmail() string { return a.Account.Email }

// Role returns RoleAdmin
func (a *Admin) Role() ActorRole { return RoleAdmin }

func (a *Admin) base() *Account { return &a.Account }

// ActorID returns the supplier id
func (s *Supplier) ActorID() string { return s.Account.ID.String() }

// ActorEmail returns the supplier email
func (s *Supplier) ActorEmail() string { return s.Account.Email }

// Role returns RoleSupplier
func (s *Supplier) Role() ActorRole { return RoleSupplier }

func (s *Supplier) base() *Account { return &s.Account }

var (
	_ Actor = (*Buyer)(nil)
	_ Actor = (*Admin)(nil)
	_ Actor = (*Supplier)(nil)
)

// EnsureStatus defaults an empty status to pending and an empty
// subscription status to none.
func (s *Supplier) EnsureStatus() {
	if s == nil {
		return
	}
	if s.Status == "" {
		s.Status = SupplierStatusPending
	}
	if s.SubscriptionStatus == "" {
		s.SubscriptionStatus = SubscriptionNone
	}
}

// IsApproved reports whether the supplier passed moderation and is not
// currently suspended or banned.
func (s *Supplier) IsApproved() bool {
	return s != nil && s.Status == SupplierStatusApproved
}

// CanTransact reports whether the supplier may receive inquiries and
// submit quotes.
func (s *Supplier) CanTransact() bool {
	return s.IsApproved()
}

// IsSuspensionElapsed reports whether a suspended supplier reached its
// suspendedUntil date. Reinstatement still needs an explicit restore.
func (s *Supplier) IsSuspensionElapsed(now time.Time) bool {
	if s == nil || s.Status != SupplierStatusSuspended || s.SuspendedUntil == nil {
		return false
	}
	return !now.Before(*s.SuspendedUntil)
}

// Badges is the set of trust markers a supplier earned.
type Badges []string

// NormalizeBadges trims, deduplicates, and sorts badge names.
func NormalizeBadges(in []string) Badges {
	seen := make(map[string]struct{}, len(in))
	out := make(Badges, 0, len(in))
	for _, b := range in {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Has checks for a badge
func (b Badges) Has(badge string) bool {
	badge = strings.ToLower(strings.TrimSpace(badge))
	for _, v := range b {
		if v == badge {
			return true
		}
	}
	return false
}

// TrialExtensionRequest is a supplier's ask for more trial time
type TrialExtensionRequest struct {
	bun.BaseModel   `bun:"table:trial_extension_requests,alias:ter"`
	ID              uuid.UUID       `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	SupplierID      uuid.UUID       `bun:"supplier_id,notnull,type:uuid" json:"supplier_id"`
	Supplier        *Supplier       `bun:"rel:belongs-to,join:supplier_id=id" json:"supplier,omitempty"`
	RequestedMonths int             `bun:"requested_months,notnull" json:"requested_months"`
	Status          ExtensionStatus `bun:"status,notnull" json:"status"`
	ApprovedMonths  *int            `bun:"approved_months" json:"approved_months,omitempty"`
	Reason          string          `bun:"reason" json:"reason,omitempty"`
	AdminNote       string          `bun:"admin_note" json:"admin_note,omitempty"`
	ResolvedBy      string          `bun:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time      `bun:"resolved_at,nullzero" json:"resolved_at,omitempty"`
	CreatedAt       *time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsPending reports whether an administrator still has to resolve it
func (r *TrialExtensionRequest) IsPending() bool {
	return r != nil && r.Status == ExtensionPending
}

// ActivityLogEntry is a row of the append-only activity log
type ActivityLogEntry struct {
	bun.BaseModel `bun:"table:activity_log,alias:act"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OccurredAt    time.Time      `bun:"occurred_at,notnull" json:"occurred_at"`
	Message       string         `bun:"message" json:"message"`
	Action        ActivityAction `bun:"action,notnull" json:"action"`
	EntityType    string         `bun:"entity_type,notnull" json:"entity_type"`
	EntityID      string         `bun:"entity_id,notnull" json:"entity_id"`
	ActorID       string         `bun:"actor_id" json:"actor_id,omitempty"`
	ActorType     string         `bun:"actor_type" json:"actor_type,omitempty"`
	Metadata      map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
}

const (
	// OrderStatusCreated is an order waiting for payment confirmation
	OrderStatusCreated = "created"
	// OrderStatusConfirmed is a paid order that already extended the subscription
	OrderStatusConfirmed = "confirmed"
)

// SubscriptionOrder ties a payment gateway order to the supplier it pays for
type SubscriptionOrder struct {
	bun.BaseModel `bun:"table:subscription_orders,alias:ord"`
	OrderID       string     `bun:"order_id,pk" json:"order_id"`
	SupplierID    uuid.UUID  `bun:"supplier_id,notnull,type:uuid" json:"supplier_id"`
	PeriodDays    int        `bun:"period_days,notnull" json:"period_days"`
	Amount        int64      `bun:"amount,notnull" json:"amount"`
	Currency      string     `bun:"currency,notnull" json:"currency"`
	Status        string     `bun:"status,notnull" json:"status"`
	PayerEmail    string     `bun:"payer_email" json:"payer_email,omitempty"`
	ConfirmedAt   *time.Time `bun:"confirmed_at,nullzero" json:"confirmed_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
