package auth

import "time"

const (
	// DefaultTrialMonths is the trial length granted at registration
	DefaultTrialMonths = 6
	// DefaultTrialWarningDays is when the trial starts reporting as expiring
	DefaultTrialWarningDays = 30
	// MaxExtensionMonths caps a single extension request
	MaxExtensionMonths = 6
)

// SubState is the derived commercial state of a supplier
type SubState string

const (
	SubStateSubscribed          SubState = "subscribed"
	SubStateSubscriptionExpired SubState = "subscription-expired"
	SubStateTrialExpired        SubState = "trial-expired"
	SubStateTrialExpiring       SubState = "trial-expiring"
	SubStateTrialing            SubState = "trialing"
)

// TrialPolicy holds the trial derivation settings
type TrialPolicy struct {
	Months      int
	WarningDays int
}

// DefaultTrialPolicy returns a six month trial with a thirty day warning
func DefaultTrialPolicy() TrialPolicy {
	return TrialPolicy{
		Months:      DefaultTrialMonths,
		WarningDays: DefaultTrialWarningDays,
	}
}

func (p TrialPolicy) normalize() TrialPolicy {
	if p.Months <= 0 {
		p.Months = DefaultTrialMonths
	}
	if p.WarningDays < 0 {
		p.WarningDays = DefaultTrialWarningDays
	}
	return p
}

// AccessState is recomputed on every read and never stored
type AccessState struct {
	Status                SupplierStatus     `json:"status"`
	TrialEndDate          time.Time          `json:"trial_end_date"`
	DaysRemaining         int                `json:"days_remaining"`
	IsTrialExpired        bool               `json:"is_trial_expired"`
	IsTrialWarning        bool               `json:"is_trial_warning"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status"`
	SubscriptionExpiry    *time.Time         `json:"subscription_expiry,omitempty"`
	SubState              SubState           `json:"sub_state"`
	CanTransact           bool               `json:"can_transact"`
	CanAccessPaidFeatures bool               `json:"can_access_paid_features"`
}

// EffectiveTrialEnd returns the stored trial end, or derives it from the
// trial start (or creation date) plus the policy months.
func EffectiveTrialEnd(s *Supplier, policy TrialPolicy, now time.Time) time.Time {
	if s.TrialEndDate != nil && !s.TrialEndDate.IsZero() {
		return s.TrialEndDate.UTC()
	}
	start := now
	switch {
	case s.TrialStartDate != nil && !s.TrialStartDate.IsZero():
		start = *s.TrialStartDate
	case s.CreatedAt != nil && !s.CreatedAt.IsZero():
		start = *s.CreatedAt
	}
	return AddMonths(start.UTC(), policy.normalize().Months)
}

// HasActiveSubscription reports whether a paid period covers now
func HasActiveSubscription(s *Supplier, now time.Time) bool {
	return s.IsSubscribed && !isExpired(s.SubscriptionExpiry, now)
}

// DeriveAccess computes the trial and subscription view of a supplier.
// An active subscription takes precedence over any trial state.
func DeriveAccess(s *Supplier, now time.Time, policy TrialPolicy) AccessState {
	policy = policy.normalize()
	end := EffectiveTrialEnd(s, policy, now)
	days := DaysUntil(end, now)

	state := AccessState{
		Status:             s.Status,
		TrialEndDate:       end,
		DaysRemaining:      days,
		IsTrialExpired:     days <= 0,
		IsTrialWarning:     days > 0 && days <= policy.WarningDays,
		SubscriptionExpiry: s.SubscriptionExpiry,
		CanTransact:        s.CanTransact(),
	}

	switch {
	case HasActiveSubscription(s, now):
		state.SubState = SubStateSubscribed
		state.SubscriptionStatus = SubscriptionSubscribed
	case s.SubscriptionExpiry != nil:
		state.SubState = SubStateSubscriptionExpired
		state.SubscriptionStatus = SubscriptionExpired
	case state.IsTrialExpired:
		state.SubState = SubStateTrialExpired
		state.SubscriptionStatus = SubscriptionExpired
	case state.IsTrialWarning:
		state.SubState = SubStateTrialExpiring
		state.SubscriptionStatus = SubscriptionTrial
	default:
		state.SubState = SubStateTrialing
		state.SubscriptionStatus = SubscriptionTrial
	}

	paid := state.SubState == SubStateSubscribed ||
		state.SubState == SubStateTrialing ||
		state.SubState == SubStateTrialExpiring
	state.CanAccessPaidFeatures = s.IsApproved() && paid

	return state
}

// Access derives the access state of a supplier with the engine's clock
// and trial policy.
func (e *LifecycleEngine) Access(s *Supplier) AccessState {
	return DeriveAccess(s, e.now.now().UTC(), e.trial)
}
