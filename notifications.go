package auth

import (
	"context"

	"github.com/goliatone/go-print"
)

// NotificationKind names a notification template
type NotificationKind string

const (
	NotifyWelcome            NotificationKind = "welcome"
	NotifyEmailVerification  NotificationKind = "email_verification"
	NotifySecretReset        NotificationKind = "secret_reset"
	NotifySecretChanged      NotificationKind = "secret_changed"
	NotifySupplierApproved   NotificationKind = "supplier_approved"
	NotifySupplierRejected   NotificationKind = "supplier_rejected"
	NotifySupplierSuspended  NotificationKind = "supplier_suspended"
	NotifySupplierBanned     NotificationKind = "supplier_banned"
	NotifySupplierRestored   NotificationKind = "supplier_restored"
	NotifyExtensionApproved  NotificationKind = "trial_extension_approved"
	NotifyExtensionRejected  NotificationKind = "trial_extension_rejected"
	NotifyTrialExtended      NotificationKind = "trial_extended"
	NotifySubscriptionActive NotificationKind = "subscription_activated"
)

// NotificationGatewayFunc adapts a function to NotificationGateway
type NotificationGatewayFunc func(ctx context.Context, email string, kind NotificationKind, data map[string]any) error

// Notify implements NotificationGateway
func (f NotificationGatewayFunc) Notify(ctx context.Context, email string, kind NotificationKind, data map[string]any) error {
	if f == nil {
		return nil
	}
	return f(ctx, email, kind, data)
}

// LogNotificationGateway writes notifications to the logger. It is the
// fallback when no broker is configured.
type LogNotificationGateway struct {
	Logger Logger
}

// Notify implements NotificationGateway
func (g LogNotificationGateway) Notify(_ context.Context, email string, kind NotificationKind, data map[string]any) error {
	normalizeLogger(g.Logger).Info("notification", "kind", kind, "email", email, "data", print.MaybePrettyJSON(data))
	return nil
}

// notifier delivers notifications without ever failing the caller
type notifier struct {
	gateway NotificationGateway
	logger  Logger
}

func newNotifier(gateway NotificationGateway, logger Logger) notifier {
	return notifier{gateway: gateway, logger: normalizeLogger(logger)}
}

func (n notifier) send(ctx context.Context, email string, kind NotificationKind, data map[string]any) {
	if n.gateway == nil || email == "" {
		return
	}
	if err := n.gateway.Notify(ctx, email, kind, data); err != nil {
		n.logger.Warn("notification delivery failed", "kind", kind, "email", email, "error", err)
	}
}
