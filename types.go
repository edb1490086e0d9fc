package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the logging surface used across the package. A *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Actor holds the attributes shared by every authenticated identity kind
type Actor interface {
	ActorID() string
	ActorEmail() string
	Role() ActorRole
}

// NotificationGateway delivers lifecycle notifications to actors.
// Implementations may be slow or fail, callers never propagate the error.
type NotificationGateway interface {
	Notify(ctx context.Context, recipientEmail string, kind NotificationKind, data map[string]any) error
}

// PaymentGateway creates payment orders on an external provider
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency string, metadata map[string]string) (string, error)
}

// PasswordHasher hashes and compares actor secrets
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Clock returns the current time
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) { fmt.Println("[ERR] AUTH " + line(msg, args)) }
func (d defLogger) Warn(msg string, args ...any)  { fmt.Println("[WRN] AUTH " + line(msg, args)) }
func (d defLogger) Info(msg string, args ...any)  { fmt.Println("[INF] AUTH " + line(msg, args)) }
func (d defLogger) Debug(msg string, args ...any) { fmt.Println("[DBG] AUTH " + line(msg, args)) }

// line renders msg followed by key=value pairs. A trailing key without a
// value is printed as is.
func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 == len(args) {
			fmt.Fprint(&b, args[i])
			break
		}
		fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
	}
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
