package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error records err under "error". A nil error yields an empty Attr,
// which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups the non-nil errors under "errors".
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

func UserID(id string) slog.Attr { return optional("user_id", id) }

func RequestID(id string) slog.Attr { return optional("request_id", id) }

// CustomerID records the billing ledger customer id.
func CustomerID(id string) slog.Attr { return optional("customer_id", id) }

func SubscriptionID(id string) slog.Attr { return optional("subscription_id", id) }

// NotificationID records the id of a ledger lifecycle notification.
func NotificationID(id string) slog.Attr { return optional("notification_id", id) }

func Plan(name string) slog.Attr { return optional("plan", name) }

func EventType(t string) slog.Attr { return optional("event_type", t) }

func RetryCount(n int) slog.Attr { return slog.Int("retry_count", n) }

func Duration(d time.Duration) slog.Attr { return slog.Duration("duration", d) }

func Component(name string) slog.Attr { return slog.String("component", name) }

func optional(key, v string) slog.Attr {
	if v == "" {
		return slog.Attr{}
	}
	return slog.String(key, v)
}
