package ledger

import (
	"context"
	"net/http"
)

// MetadataUserKey is the customer metadata key carrying the application user id.
const MetadataUserKey = "app_user_id"

// Client is the subset of the external ledger the core depends on.
type Client interface {
	// SearchCustomersByMetadata finds customers whose metadata[key] equals value.
	SearchCustomersByMetadata(ctx context.Context, key, value string) ([]Customer, error)
	// SearchCustomersByEmail runs an indexed search by email.
	// It returns ErrSearchUnavailable when the ledger has no search index.
	SearchCustomersByEmail(ctx context.Context, email string) ([]Customer, error)
	// ListCustomersByEmail lists customers filtered by exact email.
	ListCustomersByEmail(ctx context.Context, email string) ([]Customer, error)
	CreateCustomer(ctx context.Context, params CustomerParams) (Customer, error)
	// ListSubscriptions returns every subscription of the customer, any status,
	// with line item prices populated.
	ListSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	CreatePortalSession(ctx context.Context, req PortalRequest) (string, error)
}

// NotificationDecoder turns raw lifecycle notifications into Notification values.
type NotificationDecoder interface {
	// VerifyNotification checks the signature against every configured secret
	// in order and decodes the payload on the first match.
	VerifyNotification(payload []byte, header http.Header) (Notification, error)
	// DecodeNotification decodes a payload without signature verification.
	DecodeNotification(payload []byte) (Notification, error)
}

// Provider is a ledger that can also decode its own notifications.
type Provider interface {
	Client
	NotificationDecoder
}
