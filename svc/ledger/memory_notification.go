package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MemorySignatureHeader carries the signature of in-process ledger notifications.
// Format: "t=<unix>,v1=<hex hmac-sha256(secret, t + "." + payload)>".
const MemorySignatureHeader = "X-Ledger-Signature"

// MemorySignatureTolerance bounds the age of a signed notification.
const MemorySignatureTolerance = 5 * time.Minute

// MemoryEvent is the wire format of notifications emitted by the in-process ledger.
type MemoryEvent struct {
	ID             string        `json:"id"`
	Type           string        `json:"type"`
	CreatedAt      time.Time     `json:"created_at"`
	CustomerID     string        `json:"customer_id,omitempty"`
	SubscriptionID string        `json:"subscription_id,omitempty"`
	Subscription   *Subscription `json:"subscription,omitempty"`
}

// SignMemoryPayload signs payload the way VerifyNotification expects.
func SignMemoryPayload(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, memorySignature(secret, ts, payload))
}

func (m *Memory) VerifyNotification(payload []byte, header http.Header) (Notification, error) {
	m.mu.Lock()
	secrets := m.secrets
	now := m.now()
	m.mu.Unlock()

	if len(secrets) == 0 {
		return Notification{}, ErrNoSecrets
	}
	ts, sig, err := parseMemorySignature(header.Get(MemorySignatureHeader))
	if err != nil {
		return Notification{}, err
	}
	if age := now.Sub(time.Unix(ts, 0)); age > MemorySignatureTolerance || age < -time.Minute {
		return Notification{}, fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	for _, secret := range secrets {
		expected := memorySignature(secret, ts, payload)
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return m.DecodeNotification(payload)
		}
	}
	return Notification{}, ErrInvalidSignature
}

func (m *Memory) DecodeNotification(payload []byte) (Notification, error) {
	var ev MemoryEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Notification{}, errors.Join(ErrMalformedPayload, err)
	}
	if ev.ID == "" {
		return Notification{}, ErrMalformedPayload
	}

	n := Notification{
		ID:             ev.ID,
		ProviderType:   ev.Type,
		Type:           NotificationType(ev.Type),
		CreatedAt:      ev.CreatedAt,
		CustomerID:     ev.CustomerID,
		SubscriptionID: ev.SubscriptionID,
		Subscription:   ev.Subscription,
		Payload:        payload,
	}
	switch n.Type {
	case NotificationSubscriptionCreated, NotificationSubscriptionUpdated,
		NotificationSubscriptionDeleted, NotificationCheckoutCompleted:
	default:
		n.Type = NotificationOther
	}
	if s := ev.Subscription; s != nil {
		if n.SubscriptionID == "" {
			n.SubscriptionID = s.ID
		}
		if n.CustomerID == "" {
			n.CustomerID = s.CustomerID
		}
	}
	return n, nil
}

func memorySignature(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte("."))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func parseMemorySignature(header string) (int64, string, error) {
	if header == "" {
		return 0, "", ErrInvalidSignature
	}
	var (
		ts  int64
		sig string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			ts = n
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", ErrInvalidSignature
	}
	return ts, sig, nil
}
