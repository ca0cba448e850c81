package billing

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrymomot/imgcompare/handler"
	"github.com/dmitrymomot/imgcompare/pkg/logger"
)

// ErrPayloadTooLarge is returned when a notification body exceeds the limit.
var ErrPayloadTooLarge = errors.New("notification payload too large")

var errRejected = handler.HTTPError{
	Status:  http.StatusBadRequest,
	Code:    handler.CodeMalformedInput,
	Message: "notification could not be verified",
}

type webhookRequest struct {
	Payload []byte
	Header  http.Header
}

type webhookResponse struct {
	Received bool `json:"received"`
}

func rawBody(limit int64) handler.Bind {
	return func(r *http.Request, v any) error {
		req, ok := v.(*webhookRequest)
		if !ok {
			return fmt.Errorf("raw body binder: unsupported target %T", v)
		}
		payload, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
		if err != nil {
			return errors.Join(errRejected, err)
		}
		if int64(len(payload)) > limit {
			return errors.Join(errRejected, ErrPayloadTooLarge)
		}
		req.Payload = payload
		req.Header = r.Header
		return nil
	}
}

func (m *Module) webhook(ctx handler.Context, req webhookRequest) handler.Response {
	log := m.logger.With(logger.Component("billing"))

	n, err := m.deps.Decoder.VerifyNotification(req.Payload, req.Header)
	if err != nil {
		if m.env.IsProduction() || !m.cfg.AllowUnsignedWebhooks {
			log.WarnContext(ctx, "notification rejected", logger.Error(err))
			return handler.Error(errRejected)
		}
		log.WarnContext(ctx, "accepting unsigned notification outside production", logger.Error(err))
		n, err = m.deps.Decoder.DecodeNotification(req.Payload)
		if err != nil {
			log.WarnContext(ctx, "notification rejected", logger.Error(err))
			return handler.Error(errRejected)
		}
	}

	// The notification is acknowledged regardless of the outcome; the
	// notification log keeps the failure for reprocessing.
	if err := m.deps.Mirror.Handle(ctx, n); err != nil {
		log.ErrorContext(ctx, "failed to process notification",
			logger.NotificationID(n.ID),
			logger.EventType(n.ProviderType),
			logger.Error(err),
		)
	}
	return handler.JSON(webhookResponse{Received: true})
}
