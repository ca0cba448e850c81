package billing

import (
	"github.com/dmitrymomot/imgcompare/handler"
	"github.com/dmitrymomot/imgcompare/pkg/authn"
	"github.com/dmitrymomot/imgcompare/pkg/logger"
	"github.com/dmitrymomot/imgcompare/svc/ledger"
)

type portalRequest struct {
	Intent string `json:"intent" validate:"omitempty,oneof=update cancel resume none"`
}

type portalResponse struct {
	URL string `json:"url"`
}

func (m *Module) portal(ctx handler.Context, req portalRequest) handler.Response {
	userID := authn.UserID(ctx)
	if userID == "" {
		return handler.Error(authn.ErrUnauthorized)
	}

	intent := ledger.PortalIntent(req.Intent)
	if intent == "" {
		intent = ledger.PortalIntentNone
	}

	customerID, err := m.deps.Identity.Resolve(ctx, userID)
	if err != nil {
		return handler.Error(err)
	}

	session := ledger.PortalRequest{
		CustomerID: customerID,
		Intent:     intent,
		ReturnURL:  m.cfg.PortalReturnURL,
	}
	// Cancel and update are scoped to the subscription the user currently
	// has; without one they fall back to the general portal.
	if intent == ledger.PortalIntentCancel || intent == ledger.PortalIntentUpdate {
		st, err := m.deps.Status.Status(ctx, userID)
		if err != nil {
			return handler.Error(err)
		}
		if st.Active && st.Subscription != nil {
			session.SubscriptionID = st.Subscription.ID
		} else {
			session.Intent = ledger.PortalIntentNone
		}
	}

	url, err := m.deps.Portal.CreatePortalSession(ctx, session)
	if err != nil {
		return handler.Error(err)
	}
	m.logger.InfoContext(ctx, "billing portal session created",
		logger.Component("billing"),
		logger.UserID(userID),
		logger.CustomerID(customerID),
		logger.SubscriptionID(session.SubscriptionID),
	)
	return handler.JSON(portalResponse{URL: url})
}
