package trading

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tradekit/autotrader/internal/auth"
	"github.com/tradekit/autotrader/pkg/response"
)

// GinHandlers contains HTTP handlers for the signal webhook and the operator
// lookups over signal and order history.
type GinHandlers struct {
	service       *Service
	authenticator *auth.WebhookAuthenticator
}

func NewGinHandlers(service *Service, authenticator *auth.WebhookAuthenticator) *GinHandlers {
	return &GinHandlers{
		service:       service,
		authenticator: authenticator,
	}
}

// WebhookHandler handles POST /webhook/tradingview. Responses follow the
// TradingView webhook contract: 200 with an empty body on success, plaintext
// errors otherwise.
func (h *GinHandlers) WebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, "Invalid request body")
			return
		}

		log.Info().
			Str("bot_id", req.BotID).
			Str("ticker", req.Ticker).
			Str("action", req.Action).
			Bool("dry_run", req.DryRun).
			Msg("received signal")

		// The peer address, never forwarding headers: X-Forwarded-For is
		// caller-controlled and must not influence the allow-list check.
		switch h.authenticator.Authorize(req.BotID, c.GetHeader("X-API-KEY"), c.RemoteIP()) {
		case auth.IPNotAllowed:
			log.Warn().Str("remote_addr", c.RemoteIP()).Msg("unauthorized signal origin")
			c.String(http.StatusUnauthorized, "Unauthorized access")
			return
		case auth.InvalidAPIKey:
			log.Warn().Str("bot_id", req.BotID).Msg("invalid webhook API key")
			c.String(http.StatusUnauthorized, "Invalid API key")
			return
		}

		result, err := h.service.ProcessSignal(req)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				log.Warn().Str("bot_id", req.BotID).Str("reason", verr.Message).Msg("signal rejected")
				c.String(http.StatusBadRequest, verr.Message)
				return
			}
			log.Error().Err(err).Str("bot_id", req.BotID).Msg("error processing signal")
			c.String(http.StatusInternalServerError, "Error processing alert: %s", err.Error())
			return
		}

		if result.Fatal {
			c.String(http.StatusInternalServerError, "Error processing alert: %s", result.Reason)
			return
		}

		c.Status(http.StatusOK)
	}
}

// ListOrdersHandler handles GET requests for a bot's order records.
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.ListOrders(c.Param("bot_id"))
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, orders)
	}
}

// ListSignalsHandler handles GET requests for a bot's signal audit trail.
func (h *GinHandlers) ListSignalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		signals, err := h.service.ListSignals(c.Param("bot_id"))
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, signals)
	}
}
