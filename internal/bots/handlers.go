package bots

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/tradekit/autotrader/pkg/response"
)

// RegisterRequest carries the plaintext credentials exactly once, at
// registration time. They are encrypted before touching the database.
type RegisterRequest struct {
	TradingPair string `json:"trading_pair" binding:"required"`
	APIKey      string `json:"api_key" binding:"required"`
	APISecret   string `json:"api_secret" binding:"required"`
}

type RegisteredResponse struct {
	BotID       string `json:"bot_id"`
	TradingPair string `json:"trading_pair"`
	WebhookKey  string `json:"webhook_api_key"`
}

type WebhookKeyResponse struct {
	BotID      string `json:"bot_id"`
	WebhookKey string `json:"webhook_api_key"`
}

// GinHandlers contains HTTP handlers for the operator bot-configuration API.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// RegisterBotHandler handles POST requests to register new bots.
// The response includes the webhook API key; it is not retrievable later.
func (h *GinHandlers) RegisterBotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		bot, webhookKey, err := h.service.Register(req.TradingPair, req.APIKey, req.APISecret)
		if err != nil {
			if errors.Is(err, ErrInvalidTradingPair) || errors.Is(err, ErrMissingCredentials) {
				response.BadRequest(c, err.Error())
				return
			}
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, RegisteredResponse{
			BotID:       bot.BotID,
			TradingPair: bot.TradingPair,
			WebhookKey:  webhookKey,
		})
	}
}

// GetBotHandler handles GET requests for a single bot configuration.
// Pass includeInactive=true to address deactivated bots.
func (h *GinHandlers) GetBotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		botID := c.Param("bot_id")

		var bot *BotConfig
		var err error
		if c.Query("includeInactive") == "true" {
			bot, err = h.service.GetBotIncludingInactive(botID)
		} else {
			bot, err = h.service.GetBot(botID)
		}
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		if bot == nil {
			response.NotFound(c, "Bot not found")
			return
		}

		response.Success(c, bot)
	}
}

// ListBotsHandler handles GET requests listing bot configurations.
func (h *GinHandlers) ListBotsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		includeInactive := c.Query("includeInactive") == "true"

		bots, err := h.service.ListBots(includeInactive)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, bots)
	}
}

// SetActiveHandler handles POST requests toggling a bot's active state.
func (h *GinHandlers) SetActiveHandler(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		botID := c.Param("bot_id")

		if err := h.service.SetActive(botID, active); err != nil {
			if errors.Is(err, ErrBotNotFound) {
				response.NotFound(c, "Bot not found")
				return
			}
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{"bot_id": botID, "active": active})
	}
}

// RotateWebhookKeyHandler handles POST requests rotating a bot's webhook key.
// The plaintext key in the response is shown exactly once.
func (h *GinHandlers) RotateWebhookKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		botID := c.Param("bot_id")

		key, err := h.service.RotateWebhookKey(botID)
		if err != nil {
			if errors.Is(err, ErrBotNotFound) {
				response.NotFound(c, "Bot not found")
				return
			}
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, WebhookKeyResponse{BotID: botID, WebhookKey: key})
	}
}
