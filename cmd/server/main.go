package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/tradekit/autotrader/internal/auth"
	"github.com/tradekit/autotrader/internal/bitvavo"
	"github.com/tradekit/autotrader/internal/bots"
	"github.com/tradekit/autotrader/internal/config"
	"github.com/tradekit/autotrader/internal/database"
	"github.com/tradekit/autotrader/internal/positions"
	"github.com/tradekit/autotrader/internal/trading"
	"github.com/tradekit/autotrader/internal/vault"
	"github.com/tradekit/autotrader/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures application logging. Development mode gets pretty console
// output; DEBUG=true lowers the level.
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	credentialVault, err := vault.New(cfg.EncryptionMasterKey)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize credential vault")
	}

	router := gin.Default()
	// Trust no proxy: client IPs come from the connection's peer address,
	// not from X-Forwarded-For.
	if err := router.SetTrustedProxies(nil); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to configure trusted proxies")
	}

	// Exchange access
	signer := bitvavo.NewSigner(cfg.WindowMS)
	exchange := bitvavo.NewClient(cfg.BitvavoAPIURL, signer)

	// Services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if apiKey := os.Getenv("OPERATOR_API_KEY"); apiKey != "" {
		authService.RegisterAPICredentials(apiKey, os.Getenv("OPERATOR_API_SECRET"))
	}

	botService := bots.NewService(db, credentialVault)
	botHandlers := bots.NewGinHandlers(botService)

	tracker := positions.NewTracker(db)

	tradingService := trading.NewService(db, botService, tracker, exchange)
	webhookAuth := auth.NewWebhookAuthenticator(cfg.AllowedWebhookIPs, botService)
	tradingHandlers := trading.NewGinHandlers(tradingService, webhookAuth)

	router.Use(middleware.RateLimit())

	setupRoutes(router, cfg.JWTSecret, authHandlers, botHandlers, tradingHandlers)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all endpoints:
// - Webhook route: plaintext signal intake, authorized per request
// - Auth routes: public endpoint issuing operator tokens
// - Bot routes: operator API, protected by JWT authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	botHandlers *bots.GinHandlers,
	tradingHandlers *trading.GinHandlers,
) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "autotrader", "status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhook/tradingview", tradingHandlers.WebhookHandler())

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		botsGroup := v1.Group("/bots")
		botsGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			botsGroup.POST("", botHandlers.RegisterBotHandler())
			botsGroup.GET("", botHandlers.ListBotsHandler())
			botsGroup.GET("/:bot_id", botHandlers.GetBotHandler())
			botsGroup.POST("/:bot_id/activate", botHandlers.SetActiveHandler(true))
			botsGroup.POST("/:bot_id/deactivate", botHandlers.SetActiveHandler(false))
			botsGroup.POST("/:bot_id/webhook-key", botHandlers.RotateWebhookKeyHandler())
			botsGroup.GET("/:bot_id/orders", tradingHandlers.ListOrdersHandler())
			botsGroup.GET("/:bot_id/signals", tradingHandlers.ListSignalsHandler())
		}
	}
}
