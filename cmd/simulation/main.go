package main

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	mrand "math/rand"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradekit/autotrader/internal/auth"
	"github.com/tradekit/autotrader/internal/bitvavo"
	"github.com/tradekit/autotrader/internal/bots"
	"github.com/tradekit/autotrader/internal/positions"
	"github.com/tradekit/autotrader/internal/trading"
	"github.com/tradekit/autotrader/internal/vault"
)

const (
	minSignals = 15
	maxSignals = 150
	numWorkers = 5
)

var actions = []string{"buy", "sell"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks latency statistics for the webhook endpoint
type routeStats struct {
	mu        sync.Mutex
	durations []time.Duration
	failures  int
}

func (rs *routeStats) add(d time.Duration, failed bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	if failed {
		rs.failures++
	}
}

// calculate computes min, max, mean, median, p95 and p99 from the recorded
// durations.
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// stubExchange serves a fake Bitvavo API with randomized balances so both
// sufficient and insufficient sizing paths get exercised.
type stubExchange struct {
	mu sync.Mutex
}

func (s *stubExchange) engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/balance", func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		symbol := c.Query("symbol")
		available := mrand.Float64() * 200 // sometimes under the 5 EUR minimum
		if symbol != "EUR" {
			available = mrand.Float64() * 0.01
		}
		c.JSON(http.StatusOK, gin.H{
			"symbol":    symbol,
			"available": fmt.Sprintf("%v", available),
			"inOrder":   "0",
		})
	})
	r.GET("/ticker/price", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"market": c.Query("market"),
			"price":  fmt.Sprintf("%v", 20000+mrand.Float64()*20000),
		})
	})
	r.POST("/order", func(c *gin.Context) {
		var order map[string]interface{}
		if err := c.ShouldBindJSON(&order); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"orderId": uuid.New().String(),
			"market":  order["market"],
			"side":    order["side"],
			"status":  "filled",
		})
	})
	return r
}

// serve starts a handler on an ephemeral local port and returns its base URL.
func serve(handler http.Handler) (string, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	go func() {
		if err := http.Serve(lis, handler); err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}()
	return "http://" + lis.Addr().String(), nil
}

func main() {
	// Stub exchange
	exchangeURL, err := serve((&stubExchange{}).engine())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start stub exchange")
	}
	log.Info().Str("url", exchangeURL).Msg("stub exchange running")

	// In-memory application stack
	db, err := gorm.Open(sqlite.Open("file:simulation?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to access database pool")
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&bots.BotConfig{}, &trading.Signal{}, &trading.OrderRecord{}, &positions.Position{}); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schemas")
	}

	masterKey := make([]byte, 32)
	if _, err := rand.Read(masterKey); err != nil {
		log.Fatal().Err(err).Msg("failed to generate master key")
	}
	credentialVault, err := vault.New(base64.StdEncoding.EncodeToString(masterKey))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize vault")
	}

	botService := bots.NewService(db, credentialVault)
	tracker := positions.NewTracker(db)
	exchange := bitvavo.NewClient(exchangeURL, bitvavo.NewSigner(10000))
	tradingService := trading.NewService(db, botService, tracker, exchange)
	webhookAuth := auth.NewWebhookAuthenticator(nil, botService)
	handlers := trading.NewGinHandlers(tradingService, webhookAuth)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.POST("/webhook/tradingview", handlers.WebhookHandler())

	appURL, err := serve(router)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start application server")
	}
	log.Info().Str("url", appURL).Msg("autotrader running")

	// One bot per worker, each on its own EUR pair
	pairs := []string{"BTCEUR", "ETHEUR", "ADAEUR", "SOLEUR", "XRPEUR"}
	type target struct {
		botID      string
		ticker     string
		webhookKey string
	}
	targets := make([]target, 0, numWorkers)
	for i := 0; i < numWorkers; i++ {
		pair := pairs[i%len(pairs)]
		bot, webhookKey, err := botService.Register(pair, "sim-key-"+pair, "sim-secret-"+pair)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to register bot")
		}
		targets = append(targets, target{botID: bot.BotID, ticker: pair, webhookKey: webhookKey})
	}

	numSignals := mrand.Intn(maxSignals-minSignals+1) + minSignals
	log.Info().Int("signals", numSignals).Int("workers", numWorkers).Msg("starting simulation")

	stats := &routeStats{}
	client := &http.Client{Timeout: 10 * time.Second}
	work := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		tgt := targets[w]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range work {
				payload, _ := json.Marshal(trading.SignalRequest{
					BotID:     tgt.botID,
					Ticker:    tgt.ticker,
					Action:    actions[mrand.Intn(len(actions))],
					Timestamp: time.Now().Format(time.RFC3339),
					DryRun:    mrand.Intn(4) == 0, // quarter of signals dry-run
				})

				req, err := http.NewRequest(http.MethodPost, appURL+"/webhook/tradingview", bytes.NewReader(payload))
				if err != nil {
					log.Error().Err(err).Msg("building request")
					continue
				}
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("X-API-KEY", tgt.webhookKey)

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					stats.add(elapsed, true)
					log.Error().Err(err).Msg("webhook call failed")
					continue
				}
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()

				failed := resp.StatusCode != http.StatusOK
				stats.add(elapsed, failed)
				if failed {
					log.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("signal rejected")
				}
			}
		}()
	}

	for i := 0; i < numSignals; i++ {
		work <- i
	}
	close(work)
	wg.Wait()

	min, max, mean, median, p95, p99 := stats.calculate()
	log.Info().
		Int("total", len(stats.durations)).
		Int("failures", stats.failures).
		Dur("min", min).
		Dur("max", max).
		Dur("mean", mean).
		Dur("median", median).
		Dur("p95", p95).
		Dur("p99", p99).
		Msg("simulation complete")
}
