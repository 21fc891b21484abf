// Package trading implements the signal execution pipeline: it validates
// inbound signals, sizes orders from live account balances, submits them to
// the exchange (or simulates submission in dry-run mode) and keeps the order
// and position bookkeeping.
package trading

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tradekit/autotrader/internal/bitvavo"
	"github.com/tradekit/autotrader/internal/bots"
	"github.com/tradekit/autotrader/internal/metrics"
	"github.com/tradekit/autotrader/internal/positions"
)

// Minimum EUR value for any trade. Orders sized below this are recorded as
// FAILED without contacting the exchange.
const minTradeEUR = 5.0

// ValidationError marks a malformed or business-rejected signal. The webhook
// layer maps it to a 400 response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// SignalRequest is the inbound webhook payload.
type SignalRequest struct {
	BotID     string `json:"botId"`
	Ticker    string `json:"ticker"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	DryRun    bool   `json:"dryRun"`
}

// Result is the terminal outcome of one signal. A Failed result has already
// been recorded as a FAILED order; Fatal marks failures that must also
// surface as a server error to the webhook caller, as opposed to normal
// terminal outcomes such as an insufficient balance.
type Result struct {
	Status  string
	OrderID string
	Reason  string
	Fatal   bool
}

// Service is the signal execution pipeline. Signals for the same
// (bot, ticker) pair are serialized through a keyed lock so the
// read-then-write position bookkeeping stays consistent; different pairs
// execute concurrently.
type Service struct {
	db        *Database
	bots      *bots.Service
	positions *positions.Tracker
	exchange  *bitvavo.Client

	mu        sync.Mutex
	pairLocks map[string]*sync.Mutex
}

func NewService(gormDB *gorm.DB, botService *bots.Service, tracker *positions.Tracker, exchange *bitvavo.Client) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		bots:      botService,
		positions: tracker,
		exchange:  exchange,
		pairLocks: make(map[string]*sync.Mutex),
	}
}

// ProcessSignal runs one signal through the pipeline. It returns a
// ValidationError for malformed or business-rejected signals (no order
// record is written for those, only the signal audit row where applicable)
// and a Result for every signal that reached sizing.
func (s *Service) ProcessSignal(req SignalRequest) (*Result, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	action := strings.ToLower(req.Action)

	lock := s.pairLock(req.BotID, req.Ticker)
	lock.Lock()
	defer lock.Unlock()

	bot, err := s.bots.GetBot(req.BotID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, validationErrorf("Bot configuration not found: %s", req.BotID)
	}

	// Audit trail first: the signal is durably recorded before business
	// checks and before any exchange call.
	if err := s.saveSignal(&req); err != nil {
		return nil, err
	}

	if req.Ticker != bot.TradingPair {
		return nil, validationErrorf("Ticker mismatch: %s does not match bot's configured trading pair: %s",
			req.Ticker, bot.TradingPair)
	}
	if !strings.HasSuffix(req.Ticker, "EUR") {
		return nil, validationErrorf("Unsupported ticker: %s. Only EUR-quoted trading pairs are supported.",
			req.Ticker)
	}

	creds, err := s.bots.Credentials(bot)
	if err != nil {
		// A credential that fails to decrypt must never reach the signer.
		return nil, err
	}

	var result *Result
	var execErr error
	switch action {
	case "buy":
		result, execErr = s.executeBuy(&req, creds)
	case "sell":
		result, execErr = s.executeSell(&req, creds)
	}

	if execErr != nil {
		// Durably record the failure, then surface it to the caller.
		log.Error().Err(execErr).
			Str("bot_id", req.BotID).
			Str("ticker", req.Ticker).
			Str("action", action).
			Msg("signal execution failed")
		s.saveFailedOrder(req.BotID, req.Ticker, execErr.Error())
		result = &Result{
			Status: StatusFailed,
			Reason: fmt.Sprintf("error processing %s signal: %v", action, execErr),
			Fatal:  true,
		}
	}

	metrics.SignalsTotal.WithLabelValues(action, strings.ToLower(result.Status)).Inc()
	return result, nil
}

// ListOrders returns the order records for a bot, newest first.
func (s *Service) ListOrders(botID string) ([]OrderRecord, error) {
	return s.db.ListOrdersByBot(botID)
}

// ListSignals returns the signal audit rows for a bot, newest first.
func (s *Service) ListSignals(botID string) ([]Signal, error) {
	return s.db.ListSignalsByBot(botID)
}

// validateRequest performs the structural checks, in order. Field content
// that fails here never reaches the audit trail.
func validateRequest(req *SignalRequest) *ValidationError {
	if req.BotID == "" {
		return &ValidationError{Message: "Bot ID is required"}
	}
	if req.Ticker == "" {
		return &ValidationError{Message: "Ticker is required"}
	}
	if req.Action == "" {
		return &ValidationError{Message: "Action is required"}
	}
	switch strings.ToLower(req.Action) {
	case "buy", "sell":
	default:
		return validationErrorf("Invalid action: %s. Supported actions are 'buy' and 'sell'.", req.Action)
	}
	if req.Timestamp == "" {
		return &ValidationError{Message: "Timestamp is required"}
	}
	if _, err := time.Parse(time.RFC3339, req.Timestamp); err != nil {
		return &ValidationError{Message: "Invalid timestamp format. Expected an ISO-8601 offset date-time."}
	}
	return nil
}

func (s *Service) saveSignal(req *SignalRequest) error {
	timestamp, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		return err
	}
	return s.db.SaveSignal(&Signal{
		BotID:     req.BotID,
		Ticker:    req.Ticker,
		Action:    strings.ToLower(req.Action),
		Timestamp: timestamp,
		DryRun:    req.DryRun,
	})
}

// executeBuy sizes a market buy with the entire available EUR balance.
func (s *Service) executeBuy(req *SignalRequest, creds bitvavo.Credentials) (*Result, error) {
	logger := log.With().Str("bot_id", req.BotID).Str("ticker", req.Ticker).Logger()
	logger.Info().Msg("processing buy signal")

	var balance bitvavo.Balance
	if err := s.exchange.Get("/balance?symbol=EUR", creds, &balance); err != nil {
		return nil, err
	}
	logger.Info().Float64("eur_balance", balance.Available).Msg("fetched EUR balance")

	if balance.Available < minTradeEUR {
		reason := fmt.Sprintf("Insufficient EUR balance: %s EUR. Minimum required: %s EUR.",
			formatAmount(balance.Available), formatAmount(minTradeEUR))
		logger.Warn().Msg(reason)
		s.saveFailedOrder(req.BotID, req.Ticker, reason)
		return &Result{Status: StatusFailed, Reason: reason}, nil
	}

	order := bitvavo.CreateOrderRequest{
		Market:      req.Ticker,
		Side:        "buy",
		OrderType:   "market",
		AmountQuote: balance.Available,
	}

	orderID, err := s.submitOrder(order, creds, req.DryRun)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("order_id", orderID).Msg("buy order placed")

	if err := s.saveCompletedOrder(req.BotID, req.Ticker, orderID); err != nil {
		return nil, err
	}
	if err := s.positions.Open(req.BotID, req.Ticker); err != nil {
		return nil, err
	}

	return &Result{Status: StatusCompleted, OrderID: orderID}, nil
}

// executeSell sizes a market sell with the entire available base-asset
// balance, after checking the position is worth trading at current prices.
func (s *Service) executeSell(req *SignalRequest, creds bitvavo.Credentials) (*Result, error) {
	logger := log.With().Str("bot_id", req.BotID).Str("ticker", req.Ticker).Logger()
	logger.Info().Msg("processing sell signal")

	asset := baseAsset(req.Ticker)

	var balance bitvavo.Balance
	if err := s.exchange.Get("/balance?symbol="+asset, creds, &balance); err != nil {
		return nil, err
	}
	logger.Info().Str("asset", asset).Float64("balance", balance.Available).Msg("fetched asset balance")

	var price bitvavo.Price
	if err := s.exchange.Get("/ticker/price?market="+req.Ticker, creds, &price); err != nil {
		return nil, err
	}
	logger.Info().Str("asset", asset).Float64("price", price.Price).Msg("fetched asset price")

	worth := balance.Available * price.Price
	if worth < minTradeEUR {
		reason := fmt.Sprintf("Insufficient %s balance worth: %s EUR. Minimum required: %s EUR.",
			asset, formatAmount(worth), formatAmount(minTradeEUR))
		logger.Warn().Msg(reason)
		s.saveFailedOrder(req.BotID, req.Ticker, reason)
		return &Result{Status: StatusFailed, Reason: reason}, nil
	}

	order := bitvavo.CreateOrderRequest{
		Market:    req.Ticker,
		Side:      "sell",
		OrderType: "market",
		Amount:    balance.Available,
	}

	orderID, err := s.submitOrder(order, creds, req.DryRun)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("order_id", orderID).Msg("sell order placed")

	if err := s.saveCompletedOrder(req.BotID, req.Ticker, orderID); err != nil {
		return nil, err
	}
	if err := s.positions.Close(req.BotID, req.Ticker); err != nil {
		return nil, err
	}

	return &Result{Status: StatusCompleted, OrderID: orderID}, nil
}

// submitOrder posts the order to the exchange, or synthesizes an order ID in
// dry-run mode. Dry-run still sizes against real balances; only this
// submission step is skipped.
func (s *Service) submitOrder(order bitvavo.CreateOrderRequest, creds bitvavo.Credentials, dryRun bool) (string, error) {
	if dryRun {
		orderID := "dry-run-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
		log.Info().Str("order_id", orderID).Str("side", order.Side).Msg("dry run, skipping order submission")
		metrics.OrdersTotal.WithLabelValues(order.Side, "dry_run").Inc()
		return orderID, nil
	}

	var resp bitvavo.CreateOrderResponse
	if err := s.exchange.Post("/order", order, creds, &resp); err != nil {
		return "", err
	}
	metrics.OrdersTotal.WithLabelValues(order.Side, "live").Inc()
	return resp.OrderID, nil
}

func (s *Service) saveCompletedOrder(botID, ticker, orderID string) error {
	return s.db.SaveOrder(&OrderRecord{
		BotID:           botID,
		Ticker:          ticker,
		ExchangeOrderID: orderID,
		Status:          StatusCompleted,
		Timestamp:       time.Now(),
	})
}

func (s *Service) saveFailedOrder(botID, ticker, errorMessage string) {
	record := &OrderRecord{
		BotID:        botID,
		Ticker:       ticker,
		Status:       StatusFailed,
		ErrorMessage: errorMessage,
		Timestamp:    time.Now(),
	}
	if err := s.db.SaveOrder(record); err != nil {
		log.Error().Err(err).Str("bot_id", botID).Msg("failed to persist failed order record")
	}
}

// pairLock returns the mutex for a (bot, ticker) pair, creating it on first
// use. Locks live for the life of the process; the map is bounded by the
// number of configured bots, not by signal volume.
func (s *Service) pairLock(botID, ticker string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := botID + "|" + ticker
	lock, ok := s.pairLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.pairLocks[key] = lock
	}
	return lock
}

// baseAsset strips the EUR quote suffix from a ticker, e.g. "BTCEUR" and
// "BTC-EUR" both yield "BTC".
func baseAsset(ticker string) string {
	asset := strings.TrimSuffix(ticker, "EUR")
	return strings.TrimSuffix(asset, "-")
}

// formatAmount renders a float the way balances read in messages: a whole
// number keeps a single trailing decimal (3 -> "3.0").
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
