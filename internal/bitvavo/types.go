package bitvavo

// Balance is the exchange's balance entry for one asset.
type Balance struct {
	Symbol    string  `json:"symbol"`
	Available float64 `json:"available,string"`
	InOrder   float64 `json:"inOrder,string"`
}

// Price is the exchange's last-trade price for a market.
type Price struct {
	Market string  `json:"market"`
	Price  float64 `json:"price,string"`
}

// CreateOrderRequest creates a market order. Buys are sized in quote
// currency (AmountQuote), sells in base currency (Amount).
type CreateOrderRequest struct {
	Market      string  `json:"market"`
	Side        string  `json:"side"`
	OrderType   string  `json:"orderType"`
	Amount      float64 `json:"amount,omitempty"`
	AmountQuote float64 `json:"amountQuote,omitempty"`
}

// CreateOrderResponse is the synchronous order-creation result.
type CreateOrderResponse struct {
	OrderID string `json:"orderId"`
	Market  string `json:"market"`
	Side    string `json:"side"`
	Status  string `json:"status"`
}
