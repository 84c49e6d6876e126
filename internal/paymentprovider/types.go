package paymentprovider

// DefaultCurrency валюта заказа, если клиент её не указал.
const DefaultCurrency = "INR"

// CreateOrderRequest тело запроса на создание заказа. Сумма в минимальных единицах валюты.
type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

// Order заказ провайдера, возвращается клиенту как есть.
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt,omitempty"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}
