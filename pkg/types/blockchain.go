package types

// Transaction is a completed payment between two registered accounts
type Transaction struct {
	ID        uint64 `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Amount    uint64 `json:"amount"`
	Memo      string `json:"memo,omitempty" metadata:",optional"`
	CreatedAt uint64 `json:"created_at"`
}

// EventOrderFulfilled is the name of the event emitted on fulfillment
const EventOrderFulfilled = "OrderFulfilled"

// FulfillmentEvent is emitted when a dispenser fulfills an order
type FulfillmentEvent struct {
	EventID   string `json:"event_id"`
	OrderID   uint64 `json:"order_id"`
	Dispenser string `json:"dispenser"`
	Patient   string `json:"patient"`
	Tick      uint64 `json:"tick"`
}
