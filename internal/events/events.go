package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingAccepted  = "booking_accepted"
	EventBookingRejected  = "booking_rejected"
	EventBookingCancelled = "booking_cancelled"
	EventBookingSettled   = "booking_settled"
	EventPayoutRequested  = "payout_requested"
	EventPayoutCompleted  = "payout_completed"
	EventPayoutRejected   = "payout_rejected"
	EventWalletTopUp      = "wallet_top_up"
)

// BookingEventPayload is the booking snapshot consumers receive on
// lifecycle transitions.
type BookingEventPayload struct {
	BookingID     int64      `json:"booking_id"`
	BookingNumber string     `json:"booking_number"`
	CustomerID    int64      `json:"customer_id"`
	ProviderID    int64      `json:"provider_id"`
	ShopID        int64      `json:"shop_id,omitempty"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	TotalAmount   int64      `json:"total_amount"`
	RefundAmount  int64      `json:"refund_amount,omitempty"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	ChangedBy     string     `json:"changed_by,omitempty"`
	ChangedAt     *time.Time `json:"changed_at,omitempty"`
}

// SettlementEventPayload is emitted exactly once per completed booking,
// for notification and analytics consumers.
type SettlementEventPayload struct {
	BookingID       int64  `json:"booking_id"`
	BookingNumber   string `json:"booking_number"`
	ProviderID      int64  `json:"provider_id"`
	ShopID          int64  `json:"shop_id,omitempty"`
	PaymentMethod   string `json:"payment_method"`
	TotalAmount     int64  `json:"total_amount"`
	PlatformFee     int64  `json:"platform_fee"`
	ProviderEarning int64  `json:"provider_earning"`
	ShopEarning     int64  `json:"shop_earning,omitempty"`
}

// PayoutEventPayload covers payout lifecycle notifications.
type PayoutEventPayload struct {
	PayoutID        int64  `json:"payout_id"`
	OwnerType       string `json:"owner_type"`
	OwnerID         int64  `json:"owner_id"`
	Amount          int64  `json:"amount"`
	NetAmount       int64  `json:"net_amount"`
	Method          string `json:"method"`
	Status          string `json:"status"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

// WalletEventPayload covers top-up notifications.
type WalletEventPayload struct {
	OwnerType    string `json:"owner_type"`
	OwnerID      int64  `json:"owner_id"`
	Amount       int64  `json:"amount"`
	BalanceAfter int64  `json:"balance_after"`
	Method       string `json:"method,omitempty"`
	Reference    string `json:"reference,omitempty"`
}

// Event is a lightweight in-process domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub. Handlers run synchronously in
// publish order; the caller decides its own concurrency model.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
