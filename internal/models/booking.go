package models

import "time"

// Booking is one service engagement. Amounts are in centavos.
// Fee fields are frozen at settlement and never recomputed afterwards.
type Booking struct {
	ID            int64  `json:"id"`
	BookingNumber string `json:"booking_number"`

	CustomerID   int64  `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	ProviderID   int64  `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	ShopID       int64  `json:"shop_id,omitempty"` // 0 for independent providers

	ServiceName   string `json:"service_name"`
	ServiceAmount int64  `json:"service_amount"`
	TravelFee     int64  `json:"travel_fee"`
	TotalAmount   int64  `json:"total_amount"`
	PaymentMethod string `json:"payment_method"`

	PlatformFee     int64 `json:"platform_fee"`
	ProviderEarning int64 `json:"provider_earning"`
	ShopEarning     int64 `json:"shop_earning,omitempty"`
	RefundAmount    int64 `json:"refund_amount,omitempty"`

	Status       string `json:"status"`
	StatusReason string `json:"status_reason,omitempty"`

	ScheduledAt time.Time  `json:"scheduled_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// ShopAffiliated reports whether the assigned provider worked under a shop
// at booking time.
func (b *Booking) ShopAffiliated() bool {
	return b.ShopID != 0
}

// Settled reports whether fee settlement has already been posted.
func (b *Booking) Settled() bool {
	return b.SettledAt != nil
}

// SettlementOwner returns the wallet owner that carries the platform fee for
// a cash booking: the shop when affiliated, otherwise the provider.
func (b *Booking) SettlementOwner() (ownerType string, ownerID int64) {
	if b.ShopAffiliated() {
		return OwnerShop, b.ShopID
	}
	return OwnerProvider, b.ProviderID
}
