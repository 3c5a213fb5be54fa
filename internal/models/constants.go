package models

// Booking statuses. Transitions are enforced by the service layer;
// the database only performs compare-and-swap updates on these values.
const (
	StatusPending         = "pending"
	StatusAccepted        = "accepted"
	StatusProviderEnRoute = "provider_en_route"
	StatusProviderArrived = "provider_arrived"
	StatusInProgress      = "in_progress"
	StatusCompleted       = "completed"
	StatusRejected        = "rejected"
	StatusCancelled       = "cancelled"
)

// IsTerminalStatus reports whether a booking can never leave the status.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Wallet owner types.
const (
	OwnerProvider = "provider"
	OwnerShop     = "shop"
)

// Wallet transaction types. Earning, top-up and refund credit the balance;
// platform fee and payout debit it; adjustments carry their own sign.
const (
	TrxTopUp       = "top_up"
	TrxPlatformFee = "platform_fee"
	TrxPayout      = "payout"
	TrxEarning     = "earning"
	TrxRefund      = "refund"
	TrxAdjustment  = "adjustment"
)

// Payout statuses.
const (
	PayoutPending    = "pending"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutRejected   = "rejected"
)

// Payment methods accepted for a booking.
const (
	PaymentCash  = "cash"
	PaymentGCash = "gcash"
	PaymentCard  = "card"
)

// Actor roles for authorization checks.
const (
	ActorCustomer = "customer"
	ActorProvider = "provider"
	ActorShop     = "shop"
	ActorAdmin    = "admin"
)

// RejectReasonTimeout marks bookings auto-rejected by the accept-timeout sweep.
const RejectReasonTimeout = "timeout"

const (
	// WorkerQueueSize bounds the export worker queue.
	WorkerQueueSize = 256

	// DefaultPageSize for transaction and payout listings.
	DefaultPageSize = 20

	// MaxPageSize callers may request per page.
	MaxPageSize = 100
)
