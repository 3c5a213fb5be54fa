package models

import "time"

// Payout is a request to convert wallet balance into an external transfer.
// The wallet debit happens at request time; rejection reverses it with an
// offsetting refund row.
type Payout struct {
	ID        int64  `json:"id"`
	OwnerType string `json:"owner_type"`
	OwnerID   int64  `json:"owner_id"`

	Amount    int64 `json:"amount"`
	Fee       int64 `json:"fee"`
	NetAmount int64 `json:"net_amount"`

	Method      string `json:"method"`
	AccountInfo string `json:"account_info"`

	Status          string `json:"status"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Version     int64      `json:"version"`
}

// Open reports whether the payout can still be processed or rejected.
func (p *Payout) Open() bool {
	return p.Status == PayoutPending || p.Status == PayoutProcessing
}
