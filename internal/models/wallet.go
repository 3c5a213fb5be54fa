package models

import "time"

// WalletTransaction is one immutable ledger row. Amount is signed: credits
// are positive, debits negative. BalanceBefore and BalanceAfter snapshot the
// owner's balance atomically with the posting.
type WalletTransaction struct {
	ID        int64  `json:"id"`
	OwnerType string `json:"owner_type"`
	OwnerID   int64  `json:"owner_id"`

	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`

	BookingID int64  `json:"booking_id,omitempty"`
	PayoutID  int64  `json:"payout_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Reference string `json:"reference,omitempty"`
	Note      string `json:"note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Credits reports whether the transaction type moves money into the wallet.
// Adjustments are excluded: they carry an explicit sign on Amount.
func Credits(trxType string) bool {
	switch trxType {
	case TrxEarning, TrxTopUp, TrxRefund:
		return true
	}
	return false
}

// Debits reports whether the transaction type moves money out of the wallet.
func Debits(trxType string) bool {
	switch trxType {
	case TrxPlatformFee, TrxPayout:
		return true
	}
	return false
}
