package model

import "time"

// CreditBalance is the current number of prepaid session credits held
// by a client.  One row per client in `credit_balances`; the balance is
// never negative.
type CreditBalance struct {
    ClientID  uint64    `json:"client_id"`
    Balance   int       `json:"balance"`
    UpdatedAt time.Time `json:"updated_at"`
}

// CreditReason classifies a ledger entry.
type CreditReason string

const (
    CreditDeduct  CreditReason = "deduct"
    CreditRefund  CreditReason = "refund"
    CreditForfeit CreditReason = "forfeit"
    CreditGrant   CreditReason = "grant"
)

// CreditTransaction is an append-only row of `credit_transactions`.
// Delta is -1 for a deduction, +1 for a refund, 0 for a forfeit record
// and +n for a granted pack.  BookingID is nil only for grants.
//
// Invariant: the sum of Delta over a client's transactions equals the
// client's CreditBalance.Balance.
type CreditTransaction struct {
    ID        uint64       `json:"id"`
    ClientID  uint64       `json:"client_id"`
    Delta     int          `json:"delta"`
    Kind      CreditReason `json:"kind"`
    BookingID *uint64      `json:"booking_id,omitempty"`
    Reason    string       `json:"reason"`
    CreatedAt time.Time    `json:"created_at"`
}
