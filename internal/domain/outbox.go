package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EffectType identifies the kind of downstream side effect an outbox
// event delivers.
type EffectType string

const (
	EffectBalanceAdjust   EffectType = "balance.adjust"
	EffectOfferRedemption EffectType = "offer.redemption"
	EffectOfferRollback   EffectType = "offer.rollback"
)

// Critical reports whether a terminal delivery failure of this effect
// should be treated as an incident. Offer usage tracking is best-effort;
// party balances are not.
func (e EffectType) Critical() bool {
	return e == EffectBalanceAdjust
}

// OutboxEvent is one pending (or delivered) downstream side effect,
// written in the same database transaction as the mutation it belongs to.
type OutboxEvent struct {
	ID             string
	TransactionID  int64
	EffectType     EffectType
	IdempotencyKey string
	Payload        []byte
	Attempts       int
	Published      bool
	CreatedAt      time.Time
	PublishedAt    *time.Time
}

// BalanceAdjustPayload is the payload of an EffectBalanceAdjust event.
// BearerToken is the caller's token, captured at request time so the
// dispatcher can forward it to the party service.
type BalanceAdjustPayload struct {
	PartyID     int64           `json:"partyId"`
	Amount      decimal.Decimal `json:"amount"`
	BearerToken string          `json:"bearerToken,omitempty"`
}

// WalkInCustomerID is the sentinel customer id sent to the promotions
// service when a transaction has no counterparty attached.
const WalkInCustomerID = "walk-in"

// OfferRedemptionPayload is the payload of an EffectOfferRedemption event.
type OfferRedemptionPayload struct {
	OfferID        string          `json:"offerId"`
	TransactionID  int64           `json:"transactionId"`
	CustomerID     string          `json:"customerId"`
	PartyName      string          `json:"partyName,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	BearerToken    string          `json:"bearerToken,omitempty"`
}

// OfferRollbackPayload is the payload of an EffectOfferRollback event.
type OfferRollbackPayload struct {
	OfferID       string `json:"offerId"`
	TransactionID int64  `json:"transactionId"`
	BearerToken   string `json:"bearerToken,omitempty"`
}

// EffectIdempotencyKey builds the delivery idempotency key for one side
// effect of one posting operation. opID scopes the key to a single
// create/update/delete call (an update re-emits the same effect types),
// seq disambiguates repeated effects within it (several offers,
// revert followed by reapply).
func EffectIdempotencyKey(opID string, transactionID int64, effect EffectType, seq int) string {
	return fmt.Sprintf("%s:%d:%s:%d", opID, transactionID, effect, seq)
}
