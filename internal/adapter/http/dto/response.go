package dto

import (
	"github.com/shopspring/decimal"

	"github.com/sbms/trading/internal/domain"
)

// Display defaults when the underlying field was never captured.
const (
	unknownParty       = "Unknown"
	defaultPaymentMode = "Cash"
)

// TransactionLineResponse is one product line in API responses.
type TransactionLineResponse struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Qty       decimal.Decimal `json:"qty"`
	Rate      decimal.Decimal `json:"rate"`
	Total     decimal.Decimal `json:"total"`
	IsFree    bool            `json:"isFree"`
}

// AppliedOfferResponse is one redeemed offer in API responses.
type AppliedOfferResponse struct {
	OfferID        string          `json:"offerId"`
	OfferName      string          `json:"offerName"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID              int64                     `json:"id"`
	PartyID         *int64                    `json:"partyId,omitempty"`
	Party           string                    `json:"party"`
	Date            string                    `json:"date"`
	Time            string                    `json:"time"`
	Type            string                    `json:"type"`
	Status          string                    `json:"status"`
	SubTotal        decimal.Decimal           `json:"subTotal"`
	Discount        decimal.Decimal           `json:"discount"`
	Amount          decimal.Decimal           `json:"amount"`
	PaidAmount      decimal.Decimal           `json:"paidAmount"`
	PaymentMode     string                    `json:"paymentMode"`
	Products        int                       `json:"products"`
	ReferenceNumber *string                   `json:"referenceNumber,omitempty"`
	Notes           *string                   `json:"notes,omitempty"`
	Details         []TransactionLineResponse `json:"details"`
	Offers          []AppliedOfferResponse    `json:"offers,omitempty"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	party := unknownParty
	if t.PartyName != nil && *t.PartyName != "" {
		party = *t.PartyName
	}

	paymentMode := defaultPaymentMode
	if t.PaymentMode != nil && *t.PaymentMode != "" {
		paymentMode = *t.PaymentMode
	}

	resp := &TransactionResponse{
		ID:              t.ID,
		PartyID:         t.PartyID,
		Party:           party,
		Date:            t.Date.Format("2006-01-02"),
		Time:            t.CreatedAt.Format("03:04 PM"),
		Type:            string(t.Type),
		Status:          t.Status(),
		SubTotal:        t.SubTotal,
		Discount:        t.Discount,
		Amount:          t.TotalAmount,
		PaidAmount:      t.PaidAmount,
		PaymentMode:     paymentMode,
		Products:        len(t.Lines),
		ReferenceNumber: t.ReferenceNumber,
		Notes:           t.Notes,
		Details:         make([]TransactionLineResponse, 0, len(t.Lines)),
	}

	for _, line := range t.Lines {
		resp.Details = append(resp.Details, TransactionLineResponse{
			ProductID: line.ProductID,
			Name:      line.ProductName,
			Qty:       line.Qty,
			Rate:      line.Price,
			Total:     line.Amount,
			IsFree:    line.IsFree,
		})
	}

	for _, offer := range t.Offers {
		resp.Offers = append(resp.Offers, AppliedOfferResponse{
			OfferID:        offer.OfferID,
			OfferName:      offer.OfferName,
			DiscountAmount: offer.DiscountAmount,
		})
	}

	return resp
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txns []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
