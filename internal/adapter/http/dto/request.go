// Package dto holds the request and response shapes of the trading API.
package dto

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sbms/trading/internal/usecase"
)

var validate = validator.New()

// LineItemRequest is one product line in a posting request.
type LineItemRequest struct {
	ProductID int64           `json:"productId" validate:"required,gt=0"`
	Qty       decimal.Decimal `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	IsFree    bool            `json:"isFree"`
}

// AppliedOfferRequest is one redeemed offer in a posting request.
type AppliedOfferRequest struct {
	OfferID        string          `json:"offerId" validate:"required"`
	OfferName      string          `json:"offerName"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// TransactionRequest represents a request to post or overwrite a transaction.
type TransactionRequest struct {
	PartyID         *int64                `json:"partyId"`
	PartyName       *string               `json:"partyName"`
	Date            string                `json:"date" validate:"required"`
	Type            string                `json:"type" validate:"required"`
	SubTotal        decimal.Decimal       `json:"subTotal"`
	Discount        decimal.Decimal       `json:"discount"`
	TotalAmount     decimal.Decimal       `json:"totalAmount"`
	PaidAmount      decimal.Decimal       `json:"paidAmount"`
	PaymentMode     *string               `json:"paymentMode"`
	ReferenceNumber *string               `json:"referenceNumber"`
	Notes           *string               `json:"notes"`
	Products        []LineItemRequest     `json:"products" validate:"dive"`
	AppliedOffers   []AppliedOfferRequest `json:"appliedOffers" validate:"dive"`
}

// Validate checks structural constraints before the request reaches the
// engine.
func (r *TransactionRequest) Validate() error {
	return validate.Struct(r)
}

// ToUseCaseInput converts to use case input. bearerToken is the caller's
// raw token, captured by the auth middleware for downstream forwarding.
func (r *TransactionRequest) ToUseCaseInput(bearerToken string) (usecase.PostTransactionInput, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return usecase.PostTransactionInput{}, err
	}

	input := usecase.PostTransactionInput{
		PartyID:         r.PartyID,
		PartyName:       r.PartyName,
		Date:            date,
		Type:            r.Type,
		SubTotal:        r.SubTotal,
		Discount:        r.Discount,
		TotalAmount:     r.TotalAmount,
		PaidAmount:      r.PaidAmount,
		PaymentMode:     r.PaymentMode,
		ReferenceNumber: r.ReferenceNumber,
		Notes:           r.Notes,
		BearerToken:     bearerToken,
	}

	for _, li := range r.Products {
		input.Lines = append(input.Lines, usecase.LineItemInput{
			ProductID: li.ProductID,
			Qty:       li.Qty,
			Price:     li.Price,
			Amount:    li.Amount,
			IsFree:    li.IsFree,
		})
	}

	for _, offer := range r.AppliedOffers {
		input.Offers = append(input.Offers, usecase.AppliedOfferInput{
			OfferID:        offer.OfferID,
			OfferName:      offer.OfferName,
			DiscountAmount: offer.DiscountAmount,
		})
	}

	return input, nil
}

// parseDate accepts a bare date or a full RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
