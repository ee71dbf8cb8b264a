package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sbms/trading/internal/domain"
)

// OfferServiceClient implements usecase.OfferServiceClient against the
// smart-ops service's redemption endpoints.
type OfferServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOfferServiceClient creates a new OfferServiceClient.
func NewOfferServiceClient(baseURL string, timeout time.Duration) *OfferServiceClient {
	return &OfferServiceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RecordRedemption reports one offer redemption against a transaction.
func (c *OfferServiceClient) RecordRedemption(ctx context.Context, p domain.OfferRedemptionPayload) error {
	body := struct {
		OfferID        string      `json:"offerId"`
		TransactionID  int64       `json:"transactionId"`
		CustomerID     string      `json:"customerId"`
		PartyName      string      `json:"partyName"`
		DiscountAmount json.Number `json:"discountAmount"`
	}{
		OfferID:        p.OfferID,
		TransactionID:  p.TransactionID,
		CustomerID:     p.CustomerID,
		PartyName:      p.PartyName,
		DiscountAmount: json.Number(p.DiscountAmount.String()),
	}

	url := c.baseURL + "/api/smart-ops/offers/redemption"
	if err := postJSON(ctx, c.httpClient, url, p.BearerToken, body); err != nil {
		return fmt.Errorf("record redemption of offer %s: %w", p.OfferID, err)
	}

	return nil
}

// RollbackRedemption withdraws a previously reported redemption.
func (c *OfferServiceClient) RollbackRedemption(ctx context.Context, p domain.OfferRollbackPayload) error {
	body := struct {
		OfferID       string `json:"offerId"`
		TransactionID int64  `json:"transactionId"`
	}{
		OfferID:       p.OfferID,
		TransactionID: p.TransactionID,
	}

	url := c.baseURL + "/api/smart-ops/offers/redemption/rollback"
	if err := postJSON(ctx, c.httpClient, url, p.BearerToken, body); err != nil {
		return fmt.Errorf("roll back redemption of offer %s: %w", p.OfferID, err)
	}

	return nil
}
