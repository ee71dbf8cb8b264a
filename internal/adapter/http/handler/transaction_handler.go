package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sbms/trading/internal/adapter/http/dto"
	"github.com/sbms/trading/internal/adapter/http/middleware"
	"github.com/sbms/trading/internal/usecase"
)

// TransactionHandler handles transaction-related HTTP requests.
type TransactionHandler struct {
	engine  *usecase.TransactionUseCase
	queries *usecase.TransactionQueryUseCase
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(engine *usecase.TransactionUseCase, queries *usecase.TransactionQueryUseCase) *TransactionHandler {
	return &TransactionHandler{engine: engine, queries: queries}
}

// Create posts a new transaction.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	businessID, ok := middleware.BusinessIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req dto.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(middleware.BearerTokenFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	txn, err := h.engine.CreateTransaction(r.Context(), businessID, input)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to create transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(txn))
}

// Get retrieves one transaction by id.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	businessID, ok := middleware.BusinessIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id", "")
		return
	}

	txn, err := h.engine.GetTransaction(r.Context(), businessID, id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}

// Update overwrites a posted transaction, reverting and reapplying its
// stock, balance and offer effects.
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	businessID, ok := middleware.BusinessIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id", "")
		return
	}

	var req dto.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(middleware.BearerTokenFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	txn, err := h.engine.UpdateTransaction(r.Context(), businessID, id, input)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to update transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}

// Delete reverses and removes a posted transaction.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	businessID, ok := middleware.BusinessIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id", "")
		return
	}

	token := middleware.BearerTokenFromContext(r.Context())
	if err := h.engine.DeleteTransaction(r.Context(), businessID, id, token); err != nil {
		writeError(w, mapDomainError(err), "failed to delete transaction", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Search lists transactions matching the query, type and date filters.
func (h *TransactionHandler) Search(w http.ResponseWriter, r *http.Request) {
	businessID, ok := middleware.BusinessIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	q := r.URL.Query()
	input := usecase.SearchTransactionsInput{
		Query:     q.Get("query"),
		Type:      q.Get("type"),
		DateRange: q.Get("dateRange"),
		StartDate: parseDateQuery(r, "startDate"),
		EndDate:   parseDateQuery(r, "endDate"),
	}

	txns, err := h.queries.SearchTransactions(r.Context(), businessID, input)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to search transactions", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsFromDomain(txns))
}

// ListByParty lists every transaction recorded against one counterparty.
func (h *TransactionHandler) ListByParty(w http.ResponseWriter, r *http.Request) {
	businessID, ok := middleware.BusinessIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	partyID, err := strconv.ParseInt(chi.URLParam(r, "partyId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid party id", "")
		return
	}

	txns, err := h.queries.ListTransactionsByParty(r.Context(), businessID, partyID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list transactions", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsFromDomain(txns))
}
