package domain

import "errors"

var (
	// Product errors
	ErrProductNotFound = errors.New("product not found")

	// Transaction errors
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidAmount          = errors.New("amount must not be negative")

	// Tenancy errors
	ErrForeignBusiness = errors.New("entity does not belong to this business")

	// Auth errors
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)
