package services

import "github.com/hackload-kz/payment-sub008/internal/domain"

type InitiateCommand struct {
	MerchantID string
	OrderID    string
	Amount     int64
	Currency   string
}

type AuthorizeCommand struct {
	PaymentID string
	Result    domain.BankResult
}

type ConfirmCommand struct {
	PaymentID string
	// Amount zero captures the full remaining authorization.
	Amount int64
}

type CancelCommand struct {
	PaymentID string
	Reason    string
}

type RefundCommand struct {
	PaymentID string
	// Amount zero refunds the full remaining captured amount.
	Amount int64
}
