package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReceiptStatusCompleted is the only status a receipt is ever issued with.
const ReceiptStatusCompleted = "COMPLETED"

// PaymentReceipt summarises a completed payment or internal transfer.
type PaymentReceipt struct {
	TransactionID      uuid.UUID `json:"transaction_id"`
	Reference          string    `json:"reference"`
	Kind               EntryKind `json:"kind"`
	Amount             int64     `json:"amount"`
	AmountDisplay      string    `json:"amount_display"`
	ClientPhone        string    `json:"client_phone"`
	MerchantPhone      string    `json:"merchant_phone"`
	MerchantCode       *int      `json:"merchant_code,omitempty"`
	NewClientBalance   int64     `json:"new_client_balance"`
	NewMerchantBalance int64     `json:"new_merchant_balance"`
	Status             string    `json:"status"`
	Timestamp          time.Time `json:"timestamp"`
}
