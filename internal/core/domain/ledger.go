package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryKindTransfer           EntryKind = "TRANSFER"
	EntryKindPayment            EntryKind = "PAYMENT"
	EntryKindInternalToClient   EntryKind = "INTERNAL_TO_CLIENT"
	EntryKindInternalToMerchant EntryKind = "INTERNAL_TO_MERCHANT"
)

// Reference prefixes by entry kind.
const (
	RefPrefixTransfer           = "TRF_"
	RefPrefixPayment            = "PAY_"
	RefPrefixInternalToClient   = "INT_CLI_"
	RefPrefixInternalToMerchant = "INT_MAR_"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindTransfer, EntryKindPayment, EntryKindInternalToClient, EntryKindInternalToMerchant:
		return true
	}
	return false
}

// RefPrefix returns the reference prefix used for kind.
func (k EntryKind) RefPrefix() string {
	switch k {
	case EntryKindPayment:
		return RefPrefixPayment
	case EntryKindInternalToClient:
		return RefPrefixInternalToClient
	case EntryKindInternalToMerchant:
		return RefPrefixInternalToMerchant
	default:
		return RefPrefixTransfer
	}
}

// NewReference returns prefix followed by eight upper-case hex characters.
func NewReference(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(id[:8])
}

// LedgerEntry is an immutable record of one fund movement.
type LedgerEntry struct {
	ID                   uuid.UUID `json:"id"`
	Reference            string    `json:"reference"`
	Kind                 EntryKind `json:"kind"`
	Amount               int64     `json:"amount"`
	SourceAccountID      uuid.UUID `json:"source_account_id"`
	DestinationAccountID uuid.UUID `json:"destination_account_id"`
	Memo                 *string   `json:"memo,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// NewLedgerEntry builds an entry with a time-ordered id and a fresh reference.
func NewLedgerEntry(kind EntryKind, amount int64, src, dst uuid.UUID, memo *string, now time.Time) *LedgerEntry {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &LedgerEntry{
		ID:                   id,
		Reference:            NewReference(kind.RefPrefix()),
		Kind:                 kind,
		Amount:               amount,
		SourceAccountID:      src,
		DestinationAccountID: dst,
		Memo:                 memo,
		CreatedAt:            now,
	}
}

// Direction is the way an internal transfer moves funds between a user's
// own accounts.
type Direction string

const (
	DirectionToClient   Direction = "TO_CLIENT"
	DirectionToMerchant Direction = "TO_MERCHANT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionToClient || d == DirectionToMerchant
}

// EntryKind maps the direction to its ledger entry kind.
func (d Direction) EntryKind() EntryKind {
	if d == DirectionToClient {
		return EntryKindInternalToClient
	}
	return EntryKindInternalToMerchant
}
