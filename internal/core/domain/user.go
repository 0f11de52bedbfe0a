package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidPhone reports whether phone is in E.164 form.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NormalizePhone trims surrounding whitespace from a phone number.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// User is an identity keyed by phone number. It owns at most one account
// of each type; accounts do not point back to their owner.
type User struct {
	ID                uuid.UUID  `json:"id"`
	ExternalID        string     `json:"external_id,omitempty"`
	Phone             string     `json:"phone"`
	DisplayName       string     `json:"display_name"`
	ClientAccountID   *uuid.UUID `json:"client_account_id,omitempty"`
	MerchantAccountID *uuid.UUID `json:"merchant_account_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AccountID returns the id of the account of type t, if linked.
func (u *User) AccountID(t AccountType) *uuid.UUID {
	switch t {
	case AccountTypeClient:
		return u.ClientAccountID
	case AccountTypeMerchant:
		return u.MerchantAccountID
	}
	return nil
}

// LinkAccount records ownership of an account of type t.
func (u *User) LinkAccount(t AccountType, id uuid.UUID) {
	switch t {
	case AccountTypeClient:
		u.ClientAccountID = &id
	case AccountTypeMerchant:
		u.MerchantAccountID = &id
	}
}
