package models

import (
	"time"

	"carledger/internal/ledger/address"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
)

// MaxMessageLen bounds the free-text offer message.
const MaxMessageLen = 200

// BuyRequest links a prospective buyer to a for-sale car, anchored at
// ("buy_request", vin, buyer) so at most one live request exists per pair.
// Amount is snapshotted from the car's sale price at creation; it is
// informational only, no escrow is modeled.
type BuyRequest struct {
	Address   address.Address
	Vin       string
	Buyer     domain.Authority
	Seller    domain.Authority
	Amount    uint64
	Message   string
	Status    domain.BuyRequestStatus
	CreatedAt time.Time
	Bump      uint8
}

// IsPending reports whether the request can still be accepted or rejected.
func (r *BuyRequest) IsPending() bool {
	return r.Status == domain.BuyRequestPending
}

// BuyRequestAddress derives the record address for (vin, buyer).
func BuyRequestAddress(vin string, buyer domain.Authority) (address.Address, uint8, error) {
	return address.Derive(address.TagBuyRequest, []byte(vin), buyer.Bytes())
}

// ValidateMessage bounds the optional offer message.
func ValidateMessage(message string) error {
	if len(message) > MaxMessageLen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "message must be at most 200 characters")
	}
	return nil
}
