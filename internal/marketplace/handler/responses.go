package handler

import (
	"time"

	"carledger/internal/marketplace/models"
	registrymodels "carledger/internal/registry/models"
)

// BuyRequestResponse is the HTTP shape of a buy request record.
type BuyRequestResponse struct {
	Address   string    `json:"address"`
	Vin       string    `json:"vin"`
	Buyer     string    `json:"buyer"`
	Seller    string    `json:"seller"`
	Amount    uint64    `json:"amount"`
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Bump      uint8     `json:"bump"`
}

// FromBuyRequest converts a buy request record to its HTTP shape.
func FromBuyRequest(request models.BuyRequest) BuyRequestResponse {
	return BuyRequestResponse{
		Address:   request.Address.String(),
		Vin:       request.Vin,
		Buyer:     request.Buyer.String(),
		Seller:    request.Seller.String(),
		Amount:    request.Amount,
		Message:   request.Message,
		Status:    string(request.Status),
		CreatedAt: request.CreatedAt,
		Bump:      request.Bump,
	}
}

// FromBuyRequests converts a list of buy request records.
func FromBuyRequests(requests []models.BuyRequest) []BuyRequestResponse {
	out := make([]BuyRequestResponse, 0, len(requests))
	for _, request := range requests {
		out = append(out, FromBuyRequest(request))
	}
	return out
}

// TransferredCarResponse is the HTTP shape returned by a direct transfer.
type TransferredCarResponse struct {
	Address       string `json:"address"`
	Vin           string `json:"vin"`
	Owner         string `json:"owner"`
	TransferCount uint32 `json:"transfer_count"`
	IsForSale     bool   `json:"is_for_sale"`
}

// FromTransferredCar converts the post-transfer car state.
func FromTransferredCar(car registrymodels.Car) TransferredCarResponse {
	return TransferredCarResponse{
		Address:       car.Address.String(),
		Vin:           car.Vin,
		Owner:         car.Owner.String(),
		TransferCount: car.TransferCount,
		IsForSale:     car.IsForSale,
	}
}
