package handler

import (
	"time"

	"carledger/internal/registry/models"
)

// CarResponse is the HTTP shape of a car record.
type CarResponse struct {
	Address                   string     `json:"address"`
	CarID                     string     `json:"car_id"`
	Vin                       string     `json:"vin"`
	Brand                     string     `json:"brand"`
	Model                     string     `json:"model"`
	Year                      uint16     `json:"year"`
	Color                     string     `json:"color,omitempty"`
	EngineNumber              string     `json:"engine_number"`
	Owner                     string     `json:"owner"`
	RegisteredBy              string     `json:"registered_by"`
	RegistrationDate          time.Time  `json:"registration_date"`
	IsActive                  bool       `json:"is_active"`
	TransferCount             uint32     `json:"transfer_count"`
	LastInspectionDate        *time.Time `json:"last_inspection_date,omitempty"`
	InspectionStatus          string     `json:"inspection_status"`
	LatestInspectionReportURI string     `json:"latest_inspection_report_uri,omitempty"`
	Mileage                   uint32     `json:"mileage"`
	IsForSale                 bool       `json:"is_for_sale"`
	SalePrice                 *uint64    `json:"sale_price,omitempty"`
	Bump                      uint8      `json:"bump"`
}

// FromCar converts a car record to its HTTP shape.
func FromCar(car models.Car) CarResponse {
	return CarResponse{
		Address:                   car.Address.String(),
		CarID:                     car.CarID,
		Vin:                       car.Vin,
		Brand:                     car.Brand,
		Model:                     car.Model,
		Year:                      car.Year,
		Color:                     car.Color,
		EngineNumber:              car.EngineNumber,
		Owner:                     car.Owner.String(),
		RegisteredBy:              car.RegisteredBy.String(),
		RegistrationDate:          car.RegistrationDate,
		IsActive:                  car.IsActive,
		TransferCount:             car.TransferCount,
		LastInspectionDate:        car.LastInspectionDate,
		InspectionStatus:          string(car.InspectionStatus),
		LatestInspectionReportURI: car.LatestInspectionReportURI,
		Mileage:                   car.Mileage,
		IsForSale:                 car.IsForSale,
		SalePrice:                 car.SalePrice,
		Bump:                      car.Bump,
	}
}

// FromCars converts a list of car records.
func FromCars(cars []models.Car) []CarResponse {
	out := make([]CarResponse, 0, len(cars))
	for _, car := range cars {
		out = append(out, FromCar(car))
	}
	return out
}
