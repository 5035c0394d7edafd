package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"carledger/internal/ledger/address"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
)

// Field bounds carried over from the fixed record layout.
const (
	VinLen          = 17
	MaxCarIDLen     = 50
	MaxBrandLen     = 30
	MaxModelLen     = 30
	MaxColorLen     = 20
	MaxEngineNumLen = 50
	MaxReportURILen = 200

	// MinYear is the year of the first production automobile; nothing older
	// can carry a VIN-keyed title.
	MinYear = 1886

	// MaxSalePrice caps listing prices to what a BIGINT column can hold.
	MaxSalePrice = uint64(math.MaxInt64)
)

// Car is the vehicle title record anchored at ("car", government, vin).
// VIN is unique per issuing government authority by address collision.
type Car struct {
	Address                   address.Address
	CarID                     string
	Vin                       string
	Brand                     string
	Model                     string
	Year                      uint16
	Color                     string
	EngineNumber              string
	Owner                     domain.Authority
	RegisteredBy              domain.Authority
	RegistrationDate          time.Time
	IsActive                  bool
	TransferCount             uint32
	LastInspectionDate        *time.Time
	InspectionStatus          domain.InspectionStatus
	LatestInspectionReportURI string
	Mileage                   uint32
	IsForSale                 bool
	SalePrice                 *uint64
	Bump                      uint8
}

// OwnedBy reports whether the given authority is the current title holder.
func (c *Car) OwnedBy(a domain.Authority) bool {
	return c.Owner == a
}

// CarAddress derives the record address for (government, vin).
func CarAddress(government domain.Authority, vin string) (address.Address, uint8, error) {
	return address.Derive(address.TagCar, government.Bytes(), []byte(vin))
}

// ValidateRegistration checks the immutable fields before a car record is
// created. Violations surface as the field-specific taxonomy codes.
func ValidateRegistration(carID, vin, brand, model string, year uint16, engineNumber string, now time.Time) error {
	if strings.TrimSpace(carID) == "" || len(carID) > MaxCarIDLen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "car id must be 1-50 characters")
	}
	if len(vin) != VinLen {
		return ledgererrors.New(ledgererrors.CodeInvalidVin,
			fmt.Sprintf("vin must be exactly %d characters", VinLen))
	}
	if strings.TrimSpace(brand) == "" || len(brand) > MaxBrandLen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "brand must be 1-30 characters")
	}
	if strings.TrimSpace(model) == "" || len(model) > MaxModelLen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "model must be 1-30 characters")
	}
	if int(year) < MinYear || int(year) > now.Year()+1 {
		return ledgererrors.New(ledgererrors.CodeInvalidInput,
			fmt.Sprintf("year must be between %d and %d", MinYear, now.Year()+1))
	}
	if strings.TrimSpace(engineNumber) == "" || len(engineNumber) > MaxEngineNumLen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "engine number must be 1-50 characters")
	}
	return nil
}
