package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"carledger/internal/registry/service"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
)

// RegisterRequest is the HTTP request body for POST /cars/register.
type RegisterRequest struct {
	Signer                    string     `json:"signer"`
	CarID                     string     `json:"car_id"`
	Vin                       string     `json:"vin"`
	Brand                     string     `json:"brand"`
	Model                     string     `json:"model"`
	Year                      uint16     `json:"year"`
	Color                     string     `json:"color"`
	EngineNumber              string     `json:"engine_number"`
	Owner                     string     `json:"owner"`
	LastInspectionDate        *time.Time `json:"last_inspection_date"`
	InspectionStatus          string     `json:"inspection_status"`
	LatestInspectionReportURI string     `json:"latest_inspection_report_uri"`
	Mileage                   uint32     `json:"mileage"`

	parsedSigner domain.Authority
	parsedOwner  domain.Authority
}

// Validate validates and parses the request. Field-level bounds are enforced
// by the service; the transport only parses the authorities.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer

	owner, err := parseAuthority(r.Owner, "owner")
	if err != nil {
		return err
	}
	r.parsedOwner = owner
	return nil
}

// ParsedSigner returns the validated signer authority.
func (r *RegisterRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// ToParams converts the request to service parameters.
func (r *RegisterRequest) ToParams() service.RegisterCarParams {
	return service.RegisterCarParams{
		CarID:                     r.CarID,
		Vin:                       r.Vin,
		Brand:                     r.Brand,
		Model:                     r.Model,
		Year:                      r.Year,
		Color:                     r.Color,
		EngineNumber:              r.EngineNumber,
		Owner:                     r.parsedOwner,
		LastInspectionDate:        r.LastInspectionDate,
		InspectionStatus:          domain.InspectionStatus(r.InspectionStatus),
		LatestInspectionReportURI: r.LatestInspectionReportURI,
		Mileage:                   r.Mileage,
	}
}

// SetForSaleRequest is the HTTP request body for POST /cars/{vin}/for-sale.
type SetForSaleRequest struct {
	Signer string `json:"signer"`
	Price  uint64 `json:"price"`

	parsedSigner domain.Authority
}

// Validate validates and parses the request.
func (r *SetForSaleRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer
	return nil
}

// ParsedSigner returns the validated signer authority.
func (r *SetForSaleRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// SignedRequest is the HTTP request body for transitions that carry only the
// signer.
type SignedRequest struct {
	Signer string `json:"signer"`

	parsedSigner domain.Authority
}

// Validate validates and parses the request.
func (r *SignedRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer
	return nil
}

// ParsedSigner returns the validated signer authority.
func (r *SignedRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

func parseAuthority(raw, field string) (domain.Authority, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Authority{}, ledgererrors.New(ledgererrors.CodeInvalidInput, field+" is required")
	}
	authority, err := domain.ParseAuthority(raw)
	if err != nil {
		return domain.Authority{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid "+field, err)
	}
	return authority, nil
}

func parseCarFilter(r *http.Request) (service.CarFilter, error) {
	var filter service.CarFilter
	query := r.URL.Query()

	if raw := query.Get("owner"); raw != "" {
		owner, err := domain.ParseAuthority(raw)
		if err != nil {
			return service.CarFilter{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid owner filter", err)
		}
		filter.Owner = &owner
	}
	if raw := query.Get("for_sale"); raw != "" {
		forSale, err := strconv.ParseBool(raw)
		if err != nil {
			return service.CarFilter{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid for_sale filter", err)
		}
		filter.ForSale = &forSale
	}
	return filter, nil
}
