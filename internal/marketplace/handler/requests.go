package handler

import (
	"net/http"
	"strings"

	"carledger/internal/marketplace/service"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
)

// RequestBuyRequest is the HTTP request body for POST /buy-requests.
type RequestBuyRequest struct {
	Signer        string `json:"signer"`
	Vin           string `json:"vin"`
	BuyerUserName string `json:"buyer_user_name"`
	Message       string `json:"message"`

	parsedSigner domain.Authority
}

// Validate validates and parses the request.
func (r *RequestBuyRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer

	if strings.TrimSpace(r.Vin) == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "vin is required")
	}
	r.BuyerUserName = strings.TrimSpace(r.BuyerUserName)
	if r.BuyerUserName == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "buyer_user_name is required")
	}
	return nil
}

// ParsedSigner returns the validated signer authority.
func (r *RequestBuyRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// AcceptRequest is the HTTP request body for POST /buy-requests/accept. The
// user names locate both parties' user records for the verification checks.
type AcceptRequest struct {
	Signer         string `json:"signer"`
	Vin            string `json:"vin"`
	Buyer          string `json:"buyer"`
	SellerUserName string `json:"seller_user_name"`
	BuyerUserName  string `json:"buyer_user_name"`

	parsedSigner domain.Authority
	parsedBuyer  domain.Authority
}

// Validate validates and parses the request.
func (r *AcceptRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer

	buyer, err := parseAuthority(r.Buyer, "buyer")
	if err != nil {
		return err
	}
	r.parsedBuyer = buyer

	if strings.TrimSpace(r.Vin) == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "vin is required")
	}
	r.SellerUserName = strings.TrimSpace(r.SellerUserName)
	if r.SellerUserName == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "seller_user_name is required")
	}
	r.BuyerUserName = strings.TrimSpace(r.BuyerUserName)
	if r.BuyerUserName == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "buyer_user_name is required")
	}
	return nil
}

// ParsedSigner returns the validated signer authority.
func (r *AcceptRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// ParsedBuyer returns the validated buyer authority.
func (r *AcceptRequest) ParsedBuyer() domain.Authority { return r.parsedBuyer }

// DecideRequest is the HTTP request body for reject decisions. The buyer
// identifies which pending request on the vin is being decided.
type DecideRequest struct {
	Signer string `json:"signer"`
	Vin    string `json:"vin"`
	Buyer  string `json:"buyer"`

	parsedSigner domain.Authority
	parsedBuyer  domain.Authority
}

// Validate validates and parses the request.
func (r *DecideRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer

	buyer, err := parseAuthority(r.Buyer, "buyer")
	if err != nil {
		return err
	}
	r.parsedBuyer = buyer

	if strings.TrimSpace(r.Vin) == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "vin is required")
	}
	return nil
}

// ParsedSigner returns the validated signer authority.
func (r *DecideRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// ParsedBuyer returns the validated buyer authority.
func (r *DecideRequest) ParsedBuyer() domain.Authority { return r.parsedBuyer }

// TransferRequest is the HTTP request body for POST /cars/{vin}/transfer.
// Both parties sign the submission; the platform boundary has already
// checked both signatures by the time it reaches the handler.
type TransferRequest struct {
	Signer           string `json:"signer"`
	NewOwner         string `json:"new_owner"`
	NewOwnerUserName string `json:"new_owner_user_name"`

	parsedSigner   domain.Authority
	parsedNewOwner domain.Authority
}

// Validate validates and parses the request.
func (r *TransferRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer

	newOwner, err := parseAuthority(r.NewOwner, "new_owner")
	if err != nil {
		return err
	}
	r.parsedNewOwner = newOwner

	r.NewOwnerUserName = strings.TrimSpace(r.NewOwnerUserName)
	if r.NewOwnerUserName == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "new_owner_user_name is required")
	}
	return nil
}

// ParsedSigner returns the validated current-owner authority.
func (r *TransferRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// ParsedNewOwner returns the validated new-owner authority.
func (r *TransferRequest) ParsedNewOwner() domain.Authority { return r.parsedNewOwner }

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

func parseFilter(r *http.Request) (service.Filter, error) {
	var filter service.Filter
	query := r.URL.Query()

	if raw := query.Get("vin"); raw != "" {
		vin := raw
		filter.Vin = &vin
	}
	if raw := query.Get("buyer"); raw != "" {
		buyer, err := domain.ParseAuthority(raw)
		if err != nil {
			return service.Filter{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid buyer filter", err)
		}
		filter.Buyer = &buyer
	}
	if raw := query.Get("seller"); raw != "" {
		seller, err := domain.ParseAuthority(raw)
		if err != nil {
			return service.Filter{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid seller filter", err)
		}
		filter.Seller = &seller
	}
	if raw := query.Get("status"); raw != "" {
		status, err := domain.ParseBuyRequestStatus(raw)
		if err != nil {
			return service.Filter{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid status filter", err)
		}
		filter.Status = &status
	}
	return filter, nil
}
