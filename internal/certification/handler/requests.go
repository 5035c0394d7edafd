package handler

import (
	"net/http"
	"strings"

	"carledger/internal/certification/service"
	"carledger/internal/ledger/address"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
)

// IssueInspectionRequest is the HTTP request body for POST
// /reports/inspection.
type IssueInspectionRequest struct {
	Signer           string `json:"signer"`
	ReportID         uint64 `json:"report_id"`
	Vin              string `json:"vin"`
	IssuerUserName   string `json:"issuer_user_name"`
	OverallCondition uint8  `json:"overall_condition"`
	EngineCondition  uint8  `json:"engine_condition"`
	BodyCondition    uint8  `json:"body_condition"`
	FullReportURI    string `json:"full_report_uri"`
	ReportSummary    string `json:"report_summary"`
	Notes            string `json:"notes"`

	parsedSigner domain.Authority
}

// Validate validates and parses the request. Score and length bounds are
// enforced by the service.
func (r *IssueInspectionRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer
	return validateReportKey(r.Vin, r.IssuerUserName)
}

// ParsedSigner returns the validated signer authority.
func (r *IssueInspectionRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// ToParams converts the request to service parameters.
func (r *IssueInspectionRequest) ToParams() service.IssueInspectionParams {
	return service.IssueInspectionParams{
		ReportID:         r.ReportID,
		Vin:              r.Vin,
		IssuerUserName:   r.IssuerUserName,
		OverallCondition: r.OverallCondition,
		EngineCondition:  r.EngineCondition,
		BodyCondition:    r.BodyCondition,
		FullReportURI:    r.FullReportURI,
		ReportSummary:    r.ReportSummary,
		Notes:            r.Notes,
	}
}

// IssueConformityRequest is the HTTP request body for POST
// /reports/conformity.
type IssueConformityRequest struct {
	Signer           string `json:"signer"`
	ReportID         uint64 `json:"report_id"`
	Vin              string `json:"vin"`
	IssuerUserName   string `json:"issuer_user_name"`
	ConformityStatus bool   `json:"conformity_status"`
	Modifications    string `json:"modifications"`
	MinesStamp       string `json:"mines_stamp"`
	FullReportURI    string `json:"full_report_uri"`
	Notes            string `json:"notes"`

	parsedSigner domain.Authority
}

// Validate validates and parses the request.
func (r *IssueConformityRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer
	return validateReportKey(r.Vin, r.IssuerUserName)
}

// ParsedSigner returns the validated signer authority.
func (r *IssueConformityRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// ToParams converts the request to service parameters.
func (r *IssueConformityRequest) ToParams() service.IssueConformityParams {
	return service.IssueConformityParams{
		ReportID:         r.ReportID,
		Vin:              r.Vin,
		IssuerUserName:   r.IssuerUserName,
		ConformityStatus: r.ConformityStatus,
		Modifications:    r.Modifications,
		MinesStamp:       r.MinesStamp,
		FullReportURI:    r.FullReportURI,
		Notes:            r.Notes,
	}
}

// AcceptReportRequest is the HTTP request body for owner approval of either
// report type. The (vin, issuer, report_id) triple re-derives the report
// address.
type AcceptReportRequest struct {
	Signer   string `json:"signer"`
	Vin      string `json:"vin"`
	Issuer   string `json:"issuer"`
	ReportID uint64 `json:"report_id"`

	parsedSigner domain.Authority
	parsedIssuer domain.Authority
}

// Validate validates and parses the request.
func (r *AcceptReportRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer

	issuer, err := parseAuthority(r.Issuer, "issuer")
	if err != nil {
		return err
	}
	r.parsedIssuer = issuer

	if strings.TrimSpace(r.Vin) == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "vin is required")
	}
	return nil
}

// ParsedSigner returns the validated signer authority.
func (r *AcceptReportRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// ParsedIssuer returns the validated issuer authority.
func (r *AcceptReportRequest) ParsedIssuer() domain.Authority { return r.parsedIssuer }

func validateReportKey(vin, issuerUserName string) error {
	if strings.TrimSpace(vin) == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "vin is required")
	}
	if strings.TrimSpace(issuerUserName) == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "issuer_user_name is required")
	}
	return nil
}

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

func parseInspectionFilter(r *http.Request) (service.InspectionFilter, error) {
	car, owner, issuer, err := parseReportFilter(r)
	if err != nil {
		return service.InspectionFilter{}, err
	}
	return service.InspectionFilter{Car: car, CarOwner: owner, Issuer: issuer}, nil
}

func parseConformityFilter(r *http.Request) (service.ConformityFilter, error) {
	car, owner, issuer, err := parseReportFilter(r)
	if err != nil {
		return service.ConformityFilter{}, err
	}
	return service.ConformityFilter{Car: car, CarOwner: owner, Issuer: issuer}, nil
}

func parseReportFilter(r *http.Request) (*address.Address, *domain.Authority, *domain.Authority, error) {
	query := r.URL.Query()

	var car *address.Address
	if raw := query.Get("car"); raw != "" {
		parsed, err := address.Parse(raw)
		if err != nil {
			return nil, nil, nil, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid car filter", err)
		}
		car = &parsed
	}

	var owner *domain.Authority
	if raw := query.Get("car_owner"); raw != "" {
		parsed, err := domain.ParseAuthority(raw)
		if err != nil {
			return nil, nil, nil, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid car_owner filter", err)
		}
		owner = &parsed
	}

	var issuer *domain.Authority
	if raw := query.Get("issuer"); raw != "" {
		parsed, err := domain.ParseAuthority(raw)
		if err != nil {
			return nil, nil, nil, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid issuer filter", err)
		}
		issuer = &parsed
	}
	return car, owner, issuer, nil
}
