package handler

import (
	"net/http"
	"strings"

	"carledger/internal/identity/service"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
)

// RegisterRequest is the HTTP request body for POST /users/register.
// Signer is the submitting authority; signature verification happens at the
// platform boundary before the request reaches this service.
type RegisterRequest struct {
	Signer              string `json:"signer"`
	UserName            string `json:"user_name"`
	PublicDataURI       string `json:"public_data_uri"`
	PrivateDataURI      string `json:"private_data_uri"`
	EncryptedKeyForGov  string `json:"encrypted_key_for_gov"`
	EncryptedKeyForUser string `json:"encrypted_key_for_user"`
	Role                string `json:"role"`

	parsedSigner domain.Authority
	parsedRole   domain.Role
}

// Validate validates and parses the request.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer

	r.UserName = strings.TrimSpace(r.UserName)
	if r.UserName == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "user_name is required")
	}

	role, err := domain.ParseRole(r.Role)
	if err != nil {
		return ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid role", err)
	}
	r.parsedRole = role
	return nil
}

// ParsedSigner returns the validated signer authority.
func (r *RegisterRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// ParsedRole returns the validated role.
func (r *RegisterRequest) ParsedRole() domain.Role { return r.parsedRole }

// VerifyRequest is the HTTP request body for POST /users/verify.
type VerifyRequest struct {
	Signer        string `json:"signer"`
	UserAuthority string `json:"user_authority"`
	UserName      string `json:"user_name"`
	Approve       bool   `json:"approve"`

	parsedSigner        domain.Authority
	parsedUserAuthority domain.Authority
}

// Validate validates and parses the request.
func (r *VerifyRequest) Validate() error {
	if r == nil {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "request body is required")
	}
	signer, err := parseAuthority(r.Signer, "signer")
	if err != nil {
		return err
	}
	r.parsedSigner = signer

	userAuthority, err := parseAuthority(r.UserAuthority, "user_authority")
	if err != nil {
		return err
	}
	r.parsedUserAuthority = userAuthority

	r.UserName = strings.TrimSpace(r.UserName)
	if r.UserName == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "user_name is required")
	}
	return nil
}

// ParsedSigner returns the validated signer authority.
func (r *VerifyRequest) ParsedSigner() domain.Authority { return r.parsedSigner }

// ParsedUserAuthority returns the validated subject authority.
func (r *VerifyRequest) ParsedUserAuthority() domain.Authority { return r.parsedUserAuthority }

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

func parseUserFilter(r *http.Request) (service.UserFilter, error) {
	var filter service.UserFilter
	query := r.URL.Query()

	if raw := query.Get("role"); raw != "" {
		role, err := domain.ParseRole(raw)
		if err != nil {
			return service.UserFilter{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid role filter", err)
		}
		filter.Role = &role
	}
	if raw := query.Get("status"); raw != "" {
		status, err := domain.ParseVerificationStatus(raw)
		if err != nil {
			return service.UserFilter{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid status filter", err)
		}
		filter.Status = &status
	}
	if raw := query.Get("authority"); raw != "" {
		authority, err := domain.ParseAuthority(raw)
		if err != nil {
			return service.UserFilter{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid authority filter", err)
		}
		filter.Authority = &authority
	}
	return filter, nil
}
