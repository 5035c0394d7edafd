package models

import (
	"strings"
	"time"

	"carledger/internal/ledger/address"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
)

// MaxUserNameLen bounds the userName natural key.
const MaxUserNameLen = 50

// User is the identity record anchored at ("user", authority, userName).
// userName is unique per authority by construction: a second registration
// derives the same address and fails on the occupied slot.
type User struct {
	Address             address.Address
	Authority           domain.Authority
	UserName            string
	PublicDataURI       string
	PrivateDataURI      string
	EncryptedKeyForGov  string
	EncryptedKeyForUser string
	Role                domain.Role
	VerificationStatus  domain.VerificationStatus
	VerifiedAt          *time.Time
	VerifiedBy          *domain.Authority
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Bump                uint8
}

// IsVerified reports whether the government approved this user. Privileged
// operations always check this together with the role.
func (u *User) IsVerified() bool {
	return u.VerificationStatus == domain.VerificationVerified
}

// HasVerifiedRole gates privileged operations on role and verification
// together, never role alone.
func (u *User) HasVerifiedRole(role domain.Role) bool {
	return u.Role == role && u.IsVerified()
}

// UserAddress derives the record address for (authority, userName).
func UserAddress(authority domain.Authority, userName string) (address.Address, uint8, error) {
	return address.Derive(address.TagUser, authority.Bytes(), []byte(userName))
}

// ValidateUserName enforces the natural-key constraints shared by
// registration and verification.
func ValidateUserName(userName string) error {
	if strings.TrimSpace(userName) == "" || len(userName) > MaxUserNameLen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "user name must be 1-50 characters")
	}
	return nil
}
