package domain

import (
	"encoding/hex"
	"fmt"
)

// AuthoritySize is the byte length of a signing identity.
const AuthoritySize = 32

// Authority is the public key of a signing identity. Signature verification
// happens at the platform boundary; by the time an Authority reaches a
// service it is trusted to have signed the submission.
type Authority [AuthoritySize]byte

// ParseAuthority validates and decodes a hex-encoded authority.
func ParseAuthority(s string) (Authority, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Authority{}, fmt.Errorf("invalid authority encoding: %w", err)
	}
	if len(raw) != AuthoritySize {
		return Authority{}, fmt.Errorf("invalid authority length: got %d bytes, want %d", len(raw), AuthoritySize)
	}
	var a Authority
	copy(a[:], raw)
	return a, nil
}

// MustAuthority parses s and panics on failure. Test helper.
func MustAuthority(s string) Authority {
	a, err := ParseAuthority(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Authority) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the authority is unset.
func (a Authority) IsZero() bool {
	return a == Authority{}
}

// Bytes returns the raw key for seed derivation.
func (a Authority) Bytes() []byte {
	return a[:]
}

func (a Authority) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Authority) UnmarshalText(text []byte) error {
	parsed, err := ParseAuthority(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
