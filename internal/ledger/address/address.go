// Package address implements deterministic record addressing. Every record
// lives at an address derived from a role tag plus its natural keys, so any
// party can locate any record without an index, and a mutating operation can
// prove the caller-supplied address belongs to the claimed natural key.
package address

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"filippo.io/edwards25519"

	"carledger/pkg/ledgererrors"
)

// Role tags namespace the derivation so records of different types can never
// collide even when their natural keys do.
const (
	TagUser             = "user"
	TagCar              = "car"
	TagBuyRequest       = "buy_request"
	TagInspectionReport = "car_report"
	TagConformityReport = "conformity_report"
)

// namespace is appended to every derivation, separating ledger addresses from
// any other sha256 use of the same seed material.
const namespace = "carledger:derived"

const maxSeedLen = 255

// Size is the byte length of a derived address.
const Size = 32

// Address is a deterministic storage location for one record.
type Address [Size]byte

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns the raw address, usable as a seed for child derivations.
func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse decodes a hex-encoded address.
func Parse(s string) (Address, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address encoding: %w", err)
	}
	if len(raw) != Size {
		return Address{}, fmt.Errorf("invalid address length: got %d bytes, want %d", len(raw), Size)
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// Derive maps (tag, seeds) to a deterministic address plus the bump that makes
// the derivation reproducible. The address must not be a valid edwards25519
// point: an on-curve hash could double as a signing key, so candidates are
// tried from bump 255 downward until one lands off the curve. The accepted
// bump is the derivation proof stored on the record.
func Derive(tag string, seeds ...[]byte) (Address, uint8, error) {
	if err := checkSeeds(tag, seeds); err != nil {
		return Address{}, 0, err
	}
	for bump := 255; bump >= 0; bump-- {
		candidate := hash(tag, seeds, uint8(bump))
		if !onCurve(candidate) {
			return candidate, uint8(bump), nil
		}
	}
	// 256 consecutive on-curve hashes is not a reachable state.
	return Address{}, 0, fmt.Errorf("no off-curve address for tag %q", tag)
}

// DeriveWithBump recomputes the address for a known bump. Used to validate a
// stored derivation proof.
func DeriveWithBump(tag string, bump uint8, seeds ...[]byte) (Address, error) {
	if err := checkSeeds(tag, seeds); err != nil {
		return Address{}, err
	}
	candidate := hash(tag, seeds, bump)
	if onCurve(candidate) {
		return Address{}, ledgererrors.New(ledgererrors.CodeAddressMismatch, "bump derives an on-curve address")
	}
	return candidate, nil
}

// Verify re-derives the address from the claimed natural key and rejects when
// the supplied address disagrees. This is the primary defense against forged
// record substitution: a caller cannot point an operation at a record whose
// natural key they did not claim.
func Verify(supplied Address, tag string, seeds ...[]byte) error {
	derived, _, err := Derive(tag, seeds...)
	if err != nil {
		return err
	}
	if derived != supplied {
		return ledgererrors.New(ledgererrors.CodeAddressMismatch,
			fmt.Sprintf("address %s does not match derivation for tag %q", supplied, tag))
	}
	return nil
}

func checkSeeds(tag string, seeds [][]byte) error {
	if tag == "" {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "empty role tag")
	}
	for i, seed := range seeds {
		if len(seed) > maxSeedLen {
			return ledgererrors.New(ledgererrors.CodeInvalidInput,
				fmt.Sprintf("seed %d exceeds %d bytes", i, maxSeedLen))
		}
	}
	return nil
}

// hash length-prefixes every seed so adjacent seeds cannot be reassociated
// into a different natural key that derives the same address.
func hash(tag string, seeds [][]byte, bump uint8) Address {
	h := sha256.New()
	h.Write([]byte(tag))
	h.Write([]byte{0})
	for _, seed := range seeds {
		h.Write([]byte{byte(len(seed))})
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write([]byte(namespace))
	var a Address
	h.Sum(a[:0])
	return a
}

func onCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
