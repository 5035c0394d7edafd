package address

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carledger/pkg/ledgererrors"
)

func TestDeriveDeterministic(t *testing.T) {
	a1, bump1, err := Derive(TagUser, []byte("authority"), []byte("alice"))
	require.NoError(t, err)
	a2, bump2, err := Derive(TagUser, []byte("authority"), []byte("alice"))
	require.NoError(t, err)

	assert.Equal(t, a1, a2, "same inputs must derive the same address")
	assert.Equal(t, bump1, bump2)
	assert.False(t, a1.IsZero())
}

func TestDeriveDistinguishesTagAndSeeds(t *testing.T) {
	base, _, err := Derive(TagUser, []byte("authority"), []byte("alice"))
	require.NoError(t, err)

	otherTag, _, err := Derive(TagCar, []byte("authority"), []byte("alice"))
	require.NoError(t, err)
	assert.NotEqual(t, base, otherTag, "tag must namespace the derivation")

	otherSeed, _, err := Derive(TagUser, []byte("authority"), []byte("bob"))
	require.NoError(t, err)
	assert.NotEqual(t, base, otherSeed)
}

func TestDeriveSeedBoundaries(t *testing.T) {
	// Length-prefixed hashing: moving a byte between adjacent seeds must
	// change the address.
	a1, _, err := Derive(TagUser, []byte("ab"), []byte("c"))
	require.NoError(t, err)
	a2, _, err := Derive(TagUser, []byte("a"), []byte("bc"))
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)
}

func TestDeriveRejectsOversizedSeed(t *testing.T) {
	_, _, err := Derive(TagUser, bytes.Repeat([]byte{0x41}, maxSeedLen+1))
	require.Error(t, err)
	assert.True(t, ledgererrors.HasCode(err, ledgererrors.CodeInvalidInput))
}

func TestDeriveRejectsEmptyTag(t *testing.T) {
	_, _, err := Derive("", []byte("seed"))
	require.Error(t, err)
	assert.True(t, ledgererrors.HasCode(err, ledgererrors.CodeInvalidInput))
}

func TestDeriveWithBumpRoundTrip(t *testing.T) {
	addr, bump, err := Derive(TagCar, []byte("gov"), []byte("1HGBH41JXMN109186"))
	require.NoError(t, err)

	again, err := DeriveWithBump(TagCar, bump, []byte("gov"), []byte("1HGBH41JXMN109186"))
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestVerify(t *testing.T) {
	addr, _, err := Derive(TagBuyRequest, []byte("1HGBH41JXMN109186"), []byte("buyer"))
	require.NoError(t, err)

	assert.NoError(t, Verify(addr, TagBuyRequest, []byte("1HGBH41JXMN109186"), []byte("buyer")))

	err = Verify(addr, TagBuyRequest, []byte("1HGBH41JXMN109186"), []byte("other-buyer"))
	require.Error(t, err)
	assert.True(t, ledgererrors.HasCode(err, ledgererrors.CodeAddressMismatch))
}

func TestDerivedAddressesAreOffCurve(t *testing.T) {
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		addr, _, err := Derive(TagUser, []byte("authority"), []byte(name))
		require.NoError(t, err)
		assert.False(t, onCurve(addr), "derived address for %q must be off-curve", name)
	}
}

func TestParseRoundTrip(t *testing.T) {
	addr, _, err := Derive(TagUser, []byte("authority"), []byte("alice"))
	require.NoError(t, err)

	parsed, err := Parse(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = Parse("not-hex")
	assert.Error(t, err)
	_, err = Parse("abcd")
	assert.Error(t, err)
}
