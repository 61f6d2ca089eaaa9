package crypt

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyHex() string {
	return hex.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestDisabledBoxPassesValuesThrough(t *testing.T) {
	box, err := NewBox(nil)
	require.NoError(t, err)
	assert.False(t, box.Enabled())

	sealed, err := box.Seal("plaintext")
	require.NoError(t, err)
	assert.Equal(t, "plaintext", sealed)

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "plaintext", opened)
}

func TestEnabledBoxRoundTripsSealAndOpen(t *testing.T) {
	box, err := NewBoxFromHex(testKeyHex())
	require.NoError(t, err)
	require.True(t, box.Enabled())

	sealed, err := box.Seal("agent secrets")
	require.NoError(t, err)
	assert.NotEqual(t, "agent secrets", sealed)

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "agent secrets", opened)
}

func TestSealProducesDifferentCiphertextEachCall(t *testing.T) {
	box, err := NewBoxFromHex(testKeyHex())
	require.NoError(t, err)

	a, err := box.Seal("same plaintext")
	require.NoError(t, err)
	b, err := box.Seal("same plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonce must vary per seal")
}

func TestEmptyPlaintextSealsToEmptyString(t *testing.T) {
	box, err := NewBoxFromHex(testKeyHex())
	require.NoError(t, err)

	sealed, err := box.Seal("")
	require.NoError(t, err)
	assert.Equal(t, "", sealed)

	opened, err := box.Open("")
	require.NoError(t, err)
	assert.Equal(t, "", opened)
}

func TestNewBoxRejectsWrongKeyLength(t *testing.T) {
	_, err := NewBox([]byte("too short"))
	assert.Error(t, err)
}

func TestNewBoxFromHexRejectsInvalidHex(t *testing.T) {
	_, err := NewBoxFromHex("not-hex!!")
	assert.Error(t, err)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	box, err := NewBoxFromHex(testKeyHex())
	require.NoError(t, err)

	sealed, err := box.Seal("secret")
	require.NoError(t, err)

	tampered := []byte(sealed)
	tampered[len(tampered)-1] ^= 0xFF
	_, err = box.Open(string(tampered))
	assert.Error(t, err)
}
