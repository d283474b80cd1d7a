package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectUnprotectRoundTrip(t *testing.T) {
	v := New([]byte("0123456789abcdef0123456789abcdef"))

	cases := []string{
		"hunter2",
		"pässwörd with spaces",
		"a",
		"a much longer secret value that spans more than one AES block easily",
	}
	for _, plain := range cases {
		opaque, err := v.Protect(plain)
		require.NoError(t, err)
		require.NotEqual(t, plain, opaque)

		got, err := v.Unprotect(opaque)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestEmptyMapsToEmpty(t *testing.T) {
	v := New([]byte("key"))

	opaque, err := v.Protect("")
	require.NoError(t, err)
	assert.Equal(t, "", opaque)

	plain, err := v.Unprotect("")
	require.NoError(t, err)
	assert.Equal(t, "", plain)
}

func TestProtectIsNotDeterministic(t *testing.T) {
	// Random nonce per call; equal plaintexts must not produce equal
	// ciphertexts.
	v := New([]byte("some key material"))

	first, err := v.Protect("secret")
	require.NoError(t, err)
	second, err := v.Protect("secret")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestUnprotectForeignKeyFails(t *testing.T) {
	a := New([]byte("key-of-machine-a"))
	b := New([]byte("key-of-machine-b"))

	opaque, err := a.Protect("secret")
	require.NoError(t, err)

	_, err = b.Unprotect(opaque)
	assert.ErrorIs(t, err, ErrCryptoFailure)
}

func TestUnprotectMalformedFails(t *testing.T) {
	v := New([]byte("key"))

	for _, opaque := range []string{"not base64!!", "aGVsbG8=", "AA=="} {
		_, err := v.Unprotect(opaque)
		assert.ErrorIs(t, err, ErrCryptoFailure, "input %q", opaque)
	}
}
