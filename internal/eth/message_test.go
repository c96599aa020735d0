package eth

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIssuedAt = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func testFields() Fields {
	return Fields{
		Scheme:    "https",
		Domain:    "app.matenet.io",
		Address:   common.HexToAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"),
		Statement: "Sign in to Matenet.",
		URI:       "https://app.matenet.io",
		Nonce:     "abc12345",
		IssuedAt:  testIssuedAt,
	}
}

func testMessage(t *testing.T) *Message {
	t.Helper()
	m, err := NewMessage(testFields())
	require.NoError(t, err)
	return m
}

func TestMessageString(t *testing.T) {
	s := testMessage(t).String()

	assert.Contains(t, s, "https://app.matenet.io wants you to sign in with your Ethereum account:\n"+
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed\n\nSign in to Matenet.\n\n")
	assert.Contains(t, s, "URI: https://app.matenet.io\n")
	assert.Contains(t, s, "Version: 1\n")
	assert.Contains(t, s, "Chain ID: 1\n")
	assert.Contains(t, s, "Nonce: abc12345\n")
	assert.Contains(t, s, "Issued At: 2025-03-14T09:26:53.589Z")
}

func TestMessageWithoutScheme(t *testing.T) {
	f := testFields()
	f.Scheme = ""
	m, err := NewMessage(f)
	require.NoError(t, err)

	s := m.String()
	assert.Contains(t, s, "app.matenet.io wants you")
	assert.NotContains(t, s, "https://app.matenet.io wants")

	parsed, err := ParseMessage(s)
	require.NoError(t, err)
	assert.Empty(t, parsed.Scheme())
	assert.Equal(t, "app.matenet.io", parsed.Domain())
	assert.Equal(t, "abc12345", parsed.Nonce())
}

func TestParseMessage(t *testing.T) {
	f := testFields()
	exp := testIssuedAt.Add(time.Hour)
	f.ExpirationTime = &exp
	m, err := NewMessage(f)
	require.NoError(t, err)

	parsed, err := ParseMessage(m.String())
	require.NoError(t, err)

	assert.Equal(t, "https", parsed.Scheme())
	assert.Equal(t, "app.matenet.io", parsed.Domain())
	assert.Equal(t, f.Address, parsed.Address())
	assert.Equal(t, f.Statement, parsed.Statement())
	assert.Equal(t, int64(1), parsed.ChainID())
	issued, err := parsed.IssuedAt()
	require.NoError(t, err)
	assert.True(t, issued.Equal(testIssuedAt))
	assert.Equal(t, m.String(), parsed.String())

	assert.NoError(t, parsed.Valid(testIssuedAt))
	assert.ErrorIs(t, parsed.Valid(exp.Add(time.Second)), ErrInvalidMessage)
}

func TestParseMessageRejectsGarbage(t *testing.T) {
	_, err := ParseMessage("hello")
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = ParseMessage("x wants you to sign in with your Ethereum account:\nnot-an-address\n")
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestNewMessageValidation(t *testing.T) {
	_, err := NewMessage(Fields{Domain: "a", URI: "https://a", Address: common.HexToAddress("0x01")})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = NewMessage(Fields{Domain: "a", URI: "https://a", Nonce: "n0nce123"})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = NewMessage(Fields{Domain: "a", URI: "https://a", Nonce: "n0nce123", Address: common.HexToAddress("0x01"), Statement: "two\nlines"})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	m, err := NewMessage(Fields{Domain: "a", URI: "https://a", Nonce: "n0nce123", Address: common.HexToAddress("0x01")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.ChainID())
	issued, err := m.IssuedAt()
	require.NoError(t, err)
	assert.False(t, issued.IsZero())
}

func TestMessageVerify(t *testing.T) {
	signer, err := GenerateKeySigner()
	require.NoError(t, err)
	other, err := GenerateKeySigner()
	require.NoError(t, err)

	for _, scheme := range []string{"https", ""} {
		f := testFields()
		f.Scheme = scheme
		f.Address = signer.Address()
		m, err := NewMessage(f)
		require.NoError(t, err)

		sig, err := signer.SignPersonal(m.String())
		require.NoError(t, err)
		parsed, err := ParseMessage(m.String())
		require.NoError(t, err)
		assert.NoError(t, parsed.Verify(hexutil.Encode(sig)), "scheme %q", scheme)

		forged, err := other.SignPersonal(m.String())
		require.NoError(t, err)
		assert.ErrorIs(t, parsed.Verify(hexutil.Encode(forged)), ErrInvalidSignature, "scheme %q", scheme)
	}
}
