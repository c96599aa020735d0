// Package eth holds the Ethereum specific primitives used by sign-in:
// EIP-4361 messages and EIP-191 personal signatures.
package eth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	siwe "github.com/spruceid/siwe-go"
)

const (
	// Version is the only EIP-4361 message version
	Version = "1"

	// TimeLayout is the ISO-8601 form browsers produce with toISOString
	TimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	ErrInvalidMessage = errors.New("invalid sign-in message")
	ErrInvalidAddress = errors.New("invalid ethereum address")
)

// Fields are the inputs of a sign-in message
type Fields struct {
	Scheme         string
	Domain         string
	Address        common.Address
	Statement      string
	URI            string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
}

// Message is an EIP-4361 sign-in message. siwe-go has no scheme field, so
// the optional scheme prefix of the header line is kept next to it.
type Message struct {
	scheme string
	msg    *siwe.Message
}

// NewMessage validates f and builds the message
func NewMessage(f Fields) (*Message, error) {
	switch {
	case f.Domain == "":
		return nil, fmt.Errorf("%w: empty domain", ErrInvalidMessage)
	case f.URI == "":
		return nil, fmt.Errorf("%w: empty uri", ErrInvalidMessage)
	case f.Nonce == "":
		return nil, fmt.Errorf("%w: empty nonce", ErrInvalidMessage)
	case strings.Contains(f.Statement, "\n"):
		return nil, fmt.Errorf("%w: statement must be a single line", ErrInvalidMessage)
	case f.Address == (common.Address{}):
		return nil, ErrInvalidAddress
	}

	issuedAt := f.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	chainID := f.ChainID
	if chainID == 0 {
		chainID = 1
	}
	opts := map[string]interface{}{
		"chainId":  int(chainID),
		"issuedAt": issuedAt.UTC().Format(TimeLayout),
	}
	if f.Statement != "" {
		opts["statement"] = f.Statement
	}
	if f.ExpirationTime != nil {
		opts["expirationTime"] = f.ExpirationTime.UTC().Format(TimeLayout)
	}

	msg, err := siwe.InitMessage(f.Domain, f.Address.Hex(), f.URI, f.Nonce, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return &Message{scheme: f.Scheme, msg: msg}, nil
}

// ParseMessage parses a serialised message, with or without scheme
func ParseMessage(s string) (*Message, error) {
	var scheme string
	if i := strings.Index(s, "://"); i > 0 && !strings.ContainsAny(s[:i], " \n/") {
		scheme, s = s[:i], s[i+len("://"):]
	}
	msg, err := siwe.ParseMessage(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return &Message{scheme: scheme, msg: msg}, nil
}

// ParseAddress accepts a 0x-prefixed hex address
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// String serialises the message. The address is EIP-55 checksummed.
func (m *Message) String() string {
	if m.scheme == "" {
		return m.msg.String()
	}
	return m.scheme + "://" + m.msg.String()
}

func (m *Message) Scheme() string          { return m.scheme }
func (m *Message) Domain() string          { return m.msg.GetDomain() }
func (m *Message) Address() common.Address { return m.msg.GetAddress() }
func (m *Message) Nonce() string           { return m.msg.GetNonce() }
func (m *Message) ChainID() int64          { return int64(m.msg.GetChainID()) }

func (m *Message) Statement() string {
	if s := m.msg.GetStatement(); s != nil {
		return *s
	}
	return ""
}

func (m *Message) URI() string {
	u := m.msg.GetURI()
	return u.String()
}

// IssuedAt parses the issued-at timestamp
func (m *Message) IssuedAt() (time.Time, error) {
	return time.Parse(time.RFC3339, m.msg.GetIssuedAt())
}

// Valid checks the time bounds of the message at now
func (m *Message) Valid(now time.Time) error {
	if _, err := m.msg.ValidAt(now); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

// Verify checks that signature over the serialised message was produced by
// its address
func (m *Message) Verify(signature string) error {
	if m.scheme != "" {
		// siwe-go hashes its own serialisation, which has no scheme
		return VerifyPersonal(m.String(), signature, m.Address())
	}
	if _, err := m.msg.VerifyEIP191(signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
