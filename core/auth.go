package core

import (
	"strings"
	"time"
)

// Account is the blockchain address asserted by the wallet.
type Account string

// Empty reports whether no account is set
func (a Account) Empty() bool {
	return a == ""
}

// Equal compares two accounts ignoring hex case
func (a Account) Equal(b Account) bool {
	return strings.EqualFold(string(a), string(b))
}

// SignInRequest holds everything a SIWE message is derived from
type SignInRequest struct {
	Scheme    string    // URL scheme of the origin, e.g. "https"
	Domain    string    // Host (and port) of the origin
	Address   Account   // Connected account
	Statement string    // Human readable statement
	URI       string    // Origin URI
	Version   string    // Always "1"
	ChainID   int64     // Target chain
	Nonce     string    // Server issued nonce for this attempt
	IssuedAt  time.Time // When the message was built
}

// VerifyResult is the decoded body of the verify endpoint
type VerifyResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}
