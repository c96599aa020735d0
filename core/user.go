package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a profile as returned by the backend
type User struct {
	ID                string          `json:"_id"`
	WalletAddress     string          `json:"walletAddress"`
	Username          string          `json:"username"`
	FullName          string          `json:"fullName,omitempty"`
	Email             string          `json:"email,omitempty"`
	Bio               string          `json:"bio,omitempty"`
	ProfilePictureURL string          `json:"profilePictureUrl,omitempty"`
	NFCID             string          `json:"nfcId,omitempty"`
	Friends           []string        `json:"friends,omitempty"`
	Points            decimal.Decimal `json:"points"`
}

// ProfileUpdate is the body of PUT /api/users
type ProfileUpdate struct {
	WalletAddress string `json:"walletAddress"`
	FullName      string `json:"fullName"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Bio           string `json:"bio"`
}

// FriendRequest is a pending incoming request
type FriendRequest struct {
	ID        string    `json:"_id"`
	SenderID  string    `json:"senderId"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
