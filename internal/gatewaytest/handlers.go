package gatewaytest

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/internal/eth"
)

type handlers struct {
	b *Backend
}

const nonceCookie = "siwe"

func (h *handlers) nonce(c *gin.Context) {
	h.b.NonceCalls.Add(1)
	n := h.b.newNonce()
	if h.b.NonceCookie {
		c.SetCookie(nonceCookie, h.b.bindNonce(n), 300, "/", "", false, true)
	}
	c.JSON(http.StatusOK, gin.H{"nonce": n})
}

func (h *handlers) verify(c *gin.Context) {
	h.b.VerifyCalls.Add(1)

	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, core.VerifyResult{Error: "Invalid request"})
		return
	}

	if h.b.VerifyHook != nil {
		if res := h.b.VerifyHook(req.Message, req.Signature); res != nil {
			c.JSON(http.StatusOK, res)
			return
		}
	}

	msg, err := eth.ParseMessage(req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, core.VerifyResult{Error: "Invalid message"})
		return
	}
	if h.b.NonceCookie {
		sid, err := c.Cookie(nonceCookie)
		if n, ok := h.b.sessionNonce(sid); err != nil || !ok || n != msg.Nonce() {
			c.JSON(http.StatusUnauthorized, core.VerifyResult{Error: "No nonce session"})
			return
		}
	}
	if !h.b.consumeNonce(msg.Nonce()) {
		c.JSON(http.StatusUnauthorized, core.VerifyResult{Error: "Invalid nonce"})
		return
	}
	if h.b.Domain != "" && msg.Domain() != h.b.Domain {
		c.JSON(http.StatusUnauthorized, core.VerifyResult{Error: "Domain mismatch"})
		return
	}
	if err := msg.Valid(time.Now()); err != nil {
		c.JSON(http.StatusUnauthorized, core.VerifyResult{Error: "Message expired"})
		return
	}
	if err := msg.Verify(req.Signature); err != nil {
		c.JSON(http.StatusUnauthorized, core.VerifyResult{Error: "Invalid signature"})
		return
	}

	address := msg.Address().Hex()
	h.b.mu.Lock()
	h.b.addUserLocked(address, "")
	h.b.mu.Unlock()

	token, err := h.b.IssueToken(address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, core.VerifyResult{Error: "Failed to create token"})
		return
	}
	c.JSON(http.StatusOK, core.VerifyResult{Success: true, Token: token})
}

func (h *handlers) currentUser(c *gin.Context) *core.User {
	address := c.GetString("userAddress")
	u, ok := h.b.users[strings.ToLower(address)]
	if !ok {
		return nil
	}
	return u
}

func (h *handlers) createUser(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
		Username      string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "walletAddress and username are required"})
		return
	}

	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	if u, ok := h.b.users[strings.ToLower(req.WalletAddress)]; ok && u.Username != "" {
		c.JSON(http.StatusConflict, gin.H{"message": "User already exists"})
		return
	}
	u := h.b.addUserLocked(req.WalletAddress, req.Username)
	u.Username = req.Username
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

func (h *handlers) user(c *gin.Context) {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()

	var u *core.User
	if id := c.Param("id"); id == "profile" {
		u = h.currentUser(c)
	} else {
		u = h.b.userByIDLocked(id)
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *handlers) updateUser(c *gin.Context) {
	var req core.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	u := h.currentUser(c)
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if req.WalletAddress != "" && !strings.EqualFold(req.WalletAddress, u.WalletAddress) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Wallet address mismatch"})
		return
	}
	u.FullName, u.Username, u.Email, u.Bio = req.FullName, req.Username, req.Email, req.Bio
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *handlers) profilePicture(c *gin.Context) {
	file, err := c.FormFile("profilePicture")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profilePicture is required"})
		return
	}

	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	u := h.currentUser(c)
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	u.ProfilePictureURL = "/uploads/" + u.ID + "/" + file.Filename
	c.JSON(http.StatusOK, gin.H{"profilePictureUrl": u.ProfilePictureURL})
}

type nfcRequest struct {
	NFCID string `json:"nfcId" binding:"required"`
}

func (h *handlers) registerNFC(c *gin.Context) {
	var req nfcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nfcId is required"})
		return
	}

	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	u := h.currentUser(c)
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if owner, taken := h.b.byNFC[req.NFCID]; taken && owner != u.ID {
		c.JSON(http.StatusConflict, gin.H{"error": "NFC already registered"})
		return
	}
	h.b.byNFC[req.NFCID] = u.ID
	u.NFCID = req.NFCID
	u.Points = u.Points.Add(PointsPerPin)
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *handlers) scanNFC(c *gin.Context) {
	var req nfcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nfcId is required"})
		return
	}

	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	sender := h.currentUser(c)
	if sender == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	ownerID, ok := h.b.byNFC[req.NFCID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "NFC not registered"})
		return
	}
	if ownerID == sender.ID {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot add yourself"})
		return
	}
	h.b.requests[ownerID] = append(h.b.requests[ownerID], core.FriendRequest{
		ID:        uuid.NewString(),
		SenderID:  sender.ID,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "Friend request sent"})
}

func (h *handlers) friendRequests(c *gin.Context) {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	u := h.currentUser(c)
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	requests := h.b.requests[u.ID]
	if requests == nil {
		requests = []core.FriendRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *handlers) acceptFriend(c *gin.Context) {
	var req struct {
		SenderID string `json:"senderId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "senderId is required"})
		return
	}

	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	u := h.currentUser(c)
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	pending := h.b.requests[u.ID]
	for i, r := range pending {
		if r.SenderID != req.SenderID {
			continue
		}
		h.b.requests[u.ID] = append(pending[:i:i], pending[i+1:]...)
		u.Friends = append(u.Friends, r.SenderID)
		if sender := h.b.userByIDLocked(r.SenderID); sender != nil {
			sender.Friends = append(sender.Friends, u.ID)
		}
		c.JSON(http.StatusOK, gin.H{"message": "Friend request accepted"})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Friend request not found"})
}
