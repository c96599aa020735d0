package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

// NFCIDRecordType marks the record a pin's id is stored in
const NFCIDRecordType = "text"

// NFCID extracts the pin id of a tag: the first text record, else the
// tag serial number
func NFCID(scan core.NFCScan) string {
	for _, r := range scan.Records {
		if r.Type == NFCIDRecordType && strings.TrimSpace(r.Payload) != "" {
			return strings.TrimSpace(r.Payload)
		}
	}
	return scan.SerialNumber
}

// FriendService adds and accepts friends
type FriendService struct {
	users ports.UserGateway
	read  *ScanFlow[core.NFCScan]
	log   log.Logger
}

func NewFriendService(users ports.UserGateway, read *ScanFlow[core.NFCScan], logger log.Logger) *FriendService {
	if logger == nil {
		logger = log.Root()
	}
	return &FriendService{users: users, read: read, log: logger}
}

// Requests lists pending friend requests
func (s *FriendService) Requests(ctx context.Context) ([]core.FriendRequest, error) {
	return s.users.FriendRequests(ctx)
}

// Accept accepts the request from senderID
func (s *FriendService) Accept(ctx context.Context, senderID string) error {
	if strings.TrimSpace(senderID) == "" {
		return fmt.Errorf("%w: sender id is required", core.ErrInvalidInput)
	}
	return s.users.AcceptFriend(ctx, senderID)
}

// AddByID sends a friend request to the owner of the pin nfcID
func (s *FriendService) AddByID(ctx context.Context, nfcID string) error {
	nfcID = strings.TrimSpace(nfcID)
	if nfcID == "" {
		return fmt.Errorf("%w: nfc id is required", core.ErrInvalidInput)
	}
	if err := s.users.ScanNFC(ctx, nfcID); err != nil {
		return err
	}
	s.log.Info("Friend request sent", "nfcId", nfcID)
	return nil
}

// AddByTap waits for a friend's pin and sends them a request
func (s *FriendService) AddByTap(ctx context.Context) (string, error) {
	scan, err := ScanOnce(ctx, s.read)
	if err != nil {
		return "", err
	}
	id := NFCID(scan)
	return id, s.AddByID(ctx, id)
}

// PinService pairs NFC pins with the signed in user
type PinService struct {
	users ports.UserGateway
	write *WriteFlow
	log   log.Logger
}

func NewPinService(users ports.UserGateway, write *WriteFlow, logger log.Logger) *PinService {
	if logger == nil {
		logger = log.Root()
	}
	return &PinService{users: users, write: write, log: logger}
}

// Pair writes a fresh id onto the next tapped pin and registers it
func (s *PinService) Pair(ctx context.Context) (string, error) {
	id := uuid.NewString()
	records := []core.NFCRecord{{Type: NFCIDRecordType, Payload: id}}
	if err := s.write.Write(ctx, records); err != nil {
		return "", err
	}
	return id, s.Register(ctx, id)
}

// Register links an existing pin id to the user
func (s *PinService) Register(ctx context.Context, nfcID string) error {
	nfcID = strings.TrimSpace(nfcID)
	if nfcID == "" {
		return fmt.Errorf("%w: nfc id is required", core.ErrInvalidInput)
	}
	if err := s.users.RegisterNFC(ctx, nfcID); err != nil {
		return err
	}
	s.log.Info("Pin registered", "nfcId", nfcID)
	return nil
}
