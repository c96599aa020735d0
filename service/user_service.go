package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

// UserService covers registration and the profile screens
type UserService struct {
	users     ports.UserGateway
	connector *Connector
	log       log.Logger
}

func NewUserService(users ports.UserGateway, connector *Connector, logger log.Logger) *UserService {
	if logger == nil {
		logger = log.Root()
	}
	return &UserService{users: users, connector: connector, log: logger}
}

// Register creates the account of the connected wallet
func (s *UserService) Register(ctx context.Context, username string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return core.User{}, fmt.Errorf("%w: username is required", core.ErrInvalidInput)
	}
	account := s.connector.Account()
	if account.Empty() {
		return core.User{}, core.ErrNoAccount
	}

	user, err := s.users.CreateUser(ctx, string(account), username)
	if err != nil {
		return core.User{}, fmt.Errorf("failed to register %s: %w", username, err)
	}
	s.log.Info("Registered user", "id", user.ID, "username", user.Username)
	return user, nil
}

func (s *UserService) Profile(ctx context.Context) (core.User, error) {
	return s.users.Profile(ctx)
}

func (s *UserService) User(ctx context.Context, id string) (core.User, error) {
	if strings.TrimSpace(id) == "" {
		return core.User{}, fmt.Errorf("%w: user id is required", core.ErrInvalidInput)
	}
	return s.users.User(ctx, id)
}

// Friends resolves the friend ids of the current profile. Friends that no
// longer exist are skipped.
func (s *UserService) Friends(ctx context.Context) ([]core.User, error) {
	me, err := s.users.Profile(ctx)
	if err != nil {
		return nil, err
	}

	friends := make([]core.User, 0, len(me.Friends))
	for _, id := range me.Friends {
		u, err := s.users.User(ctx, id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				s.log.Debug("Skipping missing friend", "id", id)
				continue
			}
			return nil, fmt.Errorf("failed to load friend %s: %w", id, err)
		}
		friends = append(friends, u)
	}
	return friends, nil
}

// UpdateProfile saves profile fields, the wallet address defaults to the
// connected account
func (s *UserService) UpdateProfile(ctx context.Context, update core.ProfileUpdate) (core.User, error) {
	update.Username = strings.TrimSpace(update.Username)
	if update.WalletAddress == "" {
		update.WalletAddress = string(s.connector.Account())
	}
	return s.users.UpdateUser(ctx, update)
}

// UploadAvatar uploads a profile picture and returns its URL
func (s *UserService) UploadAvatar(ctx context.Context, filename string, r io.Reader) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("%w: file name is required", core.ErrInvalidInput)
	}
	return s.users.UploadProfilePicture(ctx, filename, r)
}
