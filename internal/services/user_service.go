package services

import (
	"context"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"
	"escrow-marketplace/internal/transport/dto"
)

type userService struct {
	users storage.UserRepository
}

// NewUserService creates a new instance of UserService.
func NewUserService(store storage.Store) UserService {
	return &userService{users: store.Repos().Users}
}

func (s *userService) GetByAddress(ctx context.Context, req *dto.GetUserByAddressRequest) (*models.User, error) {
	user, err := s.users.GetByAddress(ctx, req.WalletAddress)
	if err != nil {
		return nil, mapRepoError(err, "getting user by wallet address")
	}
	return user, nil
}
