// internal/transport/dto/user_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"
)

// GetUserByAddressRequest looks a user up by wallet address.
type GetUserByAddressRequest struct {
	WalletAddress string `form:"wallet_address" validate:"required,min=3"`
}

type UserResponse struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	DisplayName   string    `json:"display_name"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}
