package auth

import (
	"context"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/config"
)

// Claims are the identity fields carried by an access token
type Claims struct {
	FreelancerID string
	ExpiresAt    time.Time
}

type Provider interface {
	// GenerateToken issues a signed token for the freelancer, valid for ttl
	GenerateToken(freelancerID string, ttl time.Duration) (string, error)
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

func NewProvider(cfg *config.Configuration) Provider {
	return NewJWTAuth(cfg)
}
