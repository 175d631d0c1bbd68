package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/config"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/golang-jwt/jwt/v4"
)

const claimFreelancerID = "freelancer_id"

type jwtAuth struct {
	AuthConfig config.AuthConfig
}

func NewJWTAuth(cfg *config.Configuration) *jwtAuth {
	return &jwtAuth{
		AuthConfig: cfg.Auth,
	}
}

func (a *jwtAuth) GenerateToken(freelancerID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(freelancerID) == "" {
		return "", ierr.NewError("freelancer id is required").
			WithHint("A token must identify a freelancer").
			Mark(ierr.ErrValidation)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		claimFreelancerID: freelancerID,
		"exp":             now.Add(ttl).Unix(),
		"iat":             now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.AuthConfig.Secret))
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to generate token").
			Mark(ierr.ErrSystem)
	}
	return signed, nil
}

func (a *jwtAuth) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewError("unexpected signing method").
				WithHint(fmt.Sprintf("unexpected signing method: %v", token.Header["alg"])).
				Mark(ierr.ErrUnauthenticated)
		}
		return []byte(a.AuthConfig.Secret), nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Token parse error").
			Mark(ierr.ErrUnauthenticated)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid token claims").
			Mark(ierr.ErrUnauthenticated)
	}

	freelancerID, ok := claims[claimFreelancerID].(string)
	if !ok || strings.TrimSpace(freelancerID) == "" {
		return nil, ierr.NewError("token missing freelancer ID").
			WithHint("Token missing freelancer ID").
			Mark(ierr.ErrUnauthenticated)
	}

	result := &Claims{FreelancerID: freelancerID}
	if exp, ok := claims["exp"].(float64); ok {
		result.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return result, nil
}
