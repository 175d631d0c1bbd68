package types

import (
	"context"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID    ContextKey = "ctx_request_id"
	CtxFreelancerID ContextKey = "ctx_freelancer_id"
	CtxJWT          ContextKey = "ctx_jwt"
)

func GetFreelancerID(ctx context.Context) string {
	if freelancerID, ok := ctx.Value(CtxFreelancerID).(string); ok {
		return freelancerID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetJWT(ctx context.Context) string {
	if jwt, ok := ctx.Value(CtxJWT).(string); ok {
		return jwt
	}
	return ""
}

// SetFreelancerID sets the freelancer (tenant) ID in the context
func SetFreelancerID(ctx context.Context, freelancerID string) context.Context {
	return context.WithValue(ctx, CtxFreelancerID, freelancerID)
}

// SetRequestID sets the request ID in the context
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

// ValidateFreelancerContext checks that the auth layer resolved a freelancer for this call
func ValidateFreelancerContext(ctx context.Context) error {
	if GetFreelancerID(ctx) == "" {
		return ierr.NewError("no freelancer in context").
			WithHint("Request is not associated with a freelancer").
			Mark(ierr.ErrPermissionDenied)
	}
	return nil
}

// SetJWT stores the caller's raw bearer token in the context
func SetJWT(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, CtxJWT, token)
}
