package testutil

import (
	"context"

	"github.com/freelanceflow/freelanceflow/internal/types"
)

// DefaultFreelancerID is the freelancer every test context acts as
const DefaultFreelancerID = "fl_test_00000001"

func SetupContext() context.Context {
	return SetupContextFor(DefaultFreelancerID)
}

// SetupContextFor returns a request context acting as freelancerID
func SetupContextFor(freelancerID string) context.Context {
	ctx := context.Background()
	ctx = types.SetFreelancerID(ctx, freelancerID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
