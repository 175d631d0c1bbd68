package types

import (
	"context"
	"time"
)

// BaseModel is embedded by every persisted domain model.
// Any changes to this model should be reflected in the database schema by running migrations
type BaseModel struct {
	FreelancerID string    `db:"freelancer_id" json:"freelancer_id"`
	Status       Status    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func GetDefaultBaseModel(ctx context.Context) BaseModel {
	now := time.Now().UTC()
	return BaseModel{
		FreelancerID: GetFreelancerID(ctx),
		Status:       StatusPublished,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
