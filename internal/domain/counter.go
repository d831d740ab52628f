package domain

import (
	"time"

	"github.com/google/uuid"
)

// Counter is a physical teller branch.
type Counter struct {
	ID          uuid.UUID  `json:"id"`
	CounterCode string     `json:"counterCode"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	MaxStaff    int        `json:"maxStaff"`
	AdminUserID *uuid.UUID `json:"adminUserId,omitempty"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type CounterStaff struct {
	ID        uuid.UUID `json:"id"`
	CounterID uuid.UUID `json:"counterId"`
	UserID    uuid.UUID `json:"userId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
