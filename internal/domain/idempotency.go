package domain

import "time"

// Idempotency represents a recorded result of a previously processed request,
// keyed by (scope, key). It enables safe retries of admin POSTs by returning
// the originally created resource without re-executing side effects.
type Idempotency struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	Scope      string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_scope_key,priority:1"`
	Key        string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_scope_key,priority:2"`
	ResourceID string    `gorm:"type:varchar(64);not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
