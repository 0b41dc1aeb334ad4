package models

import "time"

// Entity types recorded in StatusChange rows.
const (
	EntityAudit = "audit"
	EntityForm  = "form"
)

// StatusChange is an append-only record of one status transition.
type StatusChange struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	EntityType   string    `json:"entity_type" gorm:"index:idx_status_change_entity"`
	EntityID     uint      `json:"entity_id" gorm:"index:idx_status_change_entity"`
	FromStatusID uint      `json:"from_status_id"`
	ToStatusID   uint      `json:"to_status_id"`
	ActorID      uint      `json:"actor_id"`
	Reason       string    `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}
