package models

import "time"

// Outlet is a physical site that submits compliance audits.
type Outlet struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"index"`
	State     string    `json:"state" gorm:"index"`
	ManagerID *uint     `json:"manager_id,omitempty" gorm:"index"`
	Manager   *User     `json:"manager,omitempty" gorm:"foreignKey:ManagerID"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComplianceRequirement is the obligation an audit fulfils, e.g. a monthly
// food-safety inspection. Category drives the standard adherence report.
type ComplianceRequirement struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title"`
	Category  string    `json:"category" gorm:"index"`
	Frequency string    `json:"frequency"` // "monthly", "quarterly", "yearly"
	CreatedAt time.Time `json:"created_at"`
}
