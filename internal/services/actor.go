package services

import "github.com/nexuscomply/backend/internal/models"

// Actor identifies the authenticated user on whose behalf a service call runs.
type Actor struct {
	UserID   uint
	Role     string
	OutletID *uint
}

// IsReviewer is true for managers and admins.
func (a Actor) IsReviewer() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleManager
}

// ownsOutlet is true when an outlet user is bound to the given outlet.
func (a Actor) ownsOutlet(outletID uint) bool {
	return a.Role == models.RoleOutlet && a.OutletID != nil && *a.OutletID == outletID
}

// canReview is true for admins, and for managers of the outlet.
func (a Actor) canReview(outlet *models.Outlet) bool {
	switch a.Role {
	case models.RoleAdmin:
		return true
	case models.RoleManager:
		return outlet != nil && outlet.ManagerID != nil && *outlet.ManagerID == a.UserID
	}
	return false
}

// managerScope returns the manager id listings must be restricted to, or nil
// when the actor sees everything.
func (a Actor) managerScope() *uint {
	if a.Role == models.RoleManager {
		id := a.UserID
		return &id
	}
	return nil
}
