package models

// All returns every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Status{},
		&User{},
		&Outlet{},
		&ComplianceRequirement{},
		&FormTemplate{},
		&Audit{},
		&Form{},
		&Issue{},
		&CorrectiveAction{},
		&StatusChange{},
		&Notification{},
	}
}
