package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// Form is one filled instance of a template inside an audit version. The
// structure is snapshotted from the template so later template edits do not
// change submitted history.
type Form struct {
	ID             uint                                 `json:"id" gorm:"primaryKey"`
	AuditID        uint                                 `json:"audit_id" gorm:"index"`
	FormTemplateID uint                                 `json:"form_template_id" gorm:"index"`
	Name           string                               `json:"name"`
	Structure      datatypes.JSONSlice[FieldDefinition] `json:"structure"`
	Content        datatypes.JSONMap                    `json:"content"`
	StatusID       uint                                 `json:"status_id" gorm:"index"`
	LockVersion    int                                  `json:"lock_version" gorm:"not null;default:0"`
	Issues         []Issue                              `json:"issues,omitempty"`
	CreatedAt      time.Time                            `json:"created_at"`
	UpdatedAt      time.Time                            `json:"updated_at"`
}

// OrderedFields returns the structure sorted by Order, keeping the stored
// sequence for equal orders.
func (f *Form) OrderedFields() []FieldDefinition {
	fields := make([]FieldDefinition, len(f.Structure))
	copy(fields, f.Structure)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Order < fields[j].Order })
	return fields
}

// UnknownContentKeys lists content keys that have no matching field id.
func UnknownContentKeys(structure []FieldDefinition, content map[string]interface{}) []string {
	ids := make(map[string]struct{}, len(structure))
	for _, field := range structure {
		ids[field.ID] = struct{}{}
	}
	var unknown []string
	for key := range content {
		if _, ok := ids[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// ValidateField checks a single submitted value against its definition.
func ValidateField(field FieldDefinition, value interface{}, present bool) error {
	if !present || isBlank(value) {
		if field.Required {
			return fmt.Errorf("field %q is required", field.Label)
		}
		return nil
	}
	switch field.Type {
	case FieldNumber:
		switch v := value.(type) {
		case float64, int, int64:
		case json.Number:
			if _, err := v.Float64(); err != nil {
				return fmt.Errorf("field %q must be a number", field.Label)
			}
		default:
			return fmt.Errorf("field %q must be a number", field.Label)
		}
	case FieldCheckbox:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %q must be true or false", field.Label)
		}
	case FieldDate:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q must be a date", field.Label)
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fmt.Errorf("field %q must be a date (YYYY-MM-DD)", field.Label)
		}
	case FieldSelect, FieldRadio:
		s, ok := value.(string)
		if !ok || !contains(field.Options, s) {
			return fmt.Errorf("field %q must be one of its options", field.Label)
		}
	}
	return nil
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
