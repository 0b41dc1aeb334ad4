package models

import (
	"time"

	"gorm.io/datatypes"
)

// Field types understood by form validation.
const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldNumber   = "number"
	FieldDate     = "date"
	FieldCheckbox = "checkbox"
	FieldSelect   = "select"
	FieldRadio    = "radio"
	FieldFile     = "file"
)

// FieldDefinition describes one input of a form template.
type FieldDefinition struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Options  []string `json:"options,omitempty"`
	Order    int      `json:"order"`
	Required bool     `json:"required,omitempty"`
}

// FormTemplate is the blueprint forms are instantiated from.
type FormTemplate struct {
	ID        uint                                 `json:"id" gorm:"primaryKey"`
	Name      string                               `json:"name"`
	Structure datatypes.JSONSlice[FieldDefinition] `json:"structure"`
	CreatedAt time.Time                            `json:"created_at"`
	UpdatedAt time.Time                            `json:"updated_at"`
}
