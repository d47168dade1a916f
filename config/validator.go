package config

import (
	"github.com/grovetools/invoicedash/schema"
)

// SchemaValidator validates a Config against the embedded JSON Schema.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator loads the embedded schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	return &SchemaValidator{validator: validator}, nil
}

// Validate validates cfg against the schema.
func (v *SchemaValidator) Validate(cfg *Config) error {
	return v.validator.Validate(cfg)
}
