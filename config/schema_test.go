package config

import (
	"encoding/json"
	"testing"

	"github.com/grovetools/invoicedash/schema"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatalf("GenerateSchema failed: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Generated schema is not JSON: %v", err)
	}

	props, ok := doc["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected properties in schema, got %v", doc)
	}
	for _, key := range []string{"version", "server", "client", "store", "auth"} {
		if _, ok := props[key]; !ok {
			t.Errorf("Expected property %q", key)
		}
	}
	if _, ok := props["Extensions"]; ok {
		t.Error("Extensions must not appear in the schema")
	}
}

func TestEmbeddedSchemaCoversConfig(t *testing.T) {
	// Every section the reflector sees must be declared in the embedded schema.
	data, err := GenerateSchema()
	if err != nil {
		t.Fatal(err)
	}
	var generated, embedded map[string]interface{}
	if err := json.Unmarshal(data, &generated); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(schema.Schema(), &embedded); err != nil {
		t.Fatal(err)
	}

	genProps := generated["properties"].(map[string]interface{})
	embProps := embedded["properties"].(map[string]interface{})
	for section, raw := range genProps {
		embSection, ok := embProps[section].(map[string]interface{})
		if !ok {
			t.Errorf("Embedded schema is missing %q", section)
			continue
		}
		genSection, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		fields, _ := genSection["properties"].(map[string]interface{})
		embFields, _ := embSection["properties"].(map[string]interface{})
		for field := range fields {
			if _, ok := embFields[field]; !ok {
				t.Errorf("Embedded schema is missing %s.%s", section, field)
			}
		}
	}
}

func TestSchemaValidatorAcceptsDefaults(t *testing.T) {
	v, err := NewSchemaValidator()
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Validate(Default()); err != nil {
		t.Errorf("Default config failed schema validation: %v", err)
	}
}
