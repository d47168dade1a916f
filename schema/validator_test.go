package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemaCompiles(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Contains(t, string(Schema()), "invoicedash configuration")
}

func TestValidate(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		doc     map[string]interface{}
		wantErr string
	}{
		{
			name: "empty document",
			doc:  map[string]interface{}{},
		},
		{
			name: "valid sections",
			doc: map[string]interface{}{
				"version": "1.0",
				"client":  map[string]interface{}{"url": "ws://localhost:3001/socket", "reconnect_attempts": 3},
				"server":  map[string]interface{}{"activity_chance": 0.5},
			},
		},
		{
			name:    "unknown server key",
			doc:     map[string]interface{}{"server": map[string]interface{}{"port": 3001}},
			wantErr: "/server",
		},
		{
			name:    "chance out of range",
			doc:     map[string]interface{}{"server": map[string]interface{}{"invoice_create_chance": 1.5}},
			wantErr: "/server/invoice_create_chance",
		},
		{
			name:    "http client url",
			doc:     map[string]interface{}{"client": map[string]interface{}{"url": "http://localhost:3001"}},
			wantErr: "/client/url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewValidatorFromBytesRejectsGarbage(t *testing.T) {
	_, err := NewValidatorFromBytes([]byte("{not json"))
	assert.Error(t, err)
}
