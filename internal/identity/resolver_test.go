package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailDomain(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		want    string
		wantErr bool
	}{
		{"simple", "jo@acme.com", "@acme.com", false},
		{"uppercase host", "jo@ACME.com", "@acme.com", false},
		{"subdomain", "jo@mail.acme.co.uk", "@mail.acme.co.uk", false},
		{"plus address", "jo+test@acme.com", "@acme.com", false},
		{"no at sign", "acme.com", "", true},
		{"trailing at", "jo@", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EmailDomain(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
