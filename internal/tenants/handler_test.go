package tenants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDomains(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"adds at prefix", []string{"acme.com"}, []string{"@acme.com"}},
		{"keeps at prefix", []string{"@acme.com"}, []string{"@acme.com"}},
		{"lowercases", []string{"@ACME.com"}, []string{"@acme.com"}},
		{"trims whitespace", []string{"  acme.com  "}, []string{"@acme.com"}},
		{"drops empties", []string{"", "  ", "acme.com"}, []string{"@acme.com"}},
		{"preserves order", []string{"b.com", "a.com"}, []string{"@b.com", "@a.com"}},
		{"nil input", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeDomains(tt.in))
		})
	}
}
