package hostutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"  ", ""},

		// Full URLs pass through, minus trailing slashes
		{"http://school.example.com/api", "http://school.example.com/api"},
		{"https://school.example.com/api/", "https://school.example.com/api"},
		{"http://localhost:8000", "http://localhost:8000"},

		// Local hosts get http
		{"localhost", "http://localhost"},
		{"localhost:8000/api", "http://localhost:8000/api"},
		{"127.0.0.1:8000", "http://127.0.0.1:8000"},
		{"[::1]:8000", "http://[::1]:8000"},
		{"erp.localhost", "http://erp.localhost"},

		// Everything else gets https
		{"school.example.com", "https://school.example.com"},
		{"school.example.com:8443/api/", "https://school.example.com:8443/api"},
		{"localhost.example.com", "https://localhost.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"localhost", true},
		{"localhost:8000", true},
		{"erp.localhost", true},
		{"a.b.localhost:8080", true},
		{"127.0.0.1", true},
		{"127.0.0.1:8000", true},
		{"[::1]", true},
		{"[::1]:8000", true},

		{"example.com", false},
		{"localhost.example.com", false},
		{"127.0.0.2", false},
		{"192.168.1.10:8000", false},
		{"[fe80::1]:80", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.input))
		})
	}
}

func TestRequireSecure(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"", false},
		{"https://school.example.com/api", false},
		{"http://localhost:8000/api", false},
		{"http://127.0.0.1:51234/api", false},
		{"http://erp.localhost", false},

		{"http://school.example.com/api", true},
		{"http://192.168.1.10:8000", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := RequireSecure(tt.input)
			if tt.wantErr {
				assert.ErrorContains(t, err, "insecure http://")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
