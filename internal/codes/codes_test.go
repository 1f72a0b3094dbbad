package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     bool
	}{
		{"exit code 0 is success", 0, true},
		{"exit code 1 is failure", 1, false},
		{"exit code 78 is failure", 78, false},
		{"negative exit code is failure", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSuccess(tt.exitCode))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     string
	}{
		{"known code 1", 1, "General failure"},
		{"known code 127", 127, "Command not found"},
		{"known code 124", 124, "Timed out"},
		{"unknown code", 42, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorMessage(tt.exitCode))
		})
	}
}
