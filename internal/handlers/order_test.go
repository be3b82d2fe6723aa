package handlers

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOrderFields(t *testing.T) {
	lines := []orderLineRequest{{ItemID: 1, Quantity: 2}}

	tests := []struct {
		name     string
		fullName string
		contact  string
		lines    []orderLineRequest
		wantErr  bool
	}{
		{"valid", "Juan Dela Cruz", "09123456789", lines, false},
		{"two name tokens", "Juan Cruz", "09123456789", lines, true},
		{"contact too short", "Juan Dela Cruz", "0912345678", lines, true},
		{"contact with letters", "Juan Dela Cruz", "09123xx6789", lines, true},
		{"empty cart", "Juan Dela Cruz", "09123456789", nil, true},
		{"zero quantity line", "Juan Dela Cruz", "09123456789", []orderLineRequest{{ItemID: 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOrderFields(tt.fullName, tt.contact, tt.lines)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var fe *fiber.Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, fiber.StatusBadRequest, fe.Code)
		})
	}
}

func TestIsElevenDigits(t *testing.T) {
	assert.True(t, isElevenDigits("09123456789"))
	assert.False(t, isElevenDigits("9123456789"))
	assert.False(t, isElevenDigits("091234567890"))
	assert.False(t, isElevenDigits("0912345678a"))
	assert.False(t, isElevenDigits(""))
}
