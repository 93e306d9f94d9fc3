package types

import (
	"errors"
	"fmt"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *errorsmod.Error
		code uint32
	}{
		{"ErrInsufficientLiquidity", ErrInsufficientLiquidity, 2},
		{"ErrInsufficientInputAmount", ErrInsufficientInputAmount, 3},
		{"ErrInsufficientOutputAmount", ErrInsufficientOutputAmount, 4},
		{"ErrExpired", ErrExpired, 5},
		{"ErrInvalidPath", ErrInvalidPath, 6},
		{"ErrReentrancy", ErrReentrancy, 7},
		{"ErrInsufficientProfit", ErrInsufficientProfit, 8},
		{"ErrOverflow", ErrOverflow, 9},
		{"ErrUnderflow", ErrUnderflow, 10},
		{"ErrDivisionByZero", ErrDivisionByZero, 11},
		{"ErrExcessiveInputAmount", ErrExcessiveInputAmount, 12},
		{"ErrInvalidFee", ErrInvalidFee, 13},
		{"ErrInvalidPrice", ErrInvalidPrice, 14},
		{"ErrPoolNotFound", ErrPoolNotFound, 15},
		{"ErrPoolExists", ErrPoolExists, 16},
		{"ErrInvariantViolation", ErrInvariantViolation, 17},
		{"ErrInvalidState", ErrInvalidState, 18},
		{"ErrIdenticalAddresses", ErrIdenticalAddresses, 19},
		{"ErrZeroAddress", ErrZeroAddress, 20},
	}

	seen := make(map[uint32]string)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, ModuleName, tt.err.Codespace())
			assert.Equal(t, tt.code, tt.err.ABCICode())
			if other, ok := seen[tt.code]; ok {
				t.Errorf("code %d shared by %s and %s", tt.code, other, tt.name)
			}
			seen[tt.code] = tt.name
		})
	}
}

func TestWrappedErrorsMatch(t *testing.T) {
	wrapped := ErrInsufficientLiquidity.Wrapf("requested %d of reserve %d", 10, 10)
	assert.True(t, errors.Is(wrapped, ErrInsufficientLiquidity))
	assert.False(t, errors.Is(wrapped, ErrInsufficientOutputAmount))

	twice := fmt.Errorf("hop 2: %w", wrapped)
	assert.ErrorIs(t, twice, ErrInsufficientLiquidity)
	assert.Contains(t, twice.Error(), "requested 10 of reserve 10")
}
