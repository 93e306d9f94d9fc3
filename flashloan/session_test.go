package flashloan

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/flashswap/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateBorrowing, true},
		{StateIdle, StateSwapping, false},
		{StateBorrowing, StateSwapping, true},
		{StateBorrowing, StateSettled, false},
		{StateSwapping, StateSwapping, true},
		{StateSwapping, StateRepaying, true},
		{StateRepaying, StateSettled, true},
		{StateRepaying, StateSwapping, false},
		{StateSettled, StateReverted, false},
		{StateReverted, StateIdle, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}

	for _, s := range []State{StateIdle, StateBorrowing, StateSwapping, StateRepaying} {
		assert.True(t, CanTransition(s, StateReverted), "%s must be able to revert", s)
		assert.False(t, s.IsTerminal())
	}
	assert.True(t, StateSettled.IsTerminal())
	assert.True(t, StateReverted.IsTerminal())
	assert.Equal(t, "unknown", State(42).String())
}

func TestSession(t *testing.T) {
	a := common.HexToAddress("0x0a")
	b := common.HexToAddress("0x0b")
	s := newSession(7, []common.Address{a, b, a}, uint256.NewInt(5))

	assert.Equal(t, StateIdle, s.state)
	assert.Equal(t, b, s.borrowedToken)
	assert.Equal(t, a, s.repaymentToken)

	t.Run("IllegalTransition", func(t *testing.T) {
		err := s.transition(StateRepaying)
		require.ErrorIs(t, err, types.ErrInvalidState)
		assert.Equal(t, StateIdle, s.state)
	})

	t.Run("TerminalStateIsFinal", func(t *testing.T) {
		done := newSession(8, []common.Address{a, b, a}, uint256.NewInt(5))
		require.NoError(t, done.transition(StateReverted))
		err := done.transition(StateBorrowing)
		require.ErrorIs(t, err, types.ErrInvalidState)
		assert.Contains(t, err.Error(), "already reverted")
		assert.Equal(t, StateReverted, done.state)
	})

	t.Run("ReentrancyGuard", func(t *testing.T) {
		pool := types.PoolID{1}
		require.NoError(t, s.enter(pool))
		assert.ErrorIs(t, s.enter(pool), types.ErrReentrancy)
		s.exit(pool)
		assert.NoError(t, s.enter(pool))
	})
}
