package flashloan

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/types"
)

// State is a flash-loan session's position in its lifecycle
type State int

const (
	StateIdle State = iota
	StateBorrowing
	StateSwapping
	StateRepaying
	StateSettled
	StateReverted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBorrowing:
		return "borrowing"
	case StateSwapping:
		return "swapping"
	case StateRepaying:
		return "repaying"
	case StateSettled:
		return "settled"
	case StateReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// ValidTransitions lists the states reachable from each state. Settled and
// Reverted are terminal.
var ValidTransitions = map[State][]State{
	StateIdle:      {StateBorrowing, StateReverted},
	StateBorrowing: {StateSwapping, StateReverted},
	StateSwapping:  {StateSwapping, StateRepaying, StateReverted},
	StateRepaying:  {StateSettled, StateReverted},
}

// CanTransition reports whether from -> to is allowed
func CanTransition(from, to State) bool {
	for _, next := range ValidTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s State) IsTerminal() bool {
	return len(ValidTransitions[s]) == 0
}

// session is the state of one Attack call. It never outlives the call.
type session struct {
	id             uint64
	state          State
	hopIndex       int
	borrowedToken  common.Address
	repaymentToken common.Address
	borrowedAmount *uint256.Int
	repaymentDue   *uint256.Int
	entered        map[types.PoolID]struct{}
	undo           dex.UndoLog
}

func newSession(id uint64, path []common.Address, borrowAmount *uint256.Int) *session {
	return &session{
		id:             id,
		state:          StateIdle,
		borrowedToken:  path[1],
		repaymentToken: path[0],
		borrowedAmount: borrowAmount.Clone(),
		entered:        make(map[types.PoolID]struct{}),
	}
}

func (s *session) transition(to State) error {
	if s.state.IsTerminal() {
		return types.ErrInvalidState.Wrapf("session %d is already %s", s.id, s.state)
	}
	if !CanTransition(s.state, to) {
		return types.ErrInvalidState.Wrapf("session %d: %s -> %s", s.id, s.state, to)
	}
	s.state = to
	return nil
}

// enter marks a pool as mid-operation. Entering a pool that is already
// entered is a reentrant use.
func (s *session) enter(id types.PoolID) error {
	if _, ok := s.entered[id]; ok {
		return types.ErrReentrancy.Wrapf("pool %s is already in use by session %d", id.Hex(), s.id)
	}
	s.entered[id] = struct{}{}
	return nil
}

func (s *session) exit(id types.PoolID) {
	delete(s.entered, id)
}
